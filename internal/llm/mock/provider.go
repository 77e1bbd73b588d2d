// Package mock provides a scriptable models.LLMProvider for tests and for
// running the server without a real inference backend.
package mock

import (
	"context"
	"fmt"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// MockProvider satisfies models.LLMProvider for testing.
type MockProvider struct {
	Name_          string
	GenerateFunc   func(ctx context.Context, model, prompt string) (string, error)
	ListModelsFunc func(ctx context.Context) ([]string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, model, prompt)
	}
	return "", nil
}

func (m *MockProvider) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, nil
}

// NewMockProvider returns a MockProvider that reports every model as installed
// and echoes a canned completion. Good enough to run the whole pipeline in
// mock mode.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, model, prompt string) (string, error) {
			return fmt.Sprintf("mock completion from %s (%d prompt chars)", model, len(prompt)), nil
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"mock-v1"}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			return "", err
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"mock-v1"}, nil
		},
	}
}

// Compile-time check that MockProvider implements LLMProvider.
var _ models.LLMProvider = (*MockProvider)(nil)
