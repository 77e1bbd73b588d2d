package llm_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/internal/llm"
	"github.com/mwildeboer/scribeline/internal/llm/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestResolveModelPrefersInstalled(t *testing.T) {
	provider := &mock.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"mistral:7b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	model, err := runner.ResolveModel(context.Background(), "summary", nil)
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", model)
}

func TestResolveModelOverridesBeatDefaults(t *testing.T) {
	provider := &mock.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"qwen2:7b", "mistral:7b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	overrides := map[string][]string{"summary": {"qwen2:7b"}}
	model, err := runner.ResolveModel(context.Background(), "summary", overrides)
	require.NoError(t, err)
	assert.Equal(t, "qwen2:7b", model)
}

func TestResolveModelFallsBackToFirstPreference(t *testing.T) {
	provider := &mock.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"something-else"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	model, err := runner.ResolveModel(context.Background(), "summary", nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", model)
}

func TestResolveModelNormalizesLatestTag(t *testing.T) {
	provider := &mock.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3:8b:latest"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	model, err := runner.ResolveModel(context.Background(), "summary", nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", model)
}

func TestResolveModelUnknownTaskUsesDefaultList(t *testing.T) {
	provider := &mock.MockProvider{
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	model, err := runner.ResolveModel(context.Background(), "no-such-task", nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", model)
}

func TestGenerateTrimsAndTimesOut(t *testing.T) {
	provider := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			return "  hello world \n", nil
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	out, err := runner.Generate(context.Background(), "summary", "prompt", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	timeoutRunner := llm.NewRunner(mock.NewTimeoutProvider(), testLogger())
	_, err = timeoutRunner.Generate(context.Background(), "summary", "prompt", nil, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGenerateFallsBackToNextModel(t *testing.T) {
	var attempted []string
	provider := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, model, _ string) (string, error) {
			attempted = append(attempted, model)
			if model == "llama3.1:8b" {
				return "", errors.New("llama3.1:8b crashed")
			}
			return "answer from " + model, nil
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b", "mistral:7b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	out, err := runner.Generate(context.Background(), "summary", "prompt", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "answer from mistral:7b", out)
	assert.Equal(t, []string{"llama3.1:8b", "mistral:7b"}, attempted)
}

func TestGenerateReturnsLastErrorWhenAllModelsFail(t *testing.T) {
	exhausted := errors.New("out of memory")
	provider := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, model, _ string) (string, error) {
			return "", exhausted
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b", "mistral:7b"}, nil
		},
	}
	runner := llm.NewRunner(provider, testLogger())

	_, err := runner.Generate(context.Background(), "summary", "prompt", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exhausted))
	assert.Contains(t, err.Error(), "mistral:7b")
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	boom := errors.New("connection refused")
	runner := llm.NewRunner(mock.NewFailingProvider(boom), testLogger())

	_, err := runner.Generate(context.Background(), "summary", "prompt", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}
