package models

import (
	"context"
	"errors"
)

// Provider-level failure classes. Backends wrap their transport errors with
// these so callers can match the failure mode without knowing the backend.
var (
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrInferenceTimeout    = errors.New("llm inference timeout")
)

// LLMProvider is the core interface every LLM backend must implement.
// Callers always go through this interface, never a concrete backend.
type LLMProvider interface {
	// Generate runs one prompt against the named model and returns the raw
	// completion text.
	Generate(ctx context.Context, model, prompt string) (string, error)
	// ListModels returns the models currently installed on the backend,
	// used to filter per-task fallback lists before trying them.
	ListModels(ctx context.Context) ([]string, error)
	// Name returns the provider identifier (e.g. "ollama", "mock").
	Name() string
}
