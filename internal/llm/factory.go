package llm

import (
	"fmt"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/llm/mock"
	"github.com/mwildeboer/scribeline/internal/llm/ollama"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// NewProvider constructs the configured LLM provider. Called once at server
// startup. The mock provider is a first-class option so the whole server can
// run offline.
func NewProvider(cfg config.LLMConfig) (models.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of ollama, mock", cfg.Provider)
	}
}
