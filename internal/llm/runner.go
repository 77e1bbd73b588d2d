// Package llm selects models and runs completions for the analysis stages.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// defaultModels maps an analysis task to its ordered model preference list.
// Job configs can override any entry through the llm_models setting.
var defaultModels = map[string][]string{
	"summary":        {"llama3.1:8b", "llama3:8b", "mistral:7b"},
	"intent":         {"llama3.1:8b", "mistral:7b"},
	"actions":        {"llama3.1:8b", "mistral:7b"},
	"emotion":        {"llama3.1:8b", "mistral:7b"},
	"questions":      {"llama3.1:8b", "mistral:7b"},
	"legal":          {"llama3.1:8b", "mistral:7b"},
	"final":          {"llama3.1:70b", "llama3.1:8b"},
	"name_detection": {"llama3.1:8b", "llama3:8b"},
	"default":        {"llama3.1:8b"},
}

// Runner resolves which model serves each analysis task and executes
// completions against the configured provider with a per-task timeout. The
// installed-model list is fetched once and cached for the Runner's lifetime.
type Runner struct {
	provider models.LLMProvider
	logger   *slog.Logger

	mu        sync.Mutex
	installed map[string]bool
	fetched   bool
}

func NewRunner(provider models.LLMProvider, logger *slog.Logger) *Runner {
	return &Runner{provider: provider, logger: logger}
}

// Provider exposes the underlying provider, mainly for health reporting.
func (r *Runner) Provider() models.LLMProvider { return r.provider }

// ResolveModel picks the model a task would run first: the first entry of the
// task's preference list that is installed on the provider.
func (r *Runner) ResolveModel(ctx context.Context, task string, overrides map[string][]string) (string, error) {
	candidates, err := r.resolveCandidates(ctx, task, overrides)
	if err != nil {
		return "", err
	}
	return candidates[0], nil
}

// resolveCandidates returns the ordered fallback list for a task: every entry
// of the task's preference list that is installed on the provider. Overrides
// take precedence over the built-in defaults; a task with no list of its own
// falls back to the "default" list. When none of the preferred models is
// installed the first preference is returned anyway, on the assumption that
// the provider can pull it on demand.
func (r *Runner) resolveCandidates(ctx context.Context, task string, overrides map[string][]string) ([]string, error) {
	prefs := overrides[task]
	if len(prefs) == 0 {
		prefs = defaultModels[task]
	}
	if len(prefs) == 0 {
		prefs = overrides["default"]
	}
	if len(prefs) == 0 {
		prefs = defaultModels["default"]
	}
	if len(prefs) == 0 {
		return nil, fmt.Errorf("task %s: %w", task, ErrNoModelAvailable)
	}

	installed := r.installedModels(ctx)
	var candidates []string
	for _, name := range prefs {
		if installed[normalizeModel(name)] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	r.logger.Warn("no preferred model installed, using first preference",
		slog.String("task", task),
		slog.String("model", prefs[0]))
	return prefs[0:1], nil
}

// Generate runs the prompt for the task, trying the task's available models
// in preference order until one succeeds. Each attempt gets its own timeout;
// a failed attempt is logged and the next model is tried. The last attempt's
// error is returned when every model fails.
func (r *Runner) Generate(ctx context.Context, task, prompt string, overrides map[string][]string, timeout time.Duration) (string, error) {
	candidates, err := r.resolveCandidates(ctx, task, overrides)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, model := range candidates {
		if err := ctx.Err(); err != nil {
			break
		}

		out, err := r.generateOnce(ctx, model, prompt, timeout)
		if err != nil {
			lastErr = fmt.Errorf("task %s with model %s: %w", task, model, err)
			r.logger.Warn("model attempt failed, trying next fallback",
				slog.String("task", task),
				slog.String("model", model),
				slog.Any("error", err))
			continue
		}

		r.logger.Debug("llm task completed",
			slog.String("task", task),
			slog.String("model", model))
		return strings.TrimSpace(out), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("task %s: %w", task, ctx.Err())
	}
	return "", lastErr
}

func (r *Runner) generateOnce(ctx context.Context, model, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.provider.Generate(ctx, model, prompt)
}

func (r *Runner) installedModels(ctx context.Context) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fetched {
		return r.installed
	}

	names, err := r.provider.ListModels(ctx)
	if err != nil {
		r.logger.Warn("could not list installed models", slog.Any("error", err))
		return map[string]bool{}
	}

	r.installed = make(map[string]bool, len(names))
	for _, n := range names {
		r.installed[normalizeModel(n)] = true
	}
	r.fetched = true
	return r.installed
}

// normalizeModel treats "llama3" and "llama3:latest" as the same model, the
// way the Ollama CLI does.
func normalizeModel(name string) string {
	return strings.TrimSuffix(name, ":latest")
}
