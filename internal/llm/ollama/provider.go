// Package ollama implements models.LLMProvider against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// Provider talks to the Ollama HTTP API. Transient connection errors and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
type Provider struct {
	baseURL string
	client  *http.Client
	policy  func(ctx context.Context) backoff.BackOffContext
}

func NewProvider(cfg config.LLMConfig) *Provider {
	return &Provider{
		baseURL: cfg.OllamaURL,
		client:  &http.Client{},
		policy:  retryPolicy,
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single non-streaming completion. The deadline comes from
// ctx; per-attempt HTTP timeouts are left to the caller's context so long
// generations are not cut short.
func (p *Provider) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	var out generateResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%w: ollama returned %d", models.ErrProviderUnavailable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("ollama returned %d: %s", resp.StatusCode, raw))
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode generate response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, p.policy(ctx)); err != nil {
		return "", fmt.Errorf("generate with %s: %w", model, classify(ctx, err))
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of models installed on the Ollama server.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var out tagsResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%w: ollama tags returned %d", models.ErrProviderUnavailable, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode tags response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, p.policy(ctx)); err != nil {
		return nil, fmt.Errorf("list models: %w", classify(ctx, err))
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func retryPolicy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(bo, ctx)
}

// classify maps an exhausted retry error onto the shared failure sentinels.
// A blown deadline means the call ran out of time; everything else the retry
// loop gave up on keeps whatever wrapping the attempt applied.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return err
}

var _ models.LLMProvider = (*Provider)(nil)
