package analysis

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/llm"
	"github.com/mwildeboer/scribeline/internal/llm/mock"
)

func testAnalyzer(provider *mock.MockProvider) *Analyzer {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	llmCfg := config.LLMConfig{Timeout: time.Second, FinalTimeout: 2 * time.Second}
	return NewAnalyzer(llm.NewRunner(provider, logger), llmCfg, logger)
}

func capturingProvider(response string) (*mock.MockProvider, *[]string) {
	var prompts []string
	p := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _, prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return response, nil
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b"}, nil
		},
	}
	return p, &prompts
}

func TestRunTaskBuildsTaskPrompt(t *testing.T) {
	provider, prompts := capturingProvider("the analysis")
	a := testAnalyzer(provider)

	out, err := a.RunTask(context.Background(), "summary", "Alice: hello", config.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "the analysis", out)

	require.Len(t, *prompts, 1)
	prompt := (*prompts)[0]
	assert.Contains(t, prompt, "concise summary")
	assert.Contains(t, prompt, "--- Start Transcript ---")
	assert.Contains(t, prompt, "Alice: hello")
}

func TestRunTaskIncludesExtraContext(t *testing.T) {
	provider, prompts := capturingProvider("ok")
	a := testAnalyzer(provider)

	cfg := config.Pipeline{ExtraContext: "Weekly standup of the platform team"}
	_, err := a.RunTask(context.Background(), "actions", "Alice: hello", cfg)
	require.NoError(t, err)

	assert.Contains(t, (*prompts)[0], "Weekly standup of the platform team")
}

func TestRunTaskUnknownTaskGetsGenericInstruction(t *testing.T) {
	provider, prompts := capturingProvider("ok")
	a := testAnalyzer(provider)

	_, err := a.RunTask(context.Background(), "compliance", "Alice: hello", config.Pipeline{})
	require.NoError(t, err)
	assert.Contains(t, (*prompts)[0], "general analysis regarding 'compliance'")
}

func TestRunTaskEmptyTranscript(t *testing.T) {
	provider, _ := capturingProvider("ok")
	a := testAnalyzer(provider)

	_, err := a.RunTask(context.Background(), "summary", "   ", config.Pipeline{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcript text is empty")
}

func TestRunTaskPropagatesError(t *testing.T) {
	boom := errors.New("connection refused")
	a := testAnalyzer(mock.NewFailingProvider(boom))

	_, err := a.RunTask(context.Background(), "summary", "Alice: hello", config.Pipeline{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestRunFinalIncludesAllSections(t *testing.T) {
	provider, prompts := capturingProvider("final report")
	a := testAnalyzer(provider)

	summary := "short summary"
	intermediate := map[string]*string{
		"summary": &summary,
		"intent":  nil, // failed task
	}

	out, err := a.RunFinal(context.Background(), intermediate, config.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "final report", out)

	prompt := (*prompts)[0]
	assert.Contains(t, prompt, "## Preliminary Summary:\nshort summary")
	assert.Contains(t, prompt, "## Speaker Intentions/Goals:\nNot available")
	assert.Contains(t, prompt, "## Legal/Contractual Mentions:\nNot available")
	assert.Contains(t, prompt, "Based *only* on the preliminary analyses")
}

func TestAdvancedTasksOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"summary", "intent", "actions", "emotion", "questions", "legal"},
		AdvancedTasks)
}
