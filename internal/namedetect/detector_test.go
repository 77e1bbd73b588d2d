package namedetect

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
	"github.com/mwildeboer/scribeline/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleSegments() []models.Segment {
	return []models.Segment{
		{Speaker: "SPEAKER_00", Text: "Hello, my name is Alice."},
		{Speaker: "SPEAKER_01", Text: "Hi Alice, I'm Bob."},
		{Speaker: "SPEAKER_00", Text: "Nice to meet you, Bob."},
		{Speaker: "SPEAKER_02", Text: "(Background noise)"},
		{Speaker: "SPEAKER_01", Text: "We should discuss the report."},
		{Speaker: "SPEAKER_00", Text: "Okay."},
	}
}

func TestFindCandidateLines(t *testing.T) {
	indices := FindCandidateLines(sampleSegments())

	// Lines 0 and 1 hold introductions; neighbors come along.
	assert.Contains(t, indices, 0)
	assert.Contains(t, indices, 1)
	assert.Contains(t, indices, 2)
	assert.NotContains(t, indices, 4)
	assert.True(t, sortedUnique(indices))
}

func sortedUnique(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}

func TestFindCandidateLinesDutch(t *testing.T) {
	segments := []models.Segment{
		{Speaker: "SPEAKER_00", Text: "Goedemiddag, u spreekt met de receptie."},
		{Speaker: "SPEAKER_01", Text: "Hallo, ik ben Jan de Vries."},
	}
	indices := FindCandidateLines(segments)
	assert.Contains(t, indices, 1)
}

func TestFindCandidateLinesNoKeywords(t *testing.T) {
	segments := []models.Segment{
		{Speaker: "SPEAKER_00", Text: "The quarterly numbers look solid."},
	}
	assert.Empty(t, FindCandidateLines(segments))
}

func TestBuildPrompt(t *testing.T) {
	segments := sampleSegments()
	prompt, snippets := BuildPrompt(segments, []int{0, 1, 2})

	assert.Contains(t, prompt, "Context around Line Index 0")
	assert.Contains(t, prompt, ">> [Index:0, Speaker:SPEAKER_00] Hello, my name is Alice.")
	assert.Contains(t, prompt, "reasoning_indices")

	// Index 0's block already covers lines 1 and 2, so they get no block of
	// their own.
	require.Contains(t, snippets, 0)
	assert.NotContains(t, snippets, 1)
	assert.NotContains(t, snippets, 2)
}

func detector(response string, err error) *Detector {
	provider := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			return response, err
		},
		ListModelsFunc: func(_ context.Context) ([]string, error) {
			return []string{"llama3.1:8b"}, nil
		},
	}
	return NewDetector(llm.NewRunner(provider, testLogger()), testLogger())
}

func runDetect(t *testing.T, d *Detector, segments []models.Segment) (models.ProposedMap, models.ContextSnippets, error) {
	t.Helper()
	return d.Detect(context.Background(), segments, config.Pipeline{}, config.LLMConfig{Timeout: time.Second})
}

func TestDetectParsesFencedResponse(t *testing.T) {
	response := "```json\n" +
		`{"SPEAKER_00": {"name": "Alice", "reasoning_indices": [0]},` +
		` "SPEAKER_01": {"name": null, "reasoning_indices": []}}` +
		"\n```"

	proposed, snippets, err := runDetect(t, detector(response, nil), sampleSegments())
	require.NoError(t, err)
	require.NotEmpty(t, snippets)

	require.Contains(t, proposed, "SPEAKER_00")
	require.NotNil(t, proposed["SPEAKER_00"].Name)
	assert.Equal(t, "Alice", *proposed["SPEAKER_00"].Name)
	assert.Equal(t, []int{0}, proposed["SPEAKER_00"].Evidence)

	require.Contains(t, proposed, "SPEAKER_01")
	assert.Nil(t, proposed["SPEAKER_01"].Name)
}

func TestDetectExtractsEmbeddedJSON(t *testing.T) {
	response := `Sure! Here is the mapping: {"SPEAKER_00": {"name": "Alice", "reasoning_indices": [0]}} Hope that helps.`

	proposed, _, err := runDetect(t, detector(response, nil), sampleSegments())
	require.NoError(t, err)
	require.NotNil(t, proposed["SPEAKER_00"].Name)
	assert.Equal(t, "Alice", *proposed["SPEAKER_00"].Name)
}

func TestDetectDropsUnknownSpeakersAndBadEvidence(t *testing.T) {
	response := `{
		"SPEAKER_00": {"name": "Alice", "reasoning_indices": [0, 99]},
		"SPEAKER_99": {"name": "Ghost", "reasoning_indices": []}
	}`

	proposed, _, err := runDetect(t, detector(response, nil), sampleSegments())
	require.NoError(t, err)

	assert.NotContains(t, proposed, "SPEAKER_99")
	assert.Equal(t, []int{0}, proposed["SPEAKER_00"].Evidence, "index 99 never appeared in the prompt")
}

func TestDetectBlankNameBecomesNil(t *testing.T) {
	response := `{"SPEAKER_00": {"name": "   ", "reasoning_indices": []}}`

	proposed, _, err := runDetect(t, detector(response, nil), sampleSegments())
	require.NoError(t, err)
	assert.Nil(t, proposed["SPEAKER_00"].Name)
}

func TestDetectGarbageResponse(t *testing.T) {
	_, snippets, err := runDetect(t, detector("no json here at all", nil), sampleSegments())
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrInvalidResponse))
	assert.NotEmpty(t, snippets, "snippets survive a parse failure")
}

func TestDetectLLMFailureReturnsSnippets(t *testing.T) {
	boom := errors.New("model crashed")
	_, snippets, err := runDetect(t, detector("", boom), sampleSegments())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.NotEmpty(t, snippets)
}

func TestDetectEmptyTranscript(t *testing.T) {
	proposed, snippets, err := runDetect(t, detector("", nil), nil)
	require.NoError(t, err)
	assert.Empty(t, proposed)
	assert.Empty(t, snippets)
}

func TestDetectNoCandidatesSkipsLLM(t *testing.T) {
	called := false
	provider := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			called = true
			return "{}", nil
		},
	}
	d := NewDetector(llm.NewRunner(provider, testLogger()), testLogger())

	segments := []models.Segment{{Speaker: "SPEAKER_00", Text: "Quarterly numbers."}}
	proposed, _, err := d.Detect(context.Background(), segments, config.Pipeline{}, config.LLMConfig{})
	require.NoError(t, err)
	assert.Empty(t, proposed)
	assert.False(t, called)
}
