package speakermap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestApplyMapsNames(t *testing.T) {
	segments := []models.Segment{
		{Speaker: "SPEAKER_00", Text: "hello"},
		{Speaker: "SPEAKER_01", Text: "hi"},
	}
	mapping := models.SpeakerMap{
		"SPEAKER_00": strPtr("Alice"),
		"SPEAKER_01": strPtr("  Bob  "),
	}

	out, counts := Apply(segments, mapping)

	assert.Equal(t, "Alice", out[0].SpeakerName)
	assert.Equal(t, "Bob", out[1].SpeakerName, "names are trimmed")
	assert.Equal(t, Counts{Mapped: 2}, counts)
}

func TestApplyFallsBackToSpeakerID(t *testing.T) {
	segments := []models.Segment{
		{Speaker: "SPEAKER_00"},
		{Speaker: "SPEAKER_01"},
		{Speaker: "SPEAKER_02"},
	}
	mapping := models.SpeakerMap{
		"SPEAKER_00": nil,
		"SPEAKER_01": strPtr("   "),
		// SPEAKER_02 absent entirely
	}

	out, counts := Apply(segments, mapping)

	assert.Equal(t, "SPEAKER_00", out[0].SpeakerName)
	assert.Equal(t, "SPEAKER_01", out[1].SpeakerName)
	assert.Equal(t, "SPEAKER_02", out[2].SpeakerName)
	assert.Equal(t, Counts{Fallback: 3}, counts)
}

func TestApplyMissingSpeakerID(t *testing.T) {
	segments := []models.Segment{{Text: "unattributed"}}

	out, counts := Apply(segments, models.SpeakerMap{})

	assert.Equal(t, MissingSpeakerLabel, out[0].SpeakerName)
	assert.Equal(t, Counts{Missing: 1}, counts)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	segments := []models.Segment{{Speaker: "SPEAKER_00", Text: "hello"}}

	out, _ := Apply(segments, models.SpeakerMap{"SPEAKER_00": strPtr("Alice")})

	require.Len(t, out, 1)
	assert.Empty(t, segments[0].SpeakerName)
	assert.Equal(t, "Alice", out[0].SpeakerName)
}

func TestApplyEmptyInput(t *testing.T) {
	out, counts := Apply(nil, nil)
	assert.Empty(t, out)
	assert.Equal(t, Counts{}, counts)
}
