package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/pkg/models"
)

func TestTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "[00:00]"},
		{65.4, "[01:05]"},
		{599, "[09:59]"},
		{3599, "[59:59]"},
		{3600, "[01:00:00]"},
		{7325, "[02:02:05]"},
		{-1, "[--:--]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Timestamp(tt.seconds))
	}
}

func TestHTMLGroupsConsecutiveSpeakers(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, SpeakerName: "Alice", Text: "Hello."},
		{Start: 2, SpeakerName: "Alice", Text: "Still me."},
		{Start: 4, SpeakerName: "Bob", Text: "Hi."},
		{Start: 6, SpeakerName: "Alice", Text: "Back again."},
	}

	out, err := HTML("Team call", segments)
	require.NoError(t, err)

	// Alice appears twice as a heading: once before Bob and once after.
	assert.Equal(t, 2, strings.Count(out, `<div class="speaker">Alice</div>`))
	assert.Equal(t, 1, strings.Count(out, `<div class="speaker">Bob</div>`))
	assert.Contains(t, out, "Still me.")
	assert.Contains(t, out, "[00:04]")
}

func TestHTMLEscapesContent(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, SpeakerName: "<script>", Text: "a < b & c > d"},
	}

	out, err := HTML("x", segments)
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "a &lt; b &amp; c &gt; d")
}

func TestHTMLPreservesLineBreaks(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, SpeakerName: "Alice", Text: "line one\nline two"},
	}

	out, err := HTML("x", segments)
	require.NoError(t, err)
	assert.Contains(t, out, "line one<br>line two")
}

func TestHTMLSpeakerFallbacks(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, Speaker: "SPEAKER_00", Text: "no mapped name"},
		{Start: 1, Text: "no speaker at all"},
	}

	out, err := HTML("x", segments)
	require.NoError(t, err)
	assert.Contains(t, out, "SPEAKER_00")
	assert.Contains(t, out, "Unknown")
}

func TestHTMLIsSelfContained(t *testing.T) {
	out, err := HTML("Meeting", []models.Segment{{SpeakerName: "A", Text: "hi"}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<style>")
	assert.NotContains(t, out, "src=")
	assert.Contains(t, out, "<title>Meeting</title>")
}
