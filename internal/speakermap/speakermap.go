// Package speakermap applies a human-reviewed speaker-to-name mapping onto
// diarized transcript segments.
package speakermap

import (
	"strings"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// MissingSpeakerLabel is assigned to segments the diarizer left without a
// speaker ID.
const MissingSpeakerLabel = "SPEAKER_MISSING_ID"

// Counts summarizes what Apply did, for job logs.
type Counts struct {
	Mapped   int
	Fallback int
	Missing  int
}

// Apply returns a new segment slice with SpeakerName filled in from the
// mapping. The input is never modified. A nil or blank mapped name falls back
// to the raw speaker ID; segments without a speaker ID get the
// MissingSpeakerLabel placeholder.
func Apply(segments []models.Segment, mapping models.SpeakerMap) ([]models.Segment, Counts) {
	out := make([]models.Segment, len(segments))
	var counts Counts

	for i, seg := range segments {
		mapped := seg

		if seg.Speaker == "" {
			mapped.SpeakerName = MissingSpeakerLabel
			counts.Missing++
			out[i] = mapped
			continue
		}

		name := ""
		if ptr, ok := mapping[seg.Speaker]; ok && ptr != nil {
			name = strings.TrimSpace(*ptr)
		}
		if name == "" {
			mapped.SpeakerName = seg.Speaker
			counts.Fallback++
		} else {
			mapped.SpeakerName = name
			counts.Mapped++
		}
		out[i] = mapped
	}
	return out, counts
}
