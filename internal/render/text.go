package render

import (
	"strings"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// Text renders the transcript as plain "Name: text" lines for LLM prompts.
// Segments without text are skipped.
func Text(segments []models.Segment) string {
	var b strings.Builder
	first := true
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		name := seg.SpeakerName
		if name == "" {
			name = seg.Speaker
		}
		if name == "" {
			name = "Unknown"
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(seg.Text)
	}
	return b.String()
}
