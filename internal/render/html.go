// Package render turns a name-mapped transcript into a self-contained HTML
// document suitable for sharing without any server.
package render

import (
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/mwildeboer/scribeline/pkg/models"
)

const page = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem auto; max-width: 52rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; border-bottom: 1px solid #ddd; padding-bottom: .5rem; }
.block { margin: 1.2rem 0; }
.speaker { font-weight: 600; color: #2a5d8f; }
.line { margin: .25rem 0 .25rem 1rem; }
.ts { color: #888; font-size: .85em; font-variant-numeric: tabular-nums; margin-right: .5rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Blocks}}<div class="block">
<div class="speaker">{{.Speaker}}</div>
{{range .Lines}}<div class="line"><span class="ts">{{.Timestamp}}</span>{{.Text}}</div>
{{end}}</div>
{{end}}</body>
</html>
`

var pageTmpl = template.Must(template.New("transcript").Parse(page))

type line struct {
	Timestamp string
	Text      template.HTML
}

type block struct {
	Speaker string
	Lines   []line
}

type pageData struct {
	Title  string
	Blocks []block
}

// HTML renders the segments as a standalone document. Consecutive segments by
// the same speaker are grouped under one heading.
func HTML(title string, segments []models.Segment) (string, error) {
	data := pageData{Title: title}

	for _, seg := range segments {
		speaker := seg.SpeakerName
		if speaker == "" {
			speaker = seg.Speaker
		}
		if speaker == "" {
			speaker = "Unknown"
		}

		l := line{
			Timestamp: Timestamp(seg.Start),
			Text:      escapeText(seg.Text),
		}

		if n := len(data.Blocks); n > 0 && data.Blocks[n-1].Speaker == speaker {
			data.Blocks[n-1].Lines = append(data.Blocks[n-1].Lines, l)
			continue
		}
		data.Blocks = append(data.Blocks, block{Speaker: speaker, Lines: []line{l}})
	}

	var buf strings.Builder
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render transcript html: %w", err)
	}
	return buf.String(), nil
}

// escapeText escapes user text and preserves line breaks.
func escapeText(text string) template.HTML {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}

// Timestamp formats seconds as [MM:SS], switching to [HH:MM:SS] at the hour
// mark. Negative values render as the [--:--] placeholder.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		return "[--:--]"
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("[%02d:%02d:%02d]", h, m, s)
	}
	return fmt.Sprintf("[%02d:%02d]", m, s)
}
