// Package namedetect proposes real names for diarized speaker IDs by scanning
// the transcript for introduction phrases and asking an LLM to confirm them.
// The output is a proposal for human review, never applied automatically.
package namedetect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/llm"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// contextWindow is how many segments before and after a candidate line are
// included in the prompt.
const contextWindow = 2

// keywords that suggest a speaker is introducing themselves or being
// addressed. Trailing spaces are deliberate to avoid matching inside words.
// Covers English and Dutch.
var keywords = []string{
	"name is", "i am", "i'm", "this is", "call me", "speaking",
	"hello", "hi ", "hey ", "good morning", "good afternoon",
	" my name ",
	"dag ", "hallo", "ik ben", "mijn naam is", " met ",
}

// Detector runs the detection flow against an LLM task runner.
type Detector struct {
	runner *llm.Runner
	logger *slog.Logger
}

func NewDetector(runner *llm.Runner, logger *slog.Logger) *Detector {
	return &Detector{runner: runner, logger: logger}
}

// Detect scans the transcript and returns a proposed speaker-to-name map plus
// the context snippets the proposal was based on. An empty transcript or a
// transcript without introduction phrases yields empty maps and no error. An
// LLM failure returns the snippets that were built along with the error so
// the caller can still surface them.
func (d *Detector) Detect(ctx context.Context, segments []models.Segment, cfg config.Pipeline, llmCfg config.LLMConfig) (models.ProposedMap, models.ContextSnippets, error) {
	if len(segments) == 0 {
		d.logger.Warn("cannot detect names: transcript is empty")
		return models.ProposedMap{}, models.ContextSnippets{}, nil
	}

	candidates := FindCandidateLines(segments)
	if len(candidates) == 0 {
		d.logger.Info("no introduction phrases found, skipping name detection")
		return models.ProposedMap{}, models.ContextSnippets{}, nil
	}

	prompt, snippets := BuildPrompt(segments, candidates)
	d.logger.Debug("built name detection prompt",
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("snippets", len(snippets)))

	raw, err := d.runner.Generate(ctx, "name_detection", prompt, cfg.LLMModels, cfg.LLMTimeout(llmCfg.Timeout))
	if err != nil {
		return nil, snippets, fmt.Errorf("name detection llm call: %w", err)
	}

	proposed, err := parseResponse(raw, segments, snippets, d.logger)
	if err != nil {
		return nil, snippets, err
	}
	return proposed, snippets, nil
}

// FindCandidateLines returns the sorted indices of segments whose text holds
// an introduction keyword, plus their immediate neighbors.
func FindCandidateLines(segments []models.Segment) []int {
	hits := map[int]bool{}
	for i, seg := range segments {
		text := strings.ToLower(seg.Text)
		if text == "" {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits[i] = true
				if i > 0 {
					hits[i-1] = true
				}
				if i < len(segments)-1 {
					hits[i+1] = true
				}
				break
			}
		}
	}

	out := make([]int, 0, len(hits))
	for i := range hits {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// BuildPrompt renders the LLM prompt with a context block per candidate line
// and returns the snippets keyed by the triggering index. Candidates already
// covered by an earlier block do not get a block of their own.
func BuildPrompt(segments []models.Segment, candidates []int) (string, models.ContextSnippets) {
	var b strings.Builder
	snippets := models.ContextSnippets{}

	b.WriteString("Analyze the following conversation transcript excerpts to identify speaker names introduced during the conversation.\n")
	b.WriteString("Focus ONLY on explicit introductions (e.g., 'My name is...', 'I am...', 'Call me...') or direct address (e.g., 'Hello [Name], this is...').\n")
	b.WriteString("Look for patterns where a speaker ID (e.g., SPEAKER_01) states their name or is addressed by name near one of their segments.\n")
	b.WriteString("For each speaker ID where a name is confidently identified from the provided context, state the speaker ID, the detected name, and a list of the numeric line indices (from the 'Context around Line Index...' blocks below) that provide the primary evidence for that name.\n")
	b.WriteString("If no clear name identification is found for a specific speaker ID within these excerpts, the name should be null and the reasoning_indices list empty.\n")
	b.WriteString("\nFormat the output STRICTLY as a single JSON object mapping speaker IDs found in the excerpts to an object containing the detected 'name' (string or null) and 'reasoning_indices' (a list of integers).\n")
	b.WriteString(`Example Output: {"SPEAKER_00": {"name": "Alice B.", "reasoning_indices": [5, 8]}, "SPEAKER_01": {"name": null, "reasoning_indices": []}}`)
	b.WriteString("\n\n--- Transcript Excerpts ---\n")

	covered := map[int]bool{}
	for _, i := range candidates {
		if covered[i] {
			continue
		}

		start := max(0, i-contextWindow)
		end := min(len(segments), i+contextWindow+1)

		speaker := segments[i].Speaker
		if speaker == "" {
			speaker = "N/A"
		}
		fmt.Fprintf(&b, "\nContext around Line Index %d (Speaker %s):\n", i, speaker)

		var snippet []string
		for j := start; j < end; j++ {
			segSpeaker := segments[j].Speaker
			if segSpeaker == "" {
				segSpeaker = "N/A"
			}
			prefix := "   "
			if j == i {
				prefix = ">> "
			}
			line := fmt.Sprintf("%s[Index:%d, Speaker:%s] %s", prefix, j, segSpeaker, segments[j].Text)
			b.WriteString(line + "\n")
			snippet = append(snippet, line)
			covered[j] = true
		}
		snippets[i] = strings.Join(snippet, "\n")
	}

	b.WriteString("\n--- End Excerpts ---\n")
	b.WriteString("\nRespond ONLY with the JSON object containing the Speaker ID mapping as described. Do not include explanations outside the JSON object.")

	return b.String(), snippets
}

type rawProposal struct {
	Name             *string `json:"name"`
	ReasoningIndices []any   `json:"reasoning_indices"`
}

// parseResponse tolerates fenced or chatty LLM output, extracts the JSON
// object, and validates it against the transcript: unknown speaker IDs are
// dropped, blank names become null, and evidence indices that were never part
// of the prompt are discarded.
func parseResponse(raw string, segments []models.Segment, snippets models.ContextSnippets, logger *slog.Logger) (models.ProposedMap, error) {
	cleaned := stripFences(raw)

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		first := strings.Index(cleaned, "{")
		last := strings.LastIndex(cleaned, "}")
		if first == -1 || last <= first {
			return nil, fmt.Errorf("no JSON object in llm response: %w", llm.ErrInvalidResponse)
		}
		if err := json.Unmarshal([]byte(cleaned[first:last+1]), &parsed); err != nil {
			return nil, fmt.Errorf("parse llm response: %w", llm.ErrInvalidResponse)
		}
	}

	knownSpeakers := map[string]bool{}
	for _, seg := range segments {
		if seg.Speaker != "" {
			knownSpeakers[seg.Speaker] = true
		}
	}

	out := models.ProposedMap{}
	for speakerID, rawObj := range parsed {
		if !knownSpeakers[speakerID] {
			logger.Warn("llm proposed name for unknown speaker, ignoring",
				slog.String("speaker", speakerID))
			continue
		}

		var obj rawProposal
		if err := json.Unmarshal(rawObj, &obj); err != nil {
			logger.Warn("invalid proposal object, treating speaker as unmapped",
				slog.String("speaker", speakerID))
			out[speakerID] = models.ProposedName{Evidence: []int{}}
			continue
		}

		var name *string
		if obj.Name != nil {
			if trimmed := strings.TrimSpace(*obj.Name); trimmed != "" {
				name = &trimmed
			}
		}

		evidence := []int{}
		seen := map[int]bool{}
		for _, v := range obj.ReasoningIndices {
			f, ok := v.(float64)
			if !ok || f != float64(int(f)) {
				logger.Warn("invalid evidence index type, ignoring",
					slog.String("speaker", speakerID))
				continue
			}
			idx := int(f)
			if !indexOffered(idx, snippets, len(segments)) {
				logger.Warn("evidence index was not in prompt context, ignoring",
					slog.String("speaker", speakerID), slog.Int("index", idx))
				continue
			}
			if !seen[idx] {
				seen[idx] = true
				evidence = append(evidence, idx)
			}
		}
		sort.Ints(evidence)

		out[speakerID] = models.ProposedName{Name: name, Evidence: evidence}
	}
	return out, nil
}

// indexOffered reports whether a transcript line index was visible in any of
// the prompt's context blocks. Each block spans contextWindow lines around
// its triggering index.
func indexOffered(idx int, snippets models.ContextSnippets, total int) bool {
	if idx < 0 || idx >= total {
		return false
	}
	for center := range snippets {
		if idx >= center-contextWindow && idx <= center+contextWindow {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
