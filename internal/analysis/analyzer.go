// Package analysis runs the LLM analysis tasks over a finished transcript:
// a single summary in fast mode, or the full task battery plus a synthesized
// final report in advanced mode.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/llm"
)

// AdvancedTasks is the ordered battery run in advanced mode. Order matters:
// it drives progress reporting and the layout of the final report prompt.
var AdvancedTasks = []string{"summary", "intent", "actions", "emotion", "questions", "legal"}

// taskInstructions holds the per-task prompt instruction.
var taskInstructions = map[string]string{
	"summary":   "Provide a concise summary of the key discussion points, decisions, and outcomes from the following conversation transcript. Use bullet points for clarity.",
	"intent":    "Analyze and describe the primary intentions, goals, or motivations of each speaker (if discernible) in the conversation transcript. What does each party seem to want to achieve?",
	"actions":   "Identify and list all concrete action items, assigned tasks, or agreed-upon next steps mentioned in the transcript. Specify who is responsible if mentioned.",
	"emotion":   "Analyze the overall tone and predominant emotions conveyed in the conversation. Consider aspects like frustration, agreement, urgency, enthusiasm, etc.",
	"questions": "Extract and list the most significant unanswered questions, points of confusion, or requests for clarification raised during the conversation.",
	"legal":     "Identify any specific mentions of legal terms, contracts, agreements, compliance requirements, liabilities, or other potentially sensitive legal or contractual matters discussed.",
}

// finalSections fixes the labels and order of the preliminary results in the
// final report prompt.
var finalSections = []struct {
	task  string
	label string
}{
	{"summary", "Preliminary Summary"},
	{"intent", "Speaker Intentions/Goals"},
	{"actions", "Action Items/Decisions"},
	{"emotion", "Tone/Emotion Analysis"},
	{"questions", "Key Questions/Concerns"},
	{"legal", "Legal/Contractual Mentions"},
}

// Analyzer executes analysis tasks through the LLM runner.
type Analyzer struct {
	runner *llm.Runner
	llmCfg config.LLMConfig
	logger *slog.Logger
}

func NewAnalyzer(runner *llm.Runner, llmCfg config.LLMConfig, logger *slog.Logger) *Analyzer {
	return &Analyzer{runner: runner, llmCfg: llmCfg, logger: logger}
}

// RunTask executes one named analysis task on the transcript text. Unknown
// task names get a generic instruction so config-defined extra tasks still
// run.
func (a *Analyzer) RunTask(ctx context.Context, task, transcript string, cfg config.Pipeline) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("task %s: transcript text is empty", task)
	}

	prompt := buildTaskPrompt(task, transcript, cfg.ExtraContext)
	a.logger.Info("running analysis task", slog.String("task", task))

	out, err := a.runner.Generate(ctx, task, prompt, cfg.LLMModels, cfg.LLMTimeout(a.llmCfg.Timeout))
	if err != nil {
		return "", fmt.Errorf("analysis task %s: %w", task, err)
	}
	return out, nil
}

// RunFinal synthesizes the intermediate task results into one report. Failed
// tasks appear as "Not available" so the model knows the section is missing.
func (a *Analyzer) RunFinal(ctx context.Context, intermediate map[string]*string, cfg config.Pipeline) (string, error) {
	prompt := buildFinalPrompt(intermediate, cfg.ExtraContext)
	a.logger.Info("running final aggregating analysis")

	out, err := a.runner.Generate(ctx, "final", prompt, cfg.LLMModels, cfg.LLMFinalTimeout(a.llmCfg.FinalTimeout))
	if err != nil {
		return "", fmt.Errorf("final analysis: %w", err)
	}
	return out, nil
}

func buildTaskPrompt(task, transcript, extraContext string) string {
	instruction, ok := taskInstructions[task]
	if !ok {
		instruction = fmt.Sprintf("Perform a general analysis regarding '%s' on the following conversation transcript.", task)
	}

	var b strings.Builder
	b.WriteString("You are an AI assistant specialized in analyzing conversation transcripts for business or professional contexts.\n")
	if ctx := strings.TrimSpace(extraContext); ctx != "" {
		fmt.Fprintf(&b, "Consider the following context: %s\n", ctx)
	}
	fmt.Fprintf(&b, "\nYour Task: %s\n", instruction)
	b.WriteString("\n--- Start Transcript ---\n")
	b.WriteString(transcript)
	b.WriteString("\n--- End Transcript ---\n")
	b.WriteString("\nProvide your analysis below:")
	return b.String()
}

func buildFinalPrompt(intermediate map[string]*string, extraContext string) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant creating a final, synthesized analysis based on several preliminary analyses of a conversation transcript.\n")
	if ctx := strings.TrimSpace(extraContext); ctx != "" {
		fmt.Fprintf(&b, "Consider this overall context: %s\n", ctx)
	}

	b.WriteString("\nHere are the results from the preliminary analyses (use 'Not available' if a section is missing):\n")
	for _, section := range finalSections {
		content := "Not available"
		if v := intermediate[section.task]; v != nil && strings.TrimSpace(*v) != "" {
			content = *v
		}
		fmt.Fprintf(&b, "\n## %s:\n%s\n", section.label, content)
	}

	b.WriteString("\n---\n")
	b.WriteString("\nYour Task: Based *only* on the preliminary analyses provided above, synthesize these findings into a single, cohesive final report.\n")
	b.WriteString("Do not refer back to the original transcript data. Your goal is to integrate the provided pieces into a meaningful overview.\n")
	b.WriteString("Highlight the most critical aspects, potential risks or opportunities apparent from the combined analyses, and any logical next steps or conclusions that can be drawn.\n")
	b.WriteString("Structure your response logically (e.g., using clear paragraphs or thematic sections).\n")
	b.WriteString("\nFinal Synthesized Analysis:")
	return b.String()
}
