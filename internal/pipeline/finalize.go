package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mwildeboer/scribeline/internal/analysis"
	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/internal/render"
	"github.com/mwildeboer/scribeline/internal/resultlog"
	"github.com/mwildeboer/scribeline/internal/speakermap"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// Phase 2 progress milestones.
const (
	progressAfterMapping  = 50
	progressAfterReformat = 55
	progressAfterAnalysis = 95
)

// Final artifact names, written under results/<job-id>/ except for the final
// transcript which sits next to the intermediate one.
const (
	finalTranscriptName  = "final_transcript.json"
	htmlTranscriptName   = "transcript.html"
	summaryName          = "summary.txt"
	advancedAnalysisName = "advanced_analysis.json"
)

func (r *Runner) runFinalize(ctx context.Context, id uuid.UUID, speakerMap models.SpeakerMap) {
	// The result row is written no matter how this phase ends. The recover
	// below runs first, so a panic is recorded as FAILED before the row write.
	defer r.appendResultRow(id)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("finalize panic",
				slog.String("job_id", id.String()),
				slog.Any("panic", p))
			r.store.SetError(id, fmt.Sprintf("unexpected critical error in pipeline finalize: %v", p))
			r.mirrorJob(id)
		}
	}()

	err := r.finalize(ctx, id, speakerMap)
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrStopRequested):
		r.store.AppendLog(id, "WARNING", "Pipeline part 2 stopped by user request.")
		r.setStatus(id, models.StatusStopped)
		r.logger.Info("finalize stopped cleanly",
			slog.String("job_id", id.String()),
			slog.Any("reason", err))
	default:
		r.logger.Error("finalize failed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
		r.store.SetError(id, fmt.Sprintf("Pipeline part 2 failed: %v", err))
		r.mirrorJob(id)
	}
}

func (r *Runner) finalize(ctx context.Context, id uuid.UUID, speakerMap models.SpeakerMap) error {
	job, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	p := config.PipelineFromMap(job.Config)

	if job.ReviewArtifacts == nil || job.ReviewArtifacts.TranscriptPath == "" {
		return fmt.Errorf("intermediate transcript path missing, cannot finalize")
	}
	relIntermediate := job.ReviewArtifacts.TranscriptPath
	absIntermediate := filepath.Join(r.cfg.Paths.Root, relIntermediate)

	r.store.AppendLog(id, "INFO", "Pipeline part 2 started.")

	// Load the intermediate transcript.
	raw, err := os.ReadFile(absIntermediate)
	if err != nil {
		return fmt.Errorf("intermediate transcript not found: %s", relIntermediate)
	}
	var segments []models.Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return fmt.Errorf("intermediate transcript is malformed: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("intermediate transcript is empty")
	}
	if err := r.store.CheckStop(id, "loading intermediate transcript"); err != nil {
		return err
	}

	// Apply the reviewed speaker map.
	r.setStatus(id, models.StatusMappingSpeakers)
	finalSegments, counts := speakermap.Apply(segments, speakerMap)
	r.store.AppendLog(id, "SUCCESS", fmt.Sprintf(
		"Final speaker name assignment complete (mapped=%d fallback=%d missing=%d).",
		counts.Mapped, counts.Fallback, counts.Missing))
	r.setProgress(id, progressAfterMapping)

	// Save the final transcript JSON. Failure here is soft; analysis works
	// from the in-memory segments.
	relFinal := filepath.Join(filepath.Dir(relIntermediate), finalTranscriptName)
	finalSaved := false
	if err := writeJSON(filepath.Join(r.cfg.Paths.Root, relFinal), finalSegments); err != nil {
		r.store.AppendLog(id, "WARNING",
			fmt.Sprintf("Failed to save final transcript JSON: %v", err))
	} else {
		finalSaved = true
		r.store.AppendLog(id, "INFO", "Final transcript JSON saved: "+relFinal)
	}
	if err := r.store.CheckStop(id, "saving final transcript"); err != nil {
		return err
	}

	// Render the shareable HTML document. Also soft: a rendering problem must
	// not cost the analysis results.
	r.setStatus(id, models.StatusReformattingHTML)
	relHTML := filepath.Join("results", id.String(), htmlTranscriptName)
	htmlSaved := false
	title := filepath.Base(p.InputAudio)
	if title == "." || title == "" {
		title = "Transcript"
	}
	if html, err := render.HTML(title, finalSegments); err != nil {
		r.store.AppendLog(id, "WARNING", fmt.Sprintf("HTML transcript generation failed: %v", err))
	} else if err := writeFile(filepath.Join(r.cfg.Paths.Root, relHTML), html); err != nil {
		r.store.AppendLog(id, "WARNING", fmt.Sprintf("Failed to save HTML transcript: %v", err))
	} else {
		htmlSaved = true
		r.store.AppendLog(id, "SUCCESS", "HTML transcript saved: "+relHTML)
	}
	r.setProgress(id, progressAfterReformat)
	if err := r.store.CheckStop(id, "HTML reformatting"); err != nil {
		return err
	}

	// LLM analysis.
	r.setStatus(id, models.StatusAnalyzing)
	text := render.Text(finalSegments)

	var (
		summaryContent *string
		taskResults    map[string]*string
		finalAnalysis  *string
		summarySaved   bool
		advancedSaved  bool
	)
	relSummary := filepath.Join("results", id.String(), summaryName)
	relAdvanced := filepath.Join("results", id.String(), advancedAnalysisName)

	if text == "" {
		r.store.AppendLog(id, "WARNING", "No text content in final transcript, skipping LLM analysis.")
	} else {
		switch p.Mode {
		case config.ModeFast:
			out, err := r.analyzer.RunTask(ctx, "summary", text, p)
			if err != nil {
				return fmt.Errorf("summary generation failed: %w", err)
			}
			summaryContent = &out
			if err := writeFile(filepath.Join(r.cfg.Paths.Root, relSummary), out); err != nil {
				r.store.AppendLog(id, "WARNING", fmt.Sprintf("Failed to save summary file: %v", err))
			} else {
				summarySaved = true
				r.store.AppendLog(id, "SUCCESS", "Summary saved: "+relSummary)
			}

		case config.ModeAdvanced:
			taskResults = make(map[string]*string, len(analysis.AdvancedTasks))
			totalTasks := len(analysis.AdvancedTasks) + 1

			for i, task := range analysis.AdvancedTasks {
				if err := r.store.CheckStop(id, fmt.Sprintf("advanced LLM task '%s'", task)); err != nil {
					return err
				}
				r.store.AppendLog(id, "INFO", "Running LLM task: "+task)

				// Individual tasks are soft failures; the final aggregate
				// decides whether the job fails.
				if out, err := r.analyzer.RunTask(ctx, task, text, p); err != nil {
					taskResults[task] = nil
					r.store.AppendLog(id, "WARNING",
						fmt.Sprintf("LLM task '%s' failed: %v", task, err))
				} else {
					taskResults[task] = &out
					r.store.AppendLog(id, "SUCCESS", fmt.Sprintf("LLM task '%s' finished.", task))
				}

				progress := progressAfterReformat +
					(i+1)*(progressAfterAnalysis-progressAfterReformat)/totalTasks
				r.setProgress(id, progress)
			}

			if err := r.store.CheckStop(id, "final LLM analysis"); err != nil {
				return err
			}
			r.store.AppendLog(id, "INFO", "Running final aggregating LLM analysis...")
			out, err := r.analyzer.RunFinal(ctx, taskResults, p)
			if err != nil {
				return fmt.Errorf("final aggregating analysis failed: %w", err)
			}
			finalAnalysis = &out
			summaryContent = taskResults["summary"]
			r.store.AppendLog(id, "SUCCESS", "Final aggregating analysis completed.")

			advanced := map[string]*string{"final_analysis": finalAnalysis}
			for task, result := range taskResults {
				advanced[task] = result
			}
			if err := writeJSON(filepath.Join(r.cfg.Paths.Root, relAdvanced), advanced); err != nil {
				r.store.AppendLog(id, "WARNING",
					fmt.Sprintf("Failed to save advanced analysis JSON: %v", err))
			} else {
				advancedSaved = true
				r.store.AppendLog(id, "SUCCESS", "Advanced analysis results saved: "+relAdvanced)
			}

		default:
			r.store.AppendLog(id, "WARNING",
				fmt.Sprintf("Unknown analysis mode '%s', skipping LLM analysis.", p.Mode))
		}
	}

	r.setProgress(id, progressAfterAnalysis)
	if err := r.store.CheckStop(id, "LLM analysis completion"); err != nil {
		return err
	}

	// Assemble the result payload. Artifact paths are nil when the file was
	// not produced.
	result := &models.Result{
		IntermediateTranscriptPath: &relIntermediate,
		FinalSegments:              finalSegments,
		SpeakerMap:                 speakerMap,
		Summary:                    summaryContent,
		FinalAnalysis:              finalAnalysis,
	}
	if finalSaved {
		result.FinalTranscriptPath = &relFinal
	}
	if htmlSaved {
		result.HTMLTranscriptPath = &relHTML
	}
	if summarySaved {
		result.SummaryPath = &relSummary
	}
	if advancedSaved {
		result.AdvancedAnalysisPath = &relAdvanced
	}
	if taskResults != nil {
		result.Intent = taskResults["intent"]
		result.Actions = taskResults["actions"]
		result.Emotion = taskResults["emotion"]
		result.Questions = taskResults["questions"]
		result.Legal = taskResults["legal"]
	}

	r.store.SetResult(id, result)
	r.mirrorJob(id)

	if job.StartTime != nil {
		r.store.AppendLog(id, "SUCCESS", fmt.Sprintf(
			"Pipeline completed successfully. Total time: %.1fs.",
			time.Since(*job.StartTime).Seconds()))
	} else {
		r.store.AppendLog(id, "SUCCESS", "Pipeline completed successfully.")
	}
	return nil
}

// appendResultRow is the finally-step: one idempotent row per job, written
// whether the job completed, failed, or was stopped.
func (r *Runner) appendResultRow(id uuid.UUID) {
	job, ok := r.store.Get(id)
	if !ok {
		r.logger.Error("cannot write result row, job not found",
			slog.String("job_id", id.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.results.Append(ctx, resultlog.NewEntry(job)); err != nil {
		r.logger.Error("result log write failed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
		r.store.AppendLog(id, "WARNING", fmt.Sprintf("Result log write failed: %v", err))
		return
	}
	r.store.AppendLog(id, "INFO", "Result log write complete.")
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
