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

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/internal/transcribe"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// Phase 1 progress milestones.
const (
	progressStart           = 5
	progressAfterAudio      = 35
	progressAfterNameDetect = 45
	progressWaitingReview   = 48
)

// Default intermediate artifact names. The proposed map and context snippets
// always sit next to the intermediate transcript.
const (
	intermediateTranscriptName = "intermediate_transcript.json"
	proposedMapName            = "intermediate_proposed_map.json"
	contextSnippetsName        = "intermediate_context.json"
)

func (r *Runner) runIntake(ctx context.Context, id uuid.UUID) {
	err := r.intake(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrStopRequested):
		r.store.AppendLog(id, "WARNING", "Pipeline part 1 stopped by user request.")
		r.setStatus(id, models.StatusStopped)
		r.logger.Info("intake stopped cleanly",
			slog.String("job_id", id.String()),
			slog.Any("reason", err))
	default:
		r.logger.Error("intake failed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
		r.store.SetError(id, fmt.Sprintf("Pipeline part 1 failed: %v", err))
		r.mirrorJob(id)
	}
}

func (r *Runner) intake(ctx context.Context, id uuid.UUID) error {
	r.store.Apply(id, statusProgress(models.StatusRunning, progressStart))
	r.mirrorJob(id)
	r.store.AppendLog(id, "INFO", "Pipeline part 1 started.")

	cfgMap, ok := r.store.Config(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	p := config.PipelineFromMap(cfgMap)

	if err := r.store.CheckStop(id, "config loading"); err != nil {
		return err
	}

	// Validate the input audio. The API layer already confined the path to
	// the data root; existence can still have changed since submission.
	if p.InputAudio == "" {
		return fmt.Errorf("configuration error: 'input_audio' path missing")
	}
	absAudio := filepath.Join(r.cfg.Paths.Root, p.InputAudio)
	if info, err := os.Stat(absAudio); err != nil || info.IsDir() {
		return fmt.Errorf("input audio file not found: %s", p.InputAudio)
	}

	// Prepare intermediate artifact paths, relative to the data root.
	relTranscript := p.TranscriptPath
	if relTranscript == "" {
		relTranscript = filepath.Join("transcripts", id.String(), intermediateTranscriptName)
	}
	relDir := filepath.Dir(relTranscript)
	absTranscript := filepath.Join(r.cfg.Paths.Root, relTranscript)
	if err := os.MkdirAll(filepath.Dir(absTranscript), 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	// Audio processing.
	r.setStatus(id, models.StatusProcessingAudio)
	audioStart := time.Now()
	res, err := r.processor.Run(ctx, transcribe.Request{
		AudioPath:      absAudio,
		OutputDir:      filepath.Dir(absTranscript),
		Model:          p.WhisperModel,
		ComputeType:    p.ComputeType,
		Language:       p.Language,
		WordTimestamps: p.WordTimestamps,
	})
	if err != nil {
		return fmt.Errorf("audio processing: %w", err)
	}
	r.store.AppendLog(id, "SUCCESS",
		fmt.Sprintf("Audio processing finished (%.1fs).", time.Since(audioStart).Seconds()))

	if err := writeJSON(absTranscript, res.Segments); err != nil {
		return fmt.Errorf("save intermediate transcript: %w", err)
	}
	r.store.AppendLog(id, "INFO", "Intermediate transcript saved: "+relTranscript)

	r.setProgress(id, progressAfterAudio)
	if err := r.store.CheckStop(id, "audio processing completion"); err != nil {
		return err
	}

	review := models.ReviewArtifacts{TranscriptPath: relTranscript}

	// Optional name detection. Advisory only: any failure here logs a warning
	// and the job still reaches review with an empty proposal.
	if p.NameDetection {
		r.setStatus(id, models.StatusDetectingNames)
		detectStart := time.Now()

		proposed, snippets, err := r.detector.Detect(ctx, res.Segments, p, r.cfg.LLM)
		if err != nil {
			r.store.AppendLog(id, "WARNING",
				fmt.Sprintf("Speaker name detection failed (non-fatal): %v", err))
		} else {
			r.store.AppendLog(id, "SUCCESS",
				fmt.Sprintf("Name detection finished (%.1fs).", time.Since(detectStart).Seconds()))

			if len(proposed) > 0 {
				relMap := filepath.Join(relDir, proposedMapName)
				if err := writeJSON(filepath.Join(r.cfg.Paths.Root, relMap), proposed); err != nil {
					r.store.AppendLog(id, "WARNING",
						fmt.Sprintf("Failed to save proposed speaker map: %v", err))
				} else {
					review.ProposedMapPath = &relMap
					r.store.AppendLog(id, "INFO", "Proposed speaker map saved: "+relMap)
				}
			}
			if len(snippets) > 0 {
				relSnippets := filepath.Join(relDir, contextSnippetsName)
				if err := writeJSON(filepath.Join(r.cfg.Paths.Root, relSnippets), snippets); err != nil {
					r.store.AppendLog(id, "WARNING",
						fmt.Sprintf("Failed to save context snippets: %v", err))
				} else {
					review.ContextSnippetsPath = &relSnippets
					r.store.AppendLog(id, "INFO", "Context snippets saved: "+relSnippets)
				}
			}
		}

		r.setProgress(id, progressAfterNameDetect)
		if err := r.store.CheckStop(id, "speaker name detection"); err != nil {
			return err
		}
	} else {
		r.store.AppendLog(id, "INFO", "Automatic speaker name detection disabled, skipping.")
	}

	// Pause for human review.
	r.store.AppendLog(id, "INFO", "Part 1 processing complete. Ready for review.")
	update := statusProgress(models.StatusWaitingForReview, progressWaitingReview)
	update.ReviewArtifacts = &review
	if !r.store.Apply(id, update) {
		// The record was removed mid-run (retention sweep). Nothing left to
		// update, so abort quietly.
		r.logger.Warn("job removed before review state could be set",
			slog.String("job_id", id.String()))
		return nil
	}
	r.mirrorJob(id)
	return nil
}

func statusProgress(status models.Status, progress int) jobs.Update {
	return jobs.Update{Status: &status, Progress: &progress}
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
