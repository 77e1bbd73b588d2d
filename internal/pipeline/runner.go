// Package pipeline orchestrates the two-phase job flow: intake (audio
// processing up to the review pause) and finalize (speaker mapping, rendering
// and analysis after review). Stage functions live in their own packages; this
// package owns sequencing, status transitions, and the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwildeboer/scribeline/internal/cache"
	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/internal/resultlog"
	"github.com/mwildeboer/scribeline/internal/transcribe"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// mirrorTTL bounds how long a job status lives in the redis mirror.
const mirrorTTL = 24 * time.Hour

// AudioProcessor runs the external transcription stage.
type AudioProcessor interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// NameDetector proposes speaker names from a diarized transcript.
type NameDetector interface {
	Detect(ctx context.Context, segments []models.Segment, cfg config.Pipeline, llmCfg config.LLMConfig) (models.ProposedMap, models.ContextSnippets, error)
}

// Analyzer runs the LLM analysis tasks of the finalize phase.
type Analyzer interface {
	RunTask(ctx context.Context, task, transcript string, cfg config.Pipeline) (string, error)
	RunFinal(ctx context.Context, intermediate map[string]*string, cfg config.Pipeline) (string, error)
}

// Runner executes pipeline phases on a bounded worker pool. Fire-and-forget:
// StartIntake and StartFinalize return immediately and the phase runs on a
// pool slot. Shutdown waits for in-flight phases to drain.
type Runner struct {
	store     *jobs.Store
	cfg       *config.Config
	processor AudioProcessor
	detector  NameDetector
	analyzer  Analyzer
	results   resultlog.Log
	mirror    cache.StatusMirror
	logger    *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewRunner(
	store *jobs.Store,
	cfg *config.Config,
	processor AudioProcessor,
	detector NameDetector,
	analyzer Analyzer,
	results resultlog.Log,
	mirror cache.StatusMirror,
	logger *slog.Logger,
) *Runner {
	poolSize := cfg.Workers.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Runner{
		store:     store,
		cfg:       cfg,
		processor: processor,
		detector:  detector,
		analyzer:  analyzer,
		results:   results,
		mirror:    mirror,
		logger:    logger,
		sem:       make(chan struct{}, poolSize),
	}
}

// StartIntake schedules phase 1 for the job and returns immediately.
func (r *Runner) StartIntake(id uuid.UUID) {
	r.launch(id, "intake", r.runIntake)
}

// StartFinalize schedules phase 2 with the reviewed speaker map and returns
// immediately.
func (r *Runner) StartFinalize(id uuid.UUID, speakerMap models.SpeakerMap) {
	r.launch(id, "finalize", func(ctx context.Context, id uuid.UUID) {
		r.runFinalize(ctx, id, speakerMap)
	})
}

func (r *Runner) launch(id uuid.UUID, phase string, fn func(ctx context.Context, id uuid.UUID)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		defer func() {
			if p := recover(); p != nil {
				msg := fmt.Sprintf("unexpected critical error in pipeline %s: %v", phase, p)
				r.logger.Error("pipeline panic",
					slog.String("job_id", id.String()),
					slog.String("phase", phase),
					slog.Any("panic", p))
				r.store.SetError(id, msg)
				r.mirrorJob(id)
			}
		}()

		r.logger.Info("pipeline phase started",
			slog.String("job_id", id.String()),
			slog.String("phase", phase))
		fn(context.Background(), id)
	}()
}

// Shutdown blocks until every in-flight phase finishes or ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

// setStatus updates the store and the external mirror together.
func (r *Runner) setStatus(id uuid.UUID, status models.Status) {
	r.store.SetStatus(id, status)
	r.mirrorJob(id)
}

func (r *Runner) setProgress(id uuid.UUID, progress int) {
	r.store.SetProgress(id, progress)
	r.mirrorJob(id)
}

func (r *Runner) mirrorJob(id uuid.UUID) {
	job, ok := r.store.Get(id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.mirror.SetJobStatus(ctx, id, string(job.Status), job.Progress, mirrorTTL); err != nil {
		r.logger.Debug("status mirror update failed",
			slog.String("job_id", id.String()),
			slog.Any("error", err))
	}
}
