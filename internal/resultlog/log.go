// Package resultlog persists one wide row per finished job for later model
// training and auditing. The row is written exactly once per job regardless
// of how often Append is called.
package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/pkg/models"
)

var ErrMissingJobID = errors.New("result log entry has no job id")

// Log is the persistence interface for finished jobs. Append is idempotent on
// the job ID: a second call for the same job is a no-op, not an error.
type Log interface {
	Append(ctx context.Context, entry Entry) error
	Ping(ctx context.Context) error
	Close() error
}

// Entry is the flattened wide row. Pointer fields map to NULL columns.
type Entry struct {
	JobID        string
	AudioPath    string
	StartTime    *time.Time
	EndTime      *time.Time
	Duration     *float64
	Status       string
	ErrorMessage *string

	WhisperModel  *string
	ComputeType   *string
	Language      *string
	Mode          *string
	ContextPrompt *string

	SpeakerMapJSON *string
	TranscriptJSON *string
	HTMLPath       *string
	Summary        *string
	Intent         *string
	Actions        *string
	Emotion        *string
	Questions      *string
	Legal          *string
	FinalAnalysis  *string
	AdvancedPath   *string
	SummaryPath    *string
	RawPath        *string

	// LogFile overrides the sqlite database file, relative to the data root.
	// The postgres backend ignores it.
	LogFile string
}

// NewEntry flattens a job snapshot into a row using the config captured at
// submission time.
func NewEntry(job models.Job) Entry {
	cfg := config.PipelineFromMap(job.Config)

	e := Entry{
		JobID:        job.ID.String(),
		AudioPath:    cfg.InputAudio,
		StartTime:    job.StartTime,
		EndTime:      job.EndTime,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		LogFile:      cfg.DatabaseFile,
	}

	if job.StartTime != nil && job.EndTime != nil {
		d := job.EndTime.Sub(*job.StartTime).Seconds()
		e.Duration = &d
	}

	e.WhisperModel = nullable(cfg.WhisperModel)
	e.ComputeType = nullable(cfg.ComputeType)
	e.Language = nullable(cfg.Language)
	e.Mode = nullable(cfg.Mode)
	e.ContextPrompt = nullable(cfg.ExtraContext)

	if r := job.Result; r != nil {
		e.HTMLPath = r.HTMLTranscriptPath
		e.Summary = r.Summary
		e.Intent = r.Intent
		e.Actions = r.Actions
		e.Emotion = r.Emotion
		e.Questions = r.Questions
		e.Legal = r.Legal
		e.FinalAnalysis = r.FinalAnalysis
		e.AdvancedPath = r.AdvancedAnalysisPath
		e.SummaryPath = r.SummaryPath
		e.RawPath = r.IntermediateTranscriptPath

		if len(r.FinalSegments) > 0 {
			if raw, err := json.Marshal(r.FinalSegments); err == nil {
				s := string(raw)
				e.TranscriptJSON = &s
			}
		}
		if len(r.SpeakerMap) > 0 {
			if raw, err := json.Marshal(r.SpeakerMap); err == nil {
				s := string(raw)
				e.SpeakerMapJSON = &s
			}
		}
	}
	return e
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// New constructs the configured backend.
func New(ctx context.Context, cfg config.ResultLogConfig, paths config.PathsConfig, logger *slog.Logger) (Log, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteLog(paths.Root, cfg.SQLiteFile, logger), nil
	case "postgres":
		return NewPostgresLog(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown result log driver %q: must be one of sqlite, postgres", cfg.Driver)
	}
}
