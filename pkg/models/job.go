// Package models contains shared data models used across the scribeline codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job lifecycle state. Transitions are driven exclusively by the
// pipeline orchestrators and the job store; terminal states are absorbing.
type Status string

const (
	StatusQueued           Status = "QUEUED"
	StatusRunning          Status = "RUNNING"
	StatusProcessingAudio  Status = "PROCESSING_AUDIO"
	StatusDetectingNames   Status = "DETECTING_NAMES"
	StatusWaitingForReview Status = "WAITING_FOR_REVIEW"
	StatusMappingSpeakers  Status = "MAPPING_SPEAKERS"
	StatusReformattingHTML Status = "REFORMATTING_HTML"
	StatusAnalyzing        Status = "ANALYZING"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusStopped          Status = "STOPPED"
)

// IsTerminal reports whether s is an absorbing state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// IsRunning reports whether s represents active pipeline execution.
// Entering a running state stamps the job's start time.
func (s Status) IsRunning() bool {
	switch s {
	case StatusRunning, StatusProcessingAudio, StatusDetectingNames,
		StatusMappingSpeakers, StatusReformattingHTML, StatusAnalyzing:
		return true
	default:
		return false
	}
}

// IsStoppable reports whether a stop request is meaningful in state s.
func (s Status) IsStoppable() bool {
	return s == StatusQueued || s == StatusWaitingForReview || s.IsRunning()
}

// LogEntry is one line in a job's append-only log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ReviewArtifacts holds the paths to the intermediate files that the human
// review step reads. Only the transcript is required; the proposed map and
// context snippets exist only when name detection produced them.
type ReviewArtifacts struct {
	TranscriptPath      string  `json:"intermediate_transcript_path"`
	ProposedMapPath     *string `json:"proposed_map_path"`
	ContextSnippetsPath *string `json:"context_snippets_path"`
}

// Job is one end-to-end pipeline run for one audio input. The job store owns
// the canonical copy; every read through the store returns an independent copy
// so callers can never corrupt orchestrator-owned state.
type Job struct {
	ID              uuid.UUID        `json:"job_id"`
	Status          Status           `json:"status"`
	Progress        int              `json:"progress"`
	Config          map[string]any   `json:"config"`
	Logs            []LogEntry       `json:"logs"`
	Result          *Result          `json:"result,omitempty"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	StartTime       *time.Time       `json:"start_time,omitempty"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	StopRequested   bool             `json:"stop_requested"`
	ReviewArtifacts *ReviewArtifacts `json:"review_artifacts,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// JobSummary is the lightweight list-view projection of a job.
type JobSummary struct {
	ID            uuid.UUID  `json:"job_id"`
	Status        Status     `json:"status"`
	Progress      int        `json:"progress"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	StopRequested bool       `json:"stop_requested"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	InputAudio    string     `json:"input_audio,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
