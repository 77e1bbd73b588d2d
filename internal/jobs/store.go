// Package jobs provides the in-memory job registry shared by the HTTP API and
// the pipeline workers. All state transitions go through the Store so that
// timestamp stamping and progress clamping happen in exactly one place.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwildeboer/scribeline/pkg/models"
)

// Store is a thread-safe in-memory registry of jobs. The zero value is not
// usable; construct with NewStore. A single Store instance is created in main
// and handed to every component that needs it.
type Store struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*models.Job)}
}

// Create registers a new job in QUEUED state with the given merged config and
// returns its generated ID.
func (s *Store) Create(cfg map[string]any) uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[id] = &models.Job{
		ID:        id,
		Status:    models.StatusQueued,
		Progress:  0,
		Config:    cloneConfig(cfg),
		CreatedAt: time.Now().UTC(),
	}
	return id
}

// Update describes a partial state change. Nil fields are left untouched.
type Update struct {
	Status          *models.Status
	Progress        *int
	Result          *models.Result
	ErrorMessage    *string
	ReviewArtifacts *models.ReviewArtifacts
}

// Apply performs an atomic partial update and stamps lifecycle timestamps:
// StartTime is set the first time the job is observed doing work (a running
// status, or any progress above zero), EndTime when it reaches a terminal
// status. Returns false if the job does not exist.
func (s *Store) Apply(id uuid.UUID, u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}

	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = clamp(*u.Progress, 0, 100)
	}
	if u.Result != nil {
		job.Result = cloneResult(u.Result)
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = clonePtr(u.ErrorMessage)
	}
	if u.ReviewArtifacts != nil {
		job.ReviewArtifacts = cloneArtifacts(u.ReviewArtifacts)
	}
	now := time.Now().UTC()
	if job.StartTime == nil && (job.Status.IsRunning() || job.Progress > 0) {
		job.StartTime = &now
	}
	if job.EndTime == nil && job.Status.IsTerminal() {
		job.EndTime = &now
	}
	return true
}

// SetStatus transitions the job to the given status.
func (s *Store) SetStatus(id uuid.UUID, status models.Status) bool {
	return s.Apply(id, Update{Status: &status})
}

// SetProgress sets the job's progress, clamped to [0, 100].
func (s *Store) SetProgress(id uuid.UUID, progress int) bool {
	return s.Apply(id, Update{Progress: &progress})
}

// SetResult records the final payload and marks the job COMPLETED at 100%.
func (s *Store) SetResult(id uuid.UUID, result *models.Result) bool {
	status := models.StatusCompleted
	progress := 100
	return s.Apply(id, Update{Status: &status, Progress: &progress, Result: result})
}

// SetError marks the job FAILED with the given message and resets progress.
func (s *Store) SetError(id uuid.UUID, msg string) bool {
	status := models.StatusFailed
	progress := 0
	return s.Apply(id, Update{Status: &status, Progress: &progress, ErrorMessage: &msg})
}

// AppendLog attaches a timestamped log line to the job's history.
func (s *Store) AppendLog(id uuid.UUID, level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Logs = append(job.Logs, models.LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: msg,
	})
	return true
}

// RequestStop flags the job for cooperative cancellation. The flag is only
// honored for jobs that are queued, running, or waiting for review; requesting
// a stop on a terminal job returns false and changes nothing.
func (s *Store) RequestStop(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || !job.Status.IsStoppable() {
		return false
	}
	job.StopRequested = true
	return true
}

// IsStopRequested reports whether a stop has been requested for the job.
// Unknown jobs report false.
func (s *Store) IsStopRequested(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	return ok && job.StopRequested
}

// Get returns an independent copy of the job. Mutating the returned value,
// its Config map, Logs, Result or ReviewArtifacts never touches the stored
// record.
func (s *Store) Get(id uuid.UUID) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return cloneJob(job), true
}

// Config returns an independent copy of the merged config captured at
// submission time.
func (s *Store) Config(id uuid.UUID) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneConfig(job.Config), true
}

// Delete removes a job record entirely. Intended for retention sweeps; an
// in-flight pipeline phase observes the removal at its next store call and
// aborts quietly. Returns false if the job does not exist.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns lightweight summaries of every job, newest first.
func (s *Store) List() []models.JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.JobSummary, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, summarize(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func summarize(job *models.Job) models.JobSummary {
	sum := models.JobSummary{
		ID:            job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		StartTime:     clonePtr(job.StartTime),
		EndTime:       clonePtr(job.EndTime),
		StopRequested: job.StopRequested,
		ErrorMessage:  clonePtr(job.ErrorMessage),
		CreatedAt:     job.CreatedAt,
	}
	if audio, ok := job.Config["input_audio"].(string); ok {
		sum.InputAudio = audio
	}
	return sum
}

func cloneJob(job *models.Job) models.Job {
	out := *job
	out.Config = cloneConfig(job.Config)
	out.Logs = append([]models.LogEntry(nil), job.Logs...)
	out.Result = cloneResult(job.Result)
	out.ErrorMessage = clonePtr(job.ErrorMessage)
	out.StartTime = clonePtr(job.StartTime)
	out.EndTime = clonePtr(job.EndTime)
	out.ReviewArtifacts = cloneArtifacts(job.ReviewArtifacts)
	return out
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	return cloneValue(cfg).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func cloneResult(r *models.Result) *models.Result {
	if r == nil {
		return nil
	}
	out := *r
	out.IntermediateTranscriptPath = clonePtr(r.IntermediateTranscriptPath)
	out.FinalTranscriptPath = clonePtr(r.FinalTranscriptPath)
	out.HTMLTranscriptPath = clonePtr(r.HTMLTranscriptPath)
	out.SummaryPath = clonePtr(r.SummaryPath)
	out.AdvancedAnalysisPath = clonePtr(r.AdvancedAnalysisPath)
	out.Summary = clonePtr(r.Summary)
	out.Intent = clonePtr(r.Intent)
	out.Actions = clonePtr(r.Actions)
	out.Emotion = clonePtr(r.Emotion)
	out.Questions = clonePtr(r.Questions)
	out.Legal = clonePtr(r.Legal)
	out.FinalAnalysis = clonePtr(r.FinalAnalysis)
	if r.FinalSegments != nil {
		out.FinalSegments = make([]models.Segment, len(r.FinalSegments))
		for i, seg := range r.FinalSegments {
			seg.Words = append([]models.Word(nil), seg.Words...)
			out.FinalSegments[i] = seg
		}
	}
	if r.SpeakerMap != nil {
		out.SpeakerMap = make(models.SpeakerMap, len(r.SpeakerMap))
		for k, v := range r.SpeakerMap {
			out.SpeakerMap[k] = clonePtr(v)
		}
	}
	return &out
}

func cloneArtifacts(a *models.ReviewArtifacts) *models.ReviewArtifacts {
	if a == nil {
		return nil
	}
	out := *a
	out.ProposedMapPath = clonePtr(a.ProposedMapPath)
	out.ContextSnippetsPath = clonePtr(a.ContextSnippetsPath)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
