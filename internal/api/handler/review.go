package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mwildeboer/scribeline/internal/api/response"
	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/pkg/models"
)

type reviewResponse struct {
	JobID           string                 `json:"job_id"`
	Transcript      []models.Segment       `json:"transcript"`
	ProposedMap     models.ProposedMap     `json:"proposed_speaker_map,omitempty"`
	ContextSnippets models.ContextSnippets `json:"context_snippets,omitempty"`
}

// NewGetReviewHandler returns the handler for GET /api/v1/jobs/{jobID}/review.
// It serves the intermediate transcript plus any name-detection artifacts for
// a job paused at the review gate.
func NewGetReviewHandler(store *jobs.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		job, ok := store.Get(id)
		if !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if job.Status != models.StatusWaitingForReview || job.ReviewArtifacts == nil {
			response.Error(w, http.StatusConflict, "JOB_NOT_WAITING",
				"Job is not waiting for review", map[string]string{"status": string(job.Status)})
			return
		}

		resp := reviewResponse{JobID: id.String()}

		if err := readJSONArtifact(cfg.Paths.Root, job.ReviewArtifacts.TranscriptPath, &resp.Transcript); err != nil {
			response.Error(w, http.StatusInternalServerError, "ARTIFACT_UNREADABLE",
				"Intermediate transcript could not be read", nil)
			return
		}
		if p := job.ReviewArtifacts.ProposedMapPath; p != nil {
			// Advisory artifacts: serve what parses, skip what does not.
			_ = readJSONArtifact(cfg.Paths.Root, *p, &resp.ProposedMap)
		}
		if p := job.ReviewArtifacts.ContextSnippetsPath; p != nil {
			_ = readJSONArtifact(cfg.Paths.Root, *p, &resp.ContextSnippets)
		}

		response.JSON(w, resp)
	}
}

// NewSubmitReviewHandler returns the handler for POST
// /api/v1/jobs/{jobID}/review. The approved speaker map starts the finalize
// phase; a null name means "keep the raw speaker ID".
func NewSubmitReviewHandler(store *jobs.Store, starter Starter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobID(w, r)
		if !ok {
			return
		}

		var req struct {
			SpeakerMap models.SpeakerMap `json:"speaker_map"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.SpeakerMap == nil {
			req.SpeakerMap = models.SpeakerMap{}
		}

		job, ok := store.Get(id)
		if !ok {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			return
		}
		if job.Status != models.StatusWaitingForReview {
			response.Error(w, http.StatusConflict, "JOB_NOT_WAITING",
				"Job is not waiting for review", map[string]string{"status": string(job.Status)})
			return
		}

		starter.StartFinalize(id, req.SpeakerMap)

		response.Accepted(w, jobRef{JobID: id, Status: job.Status})
	}
}

// readJSONArtifact loads a review artifact by its data-root-relative path.
// Paths that escape the root are rejected even if the store recorded them.
func readJSONArtifact(root, rel string, v any) error {
	if !filepath.IsLocal(rel) {
		return os.ErrPermission
	}
	raw, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
