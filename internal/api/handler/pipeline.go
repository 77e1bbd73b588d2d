// Package handler contains the HTTP handlers for the job API. Handlers depend
// on small interfaces so tests can script the pipeline without running it.
package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mwildeboer/scribeline/internal/api/response"
	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/pkg/models"
)

// Starter launches pipeline phases for a job.
type Starter interface {
	StartIntake(id uuid.UUID)
	StartFinalize(id uuid.UUID, speakerMap models.SpeakerMap)
}

// NewSubmitHandler returns the handler for POST /api/v1/pipeline. The request
// body is a JSON object of per-job overrides that is merged over the server's
// pipeline defaults.
func NewSubmitHandler(store *jobs.Store, starter Starter, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var overrides map[string]any
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		merged := config.Merge(cfg.Pipeline.Map(), overrides)
		p := config.PipelineFromMap(merged)

		if p.InputAudio == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"input_audio is required", nil)
			return
		}
		if !filepath.IsLocal(p.InputAudio) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"input_audio must be a relative path inside the data directory", nil)
			return
		}
		if info, err := os.Stat(filepath.Join(cfg.Paths.Root, p.InputAudio)); err != nil || info.IsDir() {
			response.Error(w, http.StatusBadRequest, "AUDIO_NOT_FOUND",
				"input_audio does not exist", map[string]string{"input_audio": p.InputAudio})
			return
		}
		if p.Mode != config.ModeFast && p.Mode != config.ModeAdvanced {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"mode must be 'fast' or 'advanced'", nil)
			return
		}

		id := store.Create(merged)
		starter.StartIntake(id)

		response.Accepted(w, jobRef{JobID: id, Status: models.StatusQueued})
	}
}

type jobRef struct {
	JobID  uuid.UUID     `json:"job_id"`
	Status models.Status `json:"status"`
}
