package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwildeboer/scribeline/internal/api/response"
	"github.com/mwildeboer/scribeline/internal/jobs"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// NewListJobsHandler returns the handler for GET /api/v1/jobs. Jobs come back
// newest first; page and limit query parameters page through them.
func NewListJobsHandler(store *jobs.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := queryInt(r, "limit", defaultPageLimit)
		if limit < 1 {
			limit = defaultPageLimit
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}

		all := store.List()
		total := len(all)

		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}

		response.Collection(w, all[start:end], response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: end < total,
		})
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(store *jobs.Store) http.HandlerFunc {
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
		response.JSON(w, job)
	}
}

// NewStopJobHandler returns the handler for POST /api/v1/jobs/{jobID}/stop.
// The stop is cooperative: the pipeline exits at its next checkpoint.
func NewStopJobHandler(store *jobs.Store) http.HandlerFunc {
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
		if !store.RequestStop(id) {
			response.Error(w, http.StatusConflict, "JOB_NOT_STOPPABLE",
				"Job is already finished", map[string]string{"status": string(job.Status)})
			return
		}
		response.Accepted(w, map[string]any{
			"job_id":         id,
			"stop_requested": true,
		})
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
