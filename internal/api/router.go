// Package api wires the HTTP surface of the scribeline server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/mwildeboer/scribeline/internal/api/middleware"
	"github.com/mwildeboer/scribeline/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler       http.HandlerFunc
	SubmitHandler       http.HandlerFunc
	ListJobsHandler     http.HandlerFunc
	GetJobHandler       http.HandlerFunc
	StopJobHandler      http.HandlerFunc
	GetReviewHandler    http.HandlerFunc
	SubmitReviewHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Post("/api/v1/pipeline", orNotImplemented(deps.SubmitHandler))

	r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
	r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
	r.Post("/api/v1/jobs/{jobID}/stop", orNotImplemented(deps.StopJobHandler))

	r.Get("/api/v1/jobs/{jobID}/review", orNotImplemented(deps.GetReviewHandler))
	r.Post("/api/v1/jobs/{jobID}/review", orNotImplemented(deps.SubmitReviewHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
