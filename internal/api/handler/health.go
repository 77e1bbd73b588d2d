package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mwildeboer/scribeline/internal/api/response"
)

// Pinger checks one backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /api/v1/health. The result log
// is the only hard dependency; a failing status mirror degrades the report
// without failing it.
func NewHealthHandler(resultLog, mirror Pinger, provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		components := map[string]string{
			"result_log":   "ok",
			"cache":        "ok",
			"llm_provider": provider,
		}
		status := "ok"
		httpStatus := http.StatusOK

		if err := resultLog.Ping(ctx); err != nil {
			components["result_log"] = err.Error()
			status = "unavailable"
			httpStatus = http.StatusServiceUnavailable
		}
		if err := mirror.Ping(ctx); err != nil {
			components["cache"] = err.Error()
			if status == "ok" {
				status = "degraded"
			}
		}

		response.Status(w, httpStatus, map[string]any{
			"status":     status,
			"components": components,
		})
	}
}
