package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwildeboer/scribeline/internal/api"
)

func TestRouterNotImplementedPlaceholder(t *testing.T) {
	srv := api.NewRouter(api.Dependencies{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusNotImplemented, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_IMPLEMENTED", resp.Error.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	srv := api.NewRouter(api.Dependencies{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterRecoversFromHandlerPanic(t *testing.T) {
	srv := api.NewRouter(api.Dependencies{
		HealthHandler: func(http.ResponseWriter, *http.Request) {
			panic("broken handler")
		},
	})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}
