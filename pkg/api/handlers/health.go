// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/personacore/personacore/pkg/api/response"
	"github.com/personacore/personacore/pkg/personality"
	"github.com/personacore/personacore/pkg/store"
	"github.com/personacore/personacore/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	system  *personality.System
	backend store.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(system *personality.System, backend store.Store) *HealthHandler {
	return &HealthHandler{
		system:  system,
		backend: backend,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The service stays
// ready while degraded: memory keeps serving from RAM and replays writes
// once the backend returns.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.backend != nil {
		if err := h.backend.Ping(r.Context()); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready": false,
				"error": err.Error(),
			})
			return
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"ready":    true,
		"degraded": h.system.Degraded(),
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	emo := h.system.Emotion()
	response.JSON(w, http.StatusOK, map[string]any{
		"version":   version.Version,
		"emotion":   emo.State,
		"intensity": emo.Intensity,
		"degraded":  h.system.Degraded(),
	})
}
