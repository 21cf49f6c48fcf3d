// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/personacore/personacore/config"
	"github.com/personacore/personacore/pkg/api/handlers"
	"github.com/personacore/personacore/pkg/api/middleware"
	"github.com/personacore/personacore/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Personality handles the personality system endpoints
	Personality *handlers.PersonalityHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Personality != nil {
			r.Post("/content", handlers.Personality.ProcessContent)
			r.Post("/actions", handlers.Personality.RecordAction)
			r.Post("/engagement", handlers.Personality.RecordEngagement)
			r.Get("/context", handlers.Personality.GetContext)
			r.Get("/emotion", handlers.Personality.GetEmotion)
			r.Post("/save", handlers.Personality.SaveState)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}
