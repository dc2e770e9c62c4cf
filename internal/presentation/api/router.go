package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the engine's HTTP route table.
func NewRouter(h *Handler, metricsEnabled bool) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())

	r.Get("/health", h.Health)
	r.Post("/api/query", h.Query)
	r.Post("/api/agent/query", h.AgentQuery)
	if metricsEnabled {
		r.Get("/metrics", h.Metrics)
	}

	return r
}
