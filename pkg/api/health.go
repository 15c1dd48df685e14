package api

import (
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/go-chi/chi/v5"
)

// registerHealthRoutes mounts the health, readiness, liveness and metrics
// endpoints.
func registerHealthRoutes(r chi.Router) {
	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())
}
