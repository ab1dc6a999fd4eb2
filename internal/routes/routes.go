// internal/routes/routes.go
package routes

import (
	"time"

	"usage-metering-backend/internal/config"
	"usage-metering-backend/internal/handlers"
	"usage-metering-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Track  *handlers.TrackHandler
	Usage  *handlers.UsageHandler
}

func SetupRoutes(h *Handlers, apiKeys config.APIKeyConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger())
	r.Use(middleware.Recoverer())
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	// Health check routes
	r.Get("/", h.Health.HealthCheck)
	r.Get("/health", h.Health.HealthCheck)

	// API routes, all behind the key gate (write and read paths alike)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyGate(apiKeys))

		r.Route("/usage", func(r chi.Router) {
			// Ingestion: business operations report completed work here
			r.Post("/track", h.Track.TrackUsage)

			// Analytics reads
			r.Get("/billing-summary", h.Usage.GetBillingSummary)
			r.Get("/analytics", h.Usage.GetUsageAnalytics)
			r.Get("/records", h.Usage.ListUsageRecords)
			r.Get("/operations", h.Usage.GetOperationStats)
		})
	})

	return r
}
