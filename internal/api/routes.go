package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router and all endpoints.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/comments", h.CreateComment)
		r.Post("/comments/{id}/approve", h.ApproveComment)
		r.Post("/comments/{id}/spam", h.MarkSpam)
		r.Post("/comments/{id}/delete", h.DeleteComment)
		r.Post("/reports", h.CreateReport)

		r.Get("/webhook-events", h.ListWebhookEvents)
		r.Post("/webhook-events/{id}/redeliver", h.RedeliverWebhookEvent)
	})

	return r
}
