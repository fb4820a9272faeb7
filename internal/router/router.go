package router

import (
	"net/http"

	"cardshop-bot/internal/handler"
	"cardshop-bot/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	CommandHandler  *handler.CommandHandler
	AdminMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	r.Get("/api/status", cfg.Handler.Status)

	// Payment gateway callbacks must stay reachable without credentials.
	r.Post("/webhook/payments", cfg.Handler.PaymentWebhook)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)

		// Command surface for the messaging front end
		if cfg.CommandHandler != nil {
			r.Post("/commands", cfg.CommandHandler.Execute)
		}

		// Admin endpoints (login-key guarded)
		r.Route("/admin", func(r chi.Router) {
			if cfg.AdminMiddleware != nil {
				r.Use(cfg.AdminMiddleware)
			}

			r.Post("/reload", cfg.Handler.Reload)
			r.Get("/sold", cfg.Handler.SoldReport)
			r.Get("/stats", cfg.Handler.Stats)
			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/balance", cfg.Handler.GetBalance)
				r.Put("/balance", cfg.Handler.SetBalance)
			})
		})
	})

	return r
}
