package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/gyn-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gyn-triage/internal/http/middleware"
	"github.com/wolfman30/gyn-triage/internal/webchat"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *handlers.SessionsHandler
	Webchat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// StaffAuthSecret enables JWT auth on /api and /ws when set.
	StaffAuthSecret string
	// MessageLimiter throttles chat turns per client when set.
	MessageLimiter *httpmiddleware.RateLimiter

	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(staff chi.Router) {
		if cfg.StaffAuthSecret != "" {
			staff.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
		}

		if cfg.Sessions != nil {
			staff.Route("/api/sessions", func(r chi.Router) {
				r.Post("/", cfg.Sessions.CreateSession)
				r.Get("/", cfg.Sessions.ListSessions)
				r.Delete("/inactive", cfg.Sessions.DeleteInactive)
				r.Get("/{sessionID}", cfg.Sessions.GetSession)

				if cfg.MessageLimiter != nil {
					r.With(httpmiddleware.RateLimit(cfg.MessageLimiter)).Post("/{sessionID}/messages", cfg.Sessions.PostMessage)
				} else {
					r.Post("/{sessionID}/messages", cfg.Sessions.PostMessage)
				}
			})
		}
		if cfg.Webchat != nil {
			staff.Get("/ws/{sessionID}", cfg.Webchat.HandleWebSocket)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]any{"status": "ok"}
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["checks"] = failed
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
