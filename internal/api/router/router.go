package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/assistant"
	httpmiddleware "github.com/nirajstha/bookpilot/internal/http/middleware"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AssistantHandler    *assistant.Handler
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Chat turns fan out into completion and embedding calls, so the chat
	// route carries its own rate limit.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AssistantHandler != nil {
		r.Route("/assistant", func(r chi.Router) {
			chatRoute := r.With()
			if cfg.ChatRateLimit > 0 {
				chatRoute = r.With(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst))
			}
			chatRoute.Post("/chat", cfg.AssistantHandler.Chat)
			r.Post("/reindex", cfg.AssistantHandler.Reindex)
			r.Post("/knowledge", cfg.AssistantHandler.AddKnowledge)
		})
	}

	if cfg.AppointmentsHandler != nil {
		r.Get("/users/{userID}/appointments", cfg.AppointmentsHandler.History)
	}

	return r
}
