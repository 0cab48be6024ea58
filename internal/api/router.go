package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/soless-ai/soless/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Conversations
	CreateConversation http.HandlerFunc
	GetConversation    http.HandlerFunc
	SendMessage        http.HandlerFunc

	// Documents
	UploadDocument http.HandlerFunc
	ListDocuments  http.HandlerFunc
	DeleteDocument http.HandlerFunc

	// Admin
	GetPersona        http.HandlerFunc
	ReplacePersona    http.HandlerFunc
	GetBotSettings    http.HandlerFunc
	UpdateBotSettings http.HandlerFunc
	PreviewKnowledge  http.HandlerFunc
}

// HealthCheck probes one dependency for the readiness endpoint.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// Checks are keyed by dependency name; only configured dependencies appear.
	Checks map[string]HealthCheck
	// CompletionMode reports "configured" or "demo".
	CompletionMode func() string
}

const readinessTimeout = 3 * time.Second

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	ready := readinessHandler(cfg)
	r.Get("/health/ready", ready)
	r.Get("/health", ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", h.CreateConversation)
			r.Get("/{id}", h.GetConversation)
			r.Post("/{id}/messages", h.SendMessage)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.ListDocuments)
			r.Post("/upload", h.UploadDocument)
			r.Delete("/{filename}", h.DeleteDocument)
		})

		r.Get("/persona", h.GetPersona)
		r.Put("/persona", h.ReplacePersona)

		r.Get("/bot/settings", h.GetBotSettings)
		r.Put("/bot/settings", h.UpdateBotSettings)

		r.Get("/knowledge", h.PreviewKnowledge)
	})

	return r
}

func readinessHandler(cfg RouterConfig) http.HandlerFunc {
	names := make([]string, 0, len(cfg.Checks))
	for name := range cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, name := range names {
			if err := cfg.Checks[name](ctx); err != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[name] = "healthy"
		}

		// Demo mode still answers, so it never fails readiness.
		if cfg.CompletionMode != nil {
			health["completion"] = cfg.CompletionMode()
		}

		JSON(w, status, health)
	}
}
