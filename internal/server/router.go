package server

import (
	"log/slog"
	"net/http"

	"github.com/etvincen/boredapi/internal/api/handlers"
	"github.com/etvincen/boredapi/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes bounds ingestion batches when no limit is configured.
const DefaultMaxBodyBytes int64 = 32 * 1024 * 1024

type RouterConfig struct {
	SearchHandler   *handlers.SearchHandler
	DocumentHandler *handlers.DocumentHandler
	BackupHandler   *handlers.BackupHandler
	HealthHandler   *handlers.HealthHandler
	MaxBodyBytes    int64
	Logger          *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Get("/search", cfg.SearchHandler.Search)
	r.Get("/suggest", cfg.SearchHandler.Suggest)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Ingest)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
	})
	r.Get("/stats", cfg.DocumentHandler.Stats)

	r.Route("/backups", func(r chi.Router) {
		r.Post("/", cfg.BackupHandler.Create)
		r.Post("/restore", cfg.BackupHandler.Restore)
	})

	return r
}
