package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
)

const (
	defaultMaxBodyBytes int64 = 1 << 20
	// multipart framing on top of the file bytes themselves
	uploadOverheadBytes int64 = 1 << 20
)

type RouterConfig struct {
	UploadHandler *handlers.UploadHandler
	QueryHandler  *handlers.QueryHandler
	FileHandler   *handlers.FileHandler
	HealthHandler *handlers.HealthHandler

	// APIKey enables bearer auth on every route but / and /health.
	APIKey         string
	AllowedOrigins []string
	// MaxUploadBytes caps the bytes read from an /upload body. It must leave
	// room for one part past the batch limit so the count check can run.
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.StaticKeyAuth(cfg.APIKey, "/", "/health"))

	r.Get("/", cfg.HealthHandler.Root)
	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CapBodyBytes(uploadLimit(cfg.MaxUploadBytes)))
		r.Post("/upload", cfg.UploadHandler.Upload)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(defaultMaxBodyBytes))
		r.Post("/query", cfg.QueryHandler.Query)
	})

	r.Get("/files", cfg.FileHandler.List)
	r.Get("/download/{filename}", cfg.FileHandler.Download)
	r.Get("/documents", cfg.FileHandler.Documents)

	return r
}

func uploadLimit(max int64) int64 {
	if max <= 0 {
		return 0
	}
	return max + uploadOverheadBytes
}
