// Package api exposes the batch engine and lock manager over HTTP and adapts
// API Gateway proxy events onto the same router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stefando/lfsS3/internal/batch"
	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/locks"
)

// Config selects the routes served by the router. Nil components are not mounted.
type Config struct {
	Engine *batch.Engine
	Locks  *locks.Manager

	// Authenticate wraps the LFS routes; nil means the caller identity is
	// already in the request context (API Gateway authorizer)
	Authenticate func(http.Handler) http.Handler

	// Metrics is served unauthenticated at /metrics when set
	Metrics http.Handler

	// Completion receives S3 event notifications at POST /events/s3 when set.
	// It authenticates requests itself.
	Completion http.Handler
}

// NewRouter creates the chi router serving the Git LFS API
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Middleware for all routes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(invalidOperation)
	r.MethodNotAllowed(invalidOperation)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Completion != nil {
		r.Method(http.MethodPost, "/events/s3", cfg.Completion)
	}

	r.Group(func(r chi.Router) {
		if cfg.Authenticate != nil {
			r.Use(cfg.Authenticate)
		}

		if cfg.Engine != nil {
			h := &batchHandler{engine: cfg.Engine}
			r.Post("/objects/batch", h.batch)
		}

		if cfg.Locks != nil {
			h := &lockHandler{manager: cfg.Locks}
			r.Route("/locks", func(r chi.Router) {
				r.Get("/", h.list)
				r.Post("/", h.create)
				r.Post("/verify", h.verify)
				r.Post("/{id:[-a-zA-Z0-9]*}/unlock", h.unlock)
			})
		}
	})

	return r
}

func invalidOperation(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, lfs.ErrInvalidOperation)
}
