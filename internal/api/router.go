package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts all REST endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/health", h.HealthHandler)
	r.Post("/upload", h.UploadHandler)
	r.Post("/query", h.QueryHandler)
	r.Get("/documents", h.ListDocumentsHandler)
	r.Delete("/documents/{documentID}", h.DeleteDocumentHandler)

	return r
}
