package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/metaedit/internal/photoservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *photoservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Photos: filter, read, edit.
	r.Get("/photos", h.ListPhotos)
	r.Get("/photos/*", h.GetPhoto)
	r.Put("/photos/*", h.UpdatePhoto)

	// Raw image bytes.
	r.Get("/files/*", h.ServeFile)

	// Export the match set of the posted criteria.
	r.Post("/export", h.Export)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
