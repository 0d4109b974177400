package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onRebuild, if non-nil, is called after each POST /rebuild.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, onRebuild noteservice.RebuildCallback) chi.Router {
	h := NewHandler(svc, onRebuild)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/lookup", h.Lookup)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	r.Get("/report", h.Report)
	r.Post("/rebuild", h.Rebuild)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
