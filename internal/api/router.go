package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memman/internal/memservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Memory entries.
	r.Get("/entries", h.ListEntries)
	r.Get("/entries/{id}", h.GetEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)
	r.Post("/entries/{id}/use", h.UseEntry)

	// Corrections.
	r.Get("/corrections", h.ListCorrections)
	r.Post("/corrections", h.RecordCorrection)
	r.Post("/capture", h.Capture)

	// Sync and scoring.
	r.Get("/stats", h.Stats)
	r.Get("/sync-state", h.SyncState)
	r.Post("/sync", h.Sync)
	r.Post("/rescore", h.Rescore)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
