package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lorekeeper/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sess *session.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/project", h.GetProject)

	// Items.
	r.Route("/items/{category}", func(r chi.Router) {
		r.Post("/", h.CreateItem)
		r.Post("/reorder", h.ReorderItem)
		r.Patch("/{id}", h.RenameItem)
		r.Get("/{id}/content", h.GetContent)
		r.Put("/{id}/content", h.PutContent)
		r.Get("/{id}/appearances", h.Appearances)
	})

	// Editor.
	r.Post("/select", h.Select)
	r.Get("/editor", h.GetEditor)
	r.Post("/editor/flush", h.FlushEditor)

	// Stats and settings.
	r.Get("/stats", h.GetStats)
	r.Put("/stats/goal", h.SetGoal)
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.PatchSettings)
	r.Post("/settings/test-connection", h.TestConnection)

	// AI.
	r.Get("/ainotes/{id}", h.GetAINote)
	r.Post("/ainotes/{id}/analyze", h.Analyze)
	r.Post("/suggest", h.Suggest)

	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
