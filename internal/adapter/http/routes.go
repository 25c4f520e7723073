package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Version is reported by GET /api/v1/.
var Version = "dev"

// MountRoutes registers all API routes on the given chi router. idempotent
// wraps the write endpoints; pass nil to disable replay.
func MountRoutes(r chi.Router, h *Handlers, idempotent func(http.Handler) http.Handler) {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		// Tools
		r.Get("/tools", h.ListTools)
		r.With(RequireUser).Post("/tools/{name}", h.CallTool)

		// Memory
		r.Route("/memory", func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/search", h.SearchMemory)
			r.Post("/context", h.GetMemoryContext)
			r.With(idempotent).Post("/store", h.StoreMemory)
			r.With(idempotent).Post("/messages", h.AddMessages)
			r.With(idempotent).Post("/turn", h.Turn)
		})
	})
}
