package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/smartmarks/internal/auth"
	"github.com/starford/smartmarks/internal/bookmarkservice"
)

// RouterConfig collects what the API router needs.
type RouterConfig struct {
	Service *bookmarkservice.Service
	Gate    *auth.Gate
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events    http.Handler
	RateLimit RateLimitConfig
}

// NewRouter creates a chi router with all API routes, meant to be mounted
// under /api. Every route requires authentication; mutations are rate limited
// per owner unless RateLimit.PerMinute is zero.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service, cfg.Gate)

	r := chi.NewRouter()
	r.Use(cfg.Gate.RequireAPI)

	r.Get("/me", h.Me)
	r.Get("/session", h.Session)

	r.Get("/bookmarks", h.ListBookmarks)
	r.Get("/bookmarks/{id}", h.GetBookmark)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.PerMinute > 0 {
			r.Use(RateLimit(cfg.RateLimit))
		}
		r.Post("/bookmarks", h.CreateBookmark)
		r.Patch("/bookmarks/{id}", h.UpdateBookmark)
		r.Delete("/bookmarks/{id}", h.DeleteBookmark)
	})

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
