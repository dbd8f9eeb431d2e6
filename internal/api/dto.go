package api

import (
	"time"

	"github.com/starford/smartmarks/internal/models"
)

// CreateBookmarkRequest is the request body for creating a bookmark.
type CreateBookmarkRequest struct {
	Title string `json:"title" example:"Go" validate:"required"`
	URL   string `json:"url" example:"https://go.dev" validate:"required"`
}

// UpdateBookmarkRequest is a partial update; omitted fields are kept.
type UpdateBookmarkRequest = models.BookmarkPatch

// BookmarkDTO is a bookmark plus display helpers derived from its URL.
type BookmarkDTO struct {
	ID         string    `json:"id" example:"6f1c..." validate:"required"`
	Title      string    `json:"title" example:"Go" validate:"required"`
	URL        string    `json:"url" example:"https://go.dev" validate:"required"`
	UserID     string    `json:"user_id" validate:"required"`
	CreatedAt  time.Time `json:"created_at" validate:"required"`
	Domain     string    `json:"domain" example:"go.dev"`
	FaviconURL string    `json:"favicon_url" example:"https://www.google.com/s2/favicons?domain=go.dev&sz=128"`
}

func toDTO(b models.Bookmark) BookmarkDTO {
	return BookmarkDTO{
		ID:         b.ID,
		Title:      b.Title,
		URL:        b.URL,
		UserID:     b.OwnerID,
		CreatedAt:  b.CreatedAt,
		Domain:     b.Domain(),
		FaviconURL: b.FaviconURL(),
	}
}

// BookmarkListResponse wraps a listing.
type BookmarkListResponse struct {
	Bookmarks []BookmarkDTO `json:"bookmarks" validate:"required"`
	Total     int           `json:"total" example:"42" validate:"required"`
}

// MeResponse describes the authenticated user.
type MeResponse struct {
	Subject string `json:"sub" validate:"required"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Mode    string `json:"auth_mode" example:"oauth"`
}

// SessionResponse carries a bearer token for non-browser clients. Token is
// empty when authentication is disabled.
type SessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
