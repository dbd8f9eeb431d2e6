// Package models defines the domain types for smartmarks.
package models

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const faviconEndpoint = "https://www.google.com/s2/favicons"

// Bookmark is a user-owned link with a display title.
type Bookmark struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	OwnerID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark builds a bookmark with a fresh ID and creation time.
// Title and URL are trimmed; call Validate before persisting.
func NewBookmark(owner, title, rawURL string) Bookmark {
	return Bookmark{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		URL:       strings.TrimSpace(rawURL),
		OwnerID:   owner,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the create/edit invariants. The URL is intentionally not
// parsed: a malformed URL only degrades favicon display.
func (b *Bookmark) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.ID, validation.Required),
		validation.Field(&b.OwnerID, validation.Required),
		validation.Field(&b.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&b.URL, validation.Required, validation.Length(1, 2048)),
	)
}

// Domain returns the URL hostname, or "" when the URL cannot be parsed.
func (b Bookmark) Domain() string {
	u, err := url.Parse(b.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

// FaviconURL returns the third-party favicon image URL for the bookmark's
// domain, or "" when there is no usable domain.
func (b Bookmark) FaviconURL() string {
	host := b.Domain()
	if host == "" {
		return ""
	}
	return faviconEndpoint + "?domain=" + url.QueryEscape(host) + "&sz=128"
}

// BookmarkPatch is a partial update. Nil fields are left untouched.
type BookmarkPatch struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p BookmarkPatch) Empty() bool {
	return p.Title == nil && p.URL == nil
}

// Apply returns a copy of b with the patch applied.
func (p BookmarkPatch) Apply(b Bookmark) Bookmark {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.URL != nil {
		b.URL = strings.TrimSpace(*p.URL)
	}
	return b
}
