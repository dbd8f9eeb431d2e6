package store

import "github.com/starford/smartmarks/internal/models"

// BookmarkStore defines the record-store operations the service depends on.
// Every call is scoped to an owner; rows of other owners are invisible.
type BookmarkStore interface {
	Insert(b models.Bookmark) error
	Get(owner, id string) (*models.Bookmark, error)
	Update(owner, id string, patch models.BookmarkPatch, expect *models.Bookmark) (*models.Bookmark, error)
	Delete(owner, id string) error
	List(owner string, opts ListOptions) ([]models.Bookmark, int, error)
	Close() error
}

// ListOptions filters and bounds a listing.
type ListOptions struct {
	Query string
	Limit int
}

// Verify *DB satisfies BookmarkStore at compile time.
var _ BookmarkStore = (*DB)(nil)
