// Package bookmarkservice coordinates the record store and the change feed:
// every successful mutation is published as a change event.
package bookmarkservice

import (
	"context"
	"fmt"

	"github.com/starford/smartmarks/internal/apperr"
	"github.com/starford/smartmarks/internal/checksum"
	"github.com/starford/smartmarks/internal/feed"
	"github.com/starford/smartmarks/internal/models"
	"github.com/starford/smartmarks/internal/store"
)

// Service validates and persists bookmark mutations.
type Service struct {
	store store.BookmarkStore
	feed  feed.Publisher
}

// NewService creates a service. pub may be nil when nothing listens.
func NewService(st store.BookmarkStore, pub feed.Publisher) *Service {
	return &Service{store: st, feed: pub}
}

// ETag is the entity tag of a bookmark's mutable state.
func ETag(b models.Bookmark) string {
	return checksum.Fields(b.ID, b.Title, b.URL)
}

// Create stores a new bookmark for owner and publishes an insert.
func (s *Service) Create(_ context.Context, owner, title, rawURL string) (*models.Bookmark, error) {
	b := models.NewBookmark(owner, title, rawURL)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalid, err)
	}
	if err := s.store.Insert(b); err != nil {
		return nil, err
	}
	s.publish(models.Inserted(b))
	return &b, nil
}

// Get returns one of the owner's bookmarks.
func (s *Service) Get(_ context.Context, owner, id string) (*models.Bookmark, error) {
	return s.store.Get(owner, id)
}

// List returns the owner's bookmarks newest first and the total match count.
func (s *Service) List(_ context.Context, owner, query string, limit int) ([]models.Bookmark, int, error) {
	return s.store.List(owner, store.ListOptions{Query: query, Limit: limit})
}

// Update applies patch with optimistic concurrency: a non-empty ifMatch must
// equal the current ETag. The update event carries the full new row.
func (s *Service) Update(_ context.Context, owner, id string, patch models.BookmarkPatch, ifMatch string) (*models.Bookmark, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", apperr.ErrInvalid)
	}

	current, err := s.store.Get(owner, id)
	if err != nil {
		return nil, err
	}
	var expect *models.Bookmark
	if ifMatch != "" {
		if ifMatch != ETag(*current) {
			return nil, apperr.ErrConflict
		}
		expect = current
	}

	next := patch.Apply(*current)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalid, err)
	}

	updated, err := s.store.Update(owner, id, patch, expect)
	if err != nil {
		return nil, err
	}
	s.publish(models.Updated(*updated))
	return updated, nil
}

// Delete removes the owner's bookmark and publishes its old ID.
func (s *Service) Delete(_ context.Context, owner, id string) error {
	if err := s.store.Delete(owner, id); err != nil {
		return err
	}
	s.publish(models.Deleted(owner, id))
	return nil
}

func (s *Service) publish(c models.Change) {
	if s.feed != nil {
		s.feed.Publish(c)
	}
}
