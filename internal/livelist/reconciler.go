// Package livelist keeps an in-memory, newest-first list of bookmarks in
// step with a change feed. The list is seeded from a snapshot and then
// patched by insert, update, and delete events; it never polls.
package livelist

import "github.com/starford/smartmarks/internal/models"

// Reconciler applies change events to an ordered collection. It is not safe
// for concurrent use; Live serialises access.
type Reconciler struct {
	items  []models.Bookmark
	upsert bool
}

// NewReconciler creates an empty reconciler. Only WithUpsertInserts affects it.
func NewReconciler(opts ...Option) *Reconciler {
	cfg := newConfig(opts)
	return &Reconciler{upsert: cfg.upsertInserts}
}

// Seed replaces the collection with a copy of snapshot.
func (r *Reconciler) Seed(snapshot []models.Bookmark) {
	r.items = append(make([]models.Bookmark, 0, len(snapshot)), snapshot...)
}

// Insert prepends b. Without WithUpsertInserts an ID already present yields a
// duplicate entry, matching what the feed delivers.
func (r *Reconciler) Insert(b models.Bookmark) {
	if r.upsert {
		if i := r.index(b.ID); i >= 0 {
			r.items[i] = b
			return
		}
	}
	r.items = append(r.items, models.Bookmark{})
	copy(r.items[1:], r.items)
	r.items[0] = b
}

// Update merges b into every element with the same ID. Zero-valued fields of
// b leave the stored value as is, so a partial row changes only what it
// carries. Absent IDs are ignored.
func (r *Reconciler) Update(b models.Bookmark) {
	for i := range r.items {
		if r.items[i].ID == b.ID {
			r.items[i] = merge(r.items[i], b)
		}
	}
}

// Delete removes every element with the given ID. Absent IDs are ignored.
func (r *Reconciler) Delete(id string) {
	out := r.items[:0]
	for _, b := range r.items {
		if b.ID != id {
			out = append(out, b)
		}
	}
	clear(r.items[len(out):])
	r.items = out
}

// Apply dispatches c by type. Unknown types and events without a payload are
// ignored.
func (r *Reconciler) Apply(c models.Change) {
	switch c.Type {
	case models.ChangeInsert:
		if c.Record != nil {
			r.Insert(*c.Record)
		}
	case models.ChangeUpdate:
		if c.Record != nil {
			r.Update(*c.Record)
		}
	case models.ChangeDelete:
		r.Delete(c.ID())
	}
}

// Items returns a copy of the collection.
func (r *Reconciler) Items() []models.Bookmark {
	return append(make([]models.Bookmark, 0, len(r.items)), r.items...)
}

func (r *Reconciler) index(id string) int {
	for i, b := range r.items {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func merge(cur, next models.Bookmark) models.Bookmark {
	if next.Title != "" {
		cur.Title = next.Title
	}
	if next.URL != "" {
		cur.URL = next.URL
	}
	if next.OwnerID != "" {
		cur.OwnerID = next.OwnerID
	}
	if !next.CreatedAt.IsZero() {
		cur.CreatedAt = next.CreatedAt
	}
	return cur
}
