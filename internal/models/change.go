package models

// ChangeType tags a change-feed event.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one change-feed notification. Insert and update carry the full
// new row in Record; delete carries only OldID.
type Change struct {
	Type    ChangeType `json:"type"`
	OwnerID string     `json:"user_id"`
	Record  *Bookmark  `json:"new,omitempty"`
	OldID   string     `json:"old_id,omitempty"`
}

// ID returns the identifier the change refers to.
func (c Change) ID() string {
	if c.Type == ChangeDelete || c.Record == nil {
		return c.OldID
	}
	return c.Record.ID
}

// Inserted builds an insert change for b.
func Inserted(b Bookmark) Change {
	return Change{Type: ChangeInsert, OwnerID: b.OwnerID, Record: &b}
}

// Updated builds an update change carrying the new row.
func Updated(b Bookmark) Change {
	return Change{Type: ChangeUpdate, OwnerID: b.OwnerID, Record: &b}
}

// Deleted builds a delete change for the given owner and id.
func Deleted(owner, id string) Change {
	return Change{Type: ChangeDelete, OwnerID: owner, OldID: id}
}
