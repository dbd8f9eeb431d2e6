package feed

import (
	"encoding/json"
	"fmt"

	"github.com/starford/smartmarks/internal/models"
)

var heartbeatFrame = []byte(": ping\n\n")

type oldRow struct {
	ID string `json:"id"`
}

// payload mirrors the realtime row-change shape: the new row for inserts and
// updates, the old row's key for deletes.
type payload struct {
	New *models.Bookmark `json:"new,omitempty"`
	Old *oldRow          `json:"old,omitempty"`
}

// Encode renders a change as one SSE frame.
func Encode(c models.Change) ([]byte, error) {
	var p payload
	switch c.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		if c.Record == nil {
			return nil, fmt.Errorf("feed: %s change without record", c.Type)
		}
		p.New = c.Record
	case models.ChangeDelete:
		p.Old = &oldRow{ID: c.OldID}
	default:
		return nil, fmt.Errorf("feed: unknown change type %q", c.Type)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("feed: marshal change: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", c.Type, data)), nil
}

// Decode turns an SSE event name and data line back into a change. Payloads
// are not validated beyond JSON decoding; an insert or update without a row
// is reported as an error.
func Decode(event string, data []byte) (models.Change, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Change{}, fmt.Errorf("feed: decode %s payload: %w", event, err)
	}

	c := models.Change{Type: models.ChangeType(event)}
	switch c.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		if p.New == nil {
			return models.Change{}, fmt.Errorf("feed: %s event without new row", event)
		}
		c.Record = p.New
		c.OwnerID = p.New.OwnerID
	case models.ChangeDelete:
		if p.Old != nil {
			c.OldID = p.Old.ID
		}
	}
	return c, nil
}
