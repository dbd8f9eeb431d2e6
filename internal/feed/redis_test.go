package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/smartmarks/internal/models"
)

type recordingPublisher struct {
	got []models.Change
}

func (p *recordingPublisher) Publish(c models.Change) { p.got = append(p.got, c) }

func TestEnvelopeKeepsOwnerForDeletes(t *testing.T) {
	data, err := marshalEnvelope(models.Deleted("u1", "b1"), "proc-a")
	if err != nil {
		t.Fatal(err)
	}
	c, origin, err := unmarshalEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if origin != "proc-a" {
		t.Errorf("origin = %q", origin)
	}
	if c.Type != models.ChangeDelete || c.OwnerID != "u1" || c.OldID != "b1" {
		t.Errorf("got %+v", c)
	}
}

func TestRelayPublishFallsBackToLocal(t *testing.T) {
	// Nothing listens on port 1; the Redis publish fails fast.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	local := &recordingPublisher{}
	relay := NewRedisRelay(client, "", "proc-a", local, slog.New(slog.NewTextHandler(io.Discard, nil)))
	relay.Publish(models.Inserted(models.Bookmark{ID: "b1", OwnerID: "u1"}))

	if len(local.got) != 1 || local.got[0].ID() != "b1" {
		t.Fatalf("local publisher got %+v", local.got)
	}
}
