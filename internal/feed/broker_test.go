package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

func recv(t *testing.T, s *Subscription) models.Change {
	t.Helper()
	select {
	case c, ok := <-s.Changes():
		if !ok {
			t.Fatal("subscription closed")
		}
		return c
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}
	return models.Change{}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	s := b.Subscribe("u1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	_ = s.Close()
	_ = s.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	if _, ok := <-s.Changes(); ok {
		t.Error("channel should be closed after Close")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	s := b.Subscribe("u1")
	defer s.Close()

	b.Publish(models.Inserted(models.Bookmark{ID: "a", OwnerID: "u1", Title: "Site"}))

	c := recv(t, s)
	if c.Type != models.ChangeInsert || c.Record.ID != "a" {
		t.Errorf("got %+v", c)
	}
}

func TestPublishScopedToOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	mine := b.Subscribe("u1")
	defer mine.Close()
	theirs := b.Subscribe("u2")
	defer theirs.Close()

	b.Publish(models.Deleted("u2", "x"))
	b.Publish(models.Deleted("u1", "y"))

	if c := recv(t, mine); c.OldID != "y" {
		t.Errorf("u1 received %+v, want delete of y", c)
	}
	if c := recv(t, theirs); c.OldID != "x" {
		t.Errorf("u2 received %+v, want delete of x", c)
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	s := b.Subscribe("u1")
	defer s.Close()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		b.Publish(models.Deleted("u1", id))
	}
	for _, want := range ids {
		if got := recv(t, s).OldID; got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	s := b.Subscribe("u1")
	defer s.Close()

	// Fill the buffer and go past it; the loop must not block.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(models.Deleted("u1", "x"))
	}
	if b.ClientCount() != 1 {
		t.Error("broker loop stalled")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h := b.Handler(func(*http.Request) string { return "u1" })

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(models.Updated(models.Bookmark{ID: "a", OwnerID: "u1", Title: "New"}))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: update") || !strings.Contains(body, `"title":"New"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": ping") {
		t.Errorf("handler output missing heartbeat: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_RequiresOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	b.Handler(func(*http.Request) string { return "" }).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Second)
	s := b.Subscribe("u1")

	b.Close()

	select {
	case _, ok := <-s.Changes():
		if ok {
			t.Fatal("expected subscription channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(models.Deleted("u1", "x"))
	_ = s.Close()
	late := b.Subscribe("u1")
	if _, ok := <-late.Changes(); ok {
		t.Error("subscription after close should be closed")
	}
}
