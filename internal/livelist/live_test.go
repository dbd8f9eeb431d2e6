package livelist

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

// fakeSub is a subscription whose Close does not close the channel, so tests
// can deliver events after teardown the way an in-flight transport might.
type fakeSub struct {
	ch     chan models.Change
	mu     sync.Mutex
	closed bool
}

func newFakeSub() *fakeSub { return &fakeSub{ch: make(chan models.Change, 16)} }

func (s *fakeSub) Changes() <-chan models.Change { return s.ch }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSource struct {
	mu           sync.Mutex
	snapshot     []models.Bookmark
	subs         []*fakeSub
	snapshotErr  error
	subscribeErr error
	snapshots    int
}

func (f *fakeSource) Snapshot(context.Context) ([]models.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return append([]models.Bookmark(nil), f.snapshot...), nil
}

func (f *fakeSource) Subscribe(context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	s := newFakeSub()
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeSource) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		return nil
	}
	return f.subs[i]
}

func (f *fakeSource) setSnapshot(items []models.Bookmark) {
	f.mu.Lock()
	f.snapshot = items
	f.mu.Unlock()
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestActivateSeedsThenApplies(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	var mu sync.Mutex
	var seen [][]string
	l := New(src, OnChange(func(items []models.Bookmark) {
		mu.Lock()
		seen = append(seen, ids(items))
		mu.Unlock()
	}))

	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Deactivate()

	if got := ids(l.Items()); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("seeded = %v", got)
	}

	sub := src.sub(0)
	sub.ch <- models.Inserted(bm("b", "B"))
	sub.ch <- models.Updated(models.Bookmark{ID: "a", Title: "A2"})
	sub.ch <- models.Deleted("u1", "b")

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	}, "expected seed plus three notifications")

	mu.Lock()
	defer mu.Unlock()
	want := [][]string{{"a"}, {"b", "a"}, {"b", "a"}, {"a"}}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("notifications = %v, want %v", seen, want)
	}
	if l.Items()[0].Title != "A2" {
		t.Errorf("update not applied: %+v", l.Items())
	}
}

func TestDeactivateStopsProcessing(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	l := New(src)
	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	sub := src.sub(0)

	l.Deactivate()
	if !sub.isClosed() {
		t.Fatal("subscription not released on deactivation")
	}
	if l.Active() {
		t.Error("still active")
	}

	before := l.Items()
	sub.ch <- models.Inserted(bm("late", "Late"))
	sub.ch <- models.Deleted("u1", "a")
	time.Sleep(50 * time.Millisecond)

	if got := l.Items(); !reflect.DeepEqual(got, before) {
		t.Errorf("collection changed after teardown: %v", ids(got))
	}

	l.Deactivate() // no-op
}

func TestActivateTwice(t *testing.T) {
	src := &fakeSource{}
	l := New(src)
	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Deactivate()
	if err := l.Activate(context.Background()); !errors.Is(err, ErrActive) {
		t.Errorf("err = %v, want ErrActive", err)
	}
}

func TestReactivateIgnoresOldSubscription(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	l := New(src)
	_ = l.Activate(context.Background())
	old := src.sub(0)
	l.Deactivate()

	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Deactivate()

	old.ch <- models.Inserted(bm("stale", "Stale"))
	src.sub(1).ch <- models.Inserted(bm("fresh", "Fresh"))

	eventually(t, func() bool { return len(l.Items()) == 2 }, "fresh insert not applied")
	time.Sleep(20 * time.Millisecond)
	if got := ids(l.Items()); !reflect.DeepEqual(got, []string{"fresh", "a"}) {
		t.Errorf("items = %v", got)
	}
}

func TestActivateErrors(t *testing.T) {
	boom := errors.New("boom")

	l := New(&fakeSource{snapshotErr: boom})
	if err := l.Activate(context.Background()); !errors.Is(err, boom) {
		t.Errorf("snapshot err = %v", err)
	}

	src := &fakeSource{subscribeErr: boom}
	l = New(src)
	if err := l.Activate(context.Background()); !errors.Is(err, boom) {
		t.Errorf("subscribe err = %v", err)
	}
	if l.Active() {
		t.Error("failed activation left the list active")
	}
}

func TestFeedDropWithoutResyncStaysStale(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	l := New(src)
	_ = l.Activate(context.Background())
	defer l.Deactivate()

	close(src.sub(0).ch)
	src.setSnapshot([]models.Bookmark{bm("b", "B"), bm("a", "A")})
	time.Sleep(50 * time.Millisecond)

	if got := ids(l.Items()); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("items = %v, want stale [a]", got)
	}
	if src.sub(1) != nil {
		t.Error("resubscribed without WithResync")
	}
}

func TestFeedDropWithResync(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	l := New(src, WithResync(10*time.Millisecond))
	_ = l.Activate(context.Background())
	defer l.Deactivate()

	src.setSnapshot([]models.Bookmark{bm("b", "B"), bm("a", "A")})
	close(src.sub(0).ch)

	eventually(t, func() bool { return src.sub(1) != nil }, "no resubscribe")
	eventually(t, func() bool { return len(l.Items()) == 2 }, "not re-seeded")
	if !src.sub(0).isClosed() {
		t.Error("ended subscription not closed before resubscribing")
	}

	src.sub(1).ch <- models.Deleted("u1", "a")
	eventually(t, func() bool {
		return reflect.DeepEqual(ids(l.Items()), []string{"b"})
	}, "events on new subscription not applied")

	l.Deactivate()
	if !src.sub(1).isClosed() {
		t.Error("current subscription not closed on deactivate")
	}
}

func TestResyncRetriesWithBackoff(t *testing.T) {
	src := &fakeSource{snapshot: []models.Bookmark{bm("a", "A")}}
	l := New(src, WithResync(5*time.Millisecond))
	_ = l.Activate(context.Background())
	defer l.Deactivate()

	src.mu.Lock()
	src.subscribeErr = errors.New("offline")
	src.mu.Unlock()
	close(src.sub(0).ch)
	time.Sleep(30 * time.Millisecond)

	src.mu.Lock()
	src.subscribeErr = nil
	src.mu.Unlock()

	eventually(t, func() bool { return src.sub(1) != nil }, "did not recover after errors")
}

func TestDeactivateDuringResync(t *testing.T) {
	src := &fakeSource{subscribeErr: nil}
	l := New(src, WithResync(time.Hour))
	_ = l.Activate(context.Background())
	close(src.sub(0).ch)
	time.Sleep(10 * time.Millisecond)

	l.Deactivate()
	time.Sleep(10 * time.Millisecond)
	if src.sub(1) != nil {
		t.Error("resubscribed after deactivation")
	}
}
