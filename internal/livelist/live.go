package livelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

// ErrActive is returned by Activate on a list that is already active.
var ErrActive = errors.New("livelist: already active")

// Source supplies the initial snapshot and the change feed.
type Source interface {
	Snapshot(ctx context.Context) ([]models.Bookmark, error)
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is one open change feed.
type Subscription interface {
	// Changes delivers events in transport order and is closed when the
	// feed ends.
	Changes() <-chan models.Change
	Close() error
}

// Live binds a Reconciler to a Source for the lifetime of a view.
type Live struct {
	src Source
	cfg config

	mu     sync.Mutex
	rec    *Reconciler
	gen    uint64 // bumped on every Activate and Deactivate
	active bool
	sub    Subscription
	cancel context.CancelFunc
}

// New creates an inactive list over src.
func New(src Source, opts ...Option) *Live {
	cfg := newConfig(opts)
	return &Live{src: src, cfg: cfg, rec: &Reconciler{upsert: cfg.upsertInserts}}
}

// Activate fetches the snapshot once, seeds the collection, then subscribes
// and applies changes on a background goroutine until Deactivate.
func (l *Live) Activate(ctx context.Context) error {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return ErrActive
	}
	l.mu.Unlock()

	snapshot, err := l.src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("livelist: snapshot: %w", err)
	}
	sub, err := l.src.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("livelist: subscribe: %w", err)
	}

	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		_ = sub.Close()
		return ErrActive
	}
	l.gen++
	gen := l.gen
	l.active = true
	l.sub = sub
	l.rec.Seed(snapshot)
	items := l.rec.Items()
	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	l.notify(items)
	go l.run(runCtx, gen, sub)
	return nil
}

// Deactivate tears down the subscription. Once it returns, no event changes
// the collection. Calling it on an inactive list is a no-op.
func (l *Live) Deactivate() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.gen++
	l.active = false
	sub, cancel := l.sub, l.cancel
	l.sub, l.cancel = nil, nil
	l.mu.Unlock()

	cancel()
	if sub != nil {
		_ = sub.Close()
	}
}

// Active reports whether the list is subscribed.
func (l *Live) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Items returns a copy of the current collection.
func (l *Live) Items() []models.Bookmark {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Items()
}

func (l *Live) run(ctx context.Context, gen uint64, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.Changes():
			if ok {
				items, current := l.apply(gen, c)
				if !current {
					return
				}
				l.notify(items)
				continue
			}
		}

		// The feed ended on its own. Without resync the list stays as is.
		if !l.cfg.resync {
			return
		}
		_ = sub.Close()
		next, ok := l.resync(ctx, gen)
		if !ok {
			return
		}
		sub = next
	}
}

// apply mutates the collection only while gen is current.
func (l *Live) apply(gen uint64, c models.Change) ([]models.Bookmark, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil, false
	}
	l.rec.Apply(c)
	return l.rec.Items(), true
}

// resync re-subscribes with capped exponential backoff and re-seeds from a
// fresh snapshot taken after the new subscription is open.
func (l *Live) resync(ctx context.Context, gen uint64) (Subscription, bool) {
	wait := l.cfg.backoff
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		sub, snapshot, err := l.reopen(ctx)
		if err == nil {
			l.mu.Lock()
			if gen != l.gen {
				l.mu.Unlock()
				_ = sub.Close()
				return nil, false
			}
			l.sub = sub
			l.rec.Seed(snapshot)
			items := l.rec.Items()
			l.mu.Unlock()

			l.cfg.logger.Info("livelist: resynced", slog.Int("attempt", attempt), slog.Int("items", len(items)))
			l.notify(items)
			return sub, true
		}

		if ctx.Err() != nil {
			return nil, false
		}
		l.cfg.logger.Warn("livelist: resync failed",
			slog.Int("attempt", attempt),
			slog.Duration("next_retry_in", wait),
			slog.String("error", err.Error()))
		wait *= 2
		if wait > l.cfg.maxBackoff {
			wait = l.cfg.maxBackoff
		}
	}
}

func (l *Live) reopen(ctx context.Context) (Subscription, []models.Bookmark, error) {
	sub, err := l.src.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := l.src.Snapshot(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	return sub, snapshot, nil
}

func (l *Live) notify(items []models.Bookmark) {
	if l.cfg.onChange != nil {
		l.cfg.onChange(items)
	}
}
