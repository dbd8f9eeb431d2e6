// Package feed implements the bookmark change feed: an in-process broker
// fanning changes out to owner-scoped subscribers, an SSE endpoint, and an
// optional Redis relay for multi-process deployments.
package feed

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

const subscriberBuffer = 64

// Publisher accepts change notifications for delivery to subscribers.
type Publisher interface {
	Publish(c models.Change)
}

// Broker fans changes out to subscribers of the same owner.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// subscriber set. Public methods communicate with this loop through
// channels, so no mutexes are required.
type Broker struct {
	heartbeat time.Duration

	subscribeCh   chan *Subscription
	unsubscribeCh chan *Subscription
	publishCh     chan models.Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ Publisher = (*Broker)(nil)

// NewBroker creates a broker. heartbeat is the SSE keep-alive interval.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	b := &Broker{
		heartbeat:     heartbeat,
		subscribeCh:   make(chan *Subscription),
		unsubscribeCh: make(chan *Subscription),
		publishCh:     make(chan models.Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[*Subscription]struct{})

	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				close(s.ch)
			}
			return

		case s := <-b.subscribeCh:
			subs[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}

		case c := <-b.publishCh:
			for s := range subs {
				if s.owner != c.OwnerID {
					continue
				}
				select {
				case s.ch <- c:
				default:
					// Subscriber buffer full; drop rather than stall the loop.
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the broker loop and closes every subscription channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a subscriber for the owner's changes.
func (b *Broker) Subscribe(owner string) *Subscription {
	s := &Subscription{broker: b, owner: owner, ch: make(chan models.Change, subscriberBuffer)}
	if b.closed.Load() {
		close(s.ch)
		return s
	}

	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(s.ch)
	}
	return s
}

func (b *Broker) unsubscribe(s *Subscription) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

// ClientCount returns the number of live subscriptions.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish hands a change to the broker loop. No-op after Close.
func (b *Broker) Publish(c models.Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- c:
	case <-b.stopped:
	}
}

// Handler returns the SSE endpoint. owner resolves the authenticated owner
// of the request; an empty owner is rejected with 401.
func (b *Broker) Handler(owner func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := owner(r)
		if id == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		b.serveStream(w, r, id)
	})
}

func (b *Broker) serveStream(w http.ResponseWriter, r *http.Request, owner string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so a client that saw 200 cannot
	// miss a change published right after.
	sub := b.Subscribe(owner)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write(heartbeatFrame)
			flusher.Flush()
		case c, ok := <-sub.Changes():
			if !ok {
				return
			}
			frame, err := Encode(c)
			if err != nil {
				continue
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}

// Subscription is one owner-scoped stream of changes.
type Subscription struct {
	broker *Broker
	owner  string
	ch     chan models.Change
	once   sync.Once
}

// Changes returns the delivery channel. It is closed by Close or when the
// broker shuts down.
func (s *Subscription) Changes() <-chan models.Change {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() { s.broker.unsubscribe(s) })
	return nil
}
