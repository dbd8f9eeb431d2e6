package livelist

import (
	"log/slog"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

// Option configures a Reconciler or a Live list.
type Option func(*config)

type config struct {
	upsertInserts bool
	resync        bool
	backoff       time.Duration
	maxBackoff    time.Duration
	onChange      func([]models.Bookmark)
	logger        *slog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithUpsertInserts makes insert idempotent by ID: an existing element is
// replaced in place instead of duplicated.
func WithUpsertInserts() Option {
	return func(c *config) { c.upsertInserts = true }
}

// WithResync re-subscribes and re-seeds from a fresh snapshot when the feed
// drops. Waits start at backoff and double up to 30 times that, capped at
// five minutes.
func WithResync(backoff time.Duration) Option {
	return func(c *config) {
		if backoff <= 0 {
			backoff = time.Second
		}
		c.resync = true
		c.backoff = backoff
		c.maxBackoff = min(30*backoff, 5*time.Minute)
	}
}

// OnChange registers fn to receive a copy of the items after seeding and after
// every applied change, outside the list lock and in event order.
func OnChange(fn func([]models.Bookmark)) Option {
	return func(c *config) { c.onChange = fn }
}

// WithLogger sets the logger used for resync diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
