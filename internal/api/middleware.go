// Package api implements the smartmarks REST API using chi.
package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/smartmarks/internal/auth"
)

// RateLimitConfig bounds mutating requests per owner.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
	IdleTTL   time.Duration // limiters unused this long are dropped
}

type ownerLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	owners    map[string]*ownerLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	if cfg.PerMinute < 1 {
		cfg.PerMinute = 1
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	return &limiterSet{cfg: cfg, owners: make(map[string]*ownerLimiter), lastSweep: time.Now(), now: time.Now}
}

// reserve takes a token for owner. When none is available it returns the
// wait until the next one.
func (s *limiterSet) reserve(owner string) (bool, time.Duration) {
	now := s.now()

	s.mu.Lock()
	if now.Sub(s.lastSweep) >= s.cfg.IdleTTL {
		for k, o := range s.owners {
			if now.Sub(o.lastSeen) > s.cfg.IdleTTL {
				delete(s.owners, k)
			}
		}
		s.lastSweep = now
	}
	o := s.owners[owner]
	if o == nil {
		o = &ownerLimiter{lim: rate.NewLimiter(rate.Limit(float64(s.cfg.PerMinute)/60.0), s.cfg.Burst)}
		s.owners[owner] = o
	}
	o.lastSeen = now
	s.mu.Unlock()

	r := o.lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// RateLimit limits requests per authenticated owner and answers 429 with
// Retry-After when exceeded. It must run after the auth middleware.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	set := newLimiterSet(cfg)
	limit := strconv.Itoa(set.cfg.PerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := set.reserve(auth.OwnerFrom(r))
			w.Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
