package qa

import (
	"sync"
	"time"
)

// Rate limit for the model backend, shared by every in-flight request.
// Conservative on purpose to stay under upstream throttling.
const (
	DefaultMaxCalls   = 8
	DefaultTimeWindow = 60 * time.Second
)

// RateLimiter counts calls inside a trailing time window. It is shared
// mutable state across concurrent requests and is mutex-guarded.
type RateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time
	now      func() time.Time
}

func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether fewer than maxCalls calls happened within the
// trailing window, pruning expired records as a side effect.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.calls) < l.maxCalls
}

// Record appends the current timestamp.
func (l *RateLimiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, l.now())
}

func (l *RateLimiter) prune(now time.Time) {
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.calls = kept
}
