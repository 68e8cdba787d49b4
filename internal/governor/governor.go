// Package governor bounds the number of outbound calls admitted in any
// rolling window.
//
// Every admission borrows one token which is returned exactly one refill
// window after it was taken. At most Capacity admissions therefore fall in
// any window-length interval, regardless of how the interval is aligned.
package governor

import (
	"context"
	"sync"
	"time"
)

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces time.Now for TryAcquire bookkeeping, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// Governor is a token bucket with a sliding admission ledger. It is safe
// for concurrent use and meant to be shared by every caller that draws on
// the same upstream budget.
type Governor struct {
	name     string
	capacity int
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	ledger   []time.Time // admission times still inside the window, oldest first
	admitted uint64
	timeouts uint64
}

// New returns a governor that admits at most capacity calls per window.
func New(name string, capacity int, window time.Duration, opts ...Option) *Governor {
	if capacity < 0 {
		capacity = 0
	}
	g := &Governor{
		name:     name,
		capacity: capacity,
		window:   window,
		now:      time.Now,
		ledger:   make([]time.Time, 0, capacity),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the budget name given at construction.
func (g *Governor) Name() string { return g.name }

// Capacity returns the number of tokens the bucket holds when full.
func (g *Governor) Capacity() int { return g.capacity }

// Window returns the refill window.
func (g *Governor) Window() time.Duration { return g.window }

// TryAcquire consumes a token if one is available right now.
func (g *Governor) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok, _ := g.take(g.now())
	return ok
}

// Acquire waits until a token is available, timeout elapses or ctx is done.
// It reports false when no token was obtained; in that case nothing was
// consumed. A timeout of zero or less makes Acquire behave like TryAcquire.
func (g *Governor) Acquire(ctx context.Context, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		g.mu.Lock()
		ok, wait := g.take(g.now())
		g.mu.Unlock()

		if ok {
			return true
		}
		if timeout <= 0 || wait < 0 {
			g.recordTimeout()
			return false
		}

		// Sleep until the oldest admission leaves the window, then compete
		// for the freed token again.
		retry := time.NewTimer(wait)
		select {
		case <-retry.C:
		case <-deadline:
			retry.Stop()
			g.recordTimeout()
			return false
		case <-ctx.Done():
			retry.Stop()
			g.recordTimeout()
			return false
		}
	}
}

// Available returns the number of tokens that could be taken right now.
func (g *Governor) Available() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return g.capacity - len(g.ledger)
}

// Stats returns the number of admissions and failed acquisitions.
func (g *Governor) Stats() (admitted, timeouts uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.admitted, g.timeouts
}

// take consumes a token at now. When none is available it returns how long
// until the next token frees, or a negative duration if none ever will.
func (g *Governor) take(now time.Time) (bool, time.Duration) {
	if g.capacity == 0 {
		return false, -1
	}
	g.prune(now)
	if len(g.ledger) < g.capacity {
		g.ledger = append(g.ledger, now)
		g.admitted++
		return true, 0
	}
	wait := g.ledger[0].Add(g.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

func (g *Governor) prune(now time.Time) {
	i := 0
	for i < len(g.ledger) && !now.Before(g.ledger[i].Add(g.window)) {
		i++
	}
	if i > 0 {
		g.ledger = append(g.ledger[:0], g.ledger[i:]...)
	}
}

func (g *Governor) recordTimeout() {
	g.mu.Lock()
	g.timeouts++
	g.mu.Unlock()
}
