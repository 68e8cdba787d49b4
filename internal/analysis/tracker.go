package analysis

import (
	"sync"
	"time"

	"cryptosignal/models"
)

// levelKey identifies a resting level across depth observations.
type levelKey struct {
	side  models.Side
	price float64
}

type levelState struct {
	firstSeen time.Time
	lastSeen  time.Time
	present   bool
	reposts   int
}

// bookTracker remembers, per pair, when each price level first appeared and
// how often it was pulled and re-posted. Those observations feed the
// fake-order heuristics of the scoring engine.
type bookTracker struct {
	mu      sync.Mutex
	horizon time.Duration
	pairs   map[string]map[levelKey]*levelState
}

func newBookTracker(horizon time.Duration) *bookTracker {
	return &bookTracker{horizon: horizon, pairs: make(map[string]map[levelKey]*levelState)}
}

// observe records book as seen at now and returns an annotated copy.
// Observing the same book twice is a no-op.
func (t *bookTracker) observe(pair string, book models.OrderBook, now time.Time) models.OrderBook {
	t.mu.Lock()
	defer t.mu.Unlock()

	levels, ok := t.pairs[pair]
	if !ok {
		levels = make(map[levelKey]*levelState)
		t.pairs[pair] = levels
	}

	out := book.Clone()
	seen := make(map[levelKey]bool, len(out.Bids)+len(out.Asks))
	annotate := func(ls []models.Level, side models.Side) {
		for i := range ls {
			k := levelKey{side: side, price: ls[i].Price}
			seen[k] = true
			st, ok := levels[k]
			switch {
			case !ok:
				st = &levelState{firstSeen: now}
				levels[k] = st
			case !st.present:
				st.reposts++
				st.firstSeen = now
			}
			st.present = true
			st.lastSeen = now
			ls[i].FirstSeen = st.firstSeen
			ls[i].Reposts = st.reposts
		}
	}
	annotate(out.Bids, models.SideBuy)
	annotate(out.Asks, models.SideSell)

	for k, st := range levels {
		if seen[k] {
			continue
		}
		st.present = false
		if t.horizon > 0 && now.Sub(st.lastSeen) > t.horizon {
			delete(levels, k)
		}
	}
	return out
}

// baselines keeps an exponentially smoothed liquidity score per pair.
type baselines struct {
	mu     sync.Mutex
	alpha  float64
	values map[string]float64
}

func newBaselines(alpha float64) *baselines {
	return &baselines{alpha: alpha, values: make(map[string]float64)}
}

// get returns the trailing value, zero before the first update.
func (b *baselines) get(pair string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[pair]
}

func (b *baselines) update(pair string, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.values[pair]
	if !ok {
		b.values[pair] = v
		return
	}
	b.values[pair] = prev + b.alpha*(v-prev)
}
