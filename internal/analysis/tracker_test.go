package analysis

import (
	"testing"
	"time"

	"cryptosignal/models"
)

func TestBookTrackerReposts(t *testing.T) {
	tr := newBookTracker(time.Hour)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	full := models.OrderBook{
		Bids: []models.Level{{Price: 99, Amount: 1}, {Price: 98, Amount: 1}},
		Asks: []models.Level{{Price: 101, Amount: 1}},
	}
	pulled := models.OrderBook{
		Bids: []models.Level{{Price: 98, Amount: 1}},
		Asks: []models.Level{{Price: 101, Amount: 1}},
	}

	out := tr.observe("btc_idr", full, t0)
	if !out.Bids[0].FirstSeen.Equal(t0) || out.Bids[0].Reposts != 0 {
		t.Fatalf("first observation %+v", out.Bids[0])
	}
	if full.Bids[0].FirstSeen != (time.Time{}) {
		t.Fatalf("observe modified its input")
	}

	tr.observe("btc_idr", pulled, t0.Add(time.Second))
	out = tr.observe("btc_idr", full, t0.Add(2*time.Second))
	if out.Bids[0].Reposts != 1 {
		t.Fatalf("reposts=%d want 1", out.Bids[0].Reposts)
	}
	if !out.Bids[1].FirstSeen.Equal(t0) {
		t.Fatalf("resting level lost its first-seen time: %v", out.Bids[1].FirstSeen)
	}

	// same book again changes nothing
	again := tr.observe("btc_idr", full, t0.Add(3*time.Second))
	if again.Bids[0].Reposts != 1 {
		t.Fatalf("re-observing the same book counted a repost")
	}
}

func TestBookTrackerForgetsOldLevels(t *testing.T) {
	tr := newBookTracker(time.Minute)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	book := models.OrderBook{Bids: []models.Level{{Price: 99, Amount: 1}}}
	tr.observe("btc_idr", book, t0)
	tr.observe("btc_idr", models.OrderBook{}, t0.Add(2*time.Minute))
	out := tr.observe("btc_idr", book, t0.Add(3*time.Minute))
	if out.Bids[0].Reposts != 0 {
		t.Fatalf("level past the horizon was remembered")
	}
}

func TestBaselines(t *testing.T) {
	b := newBaselines(0.5)
	if b.get("x") != 0 {
		t.Fatalf("baseline before first update not zero")
	}
	b.update("x", 40)
	b.update("x", 60)
	if got := b.get("x"); got != 50 {
		t.Fatalf("baseline=%v want 50", got)
	}
}
