package scoring

import (
	"math"
	"time"

	"cryptosignal/models"
)

type bookStructure struct {
	sub       models.SubScore
	imbalance float64
	fakePct   float64
}

func topLevels(levels []models.Level, n int) []models.Level {
	if n > 0 && len(levels) > n {
		return levels[:n]
	}
	return levels
}

func meanAmount(levels []models.Level) float64 {
	if len(levels) == 0 {
		return 0
	}
	s := 0.0
	for _, l := range levels {
		s += l.Amount
	}
	return s / float64(len(levels))
}

// Imbalance is (bid notional - ask notional) / (bid notional + ask notional)
// over the levels within bandPct percent of mid. A book with one empty side
// is fully one-sided; an empty book reports ok false.
func Imbalance(book models.OrderBook, bandPct float64) (float64, bool) {
	mid, ok := book.Mid()
	if !ok || mid <= 0 {
		return 0, false
	}
	inBand := func(levels []models.Level) float64 {
		s := 0.0
		for _, l := range levels {
			if bandPct <= 0 || math.Abs(l.Price-mid)/mid*100 <= bandPct {
				s += l.Notional()
			}
		}
		return s
	}

	bid, ask := inBand(book.Bids), inBand(book.Asks)
	switch {
	case len(book.Asks) == 0:
		return 1, true
	case len(book.Bids) == 0:
		return -1, true
	case bid+ask == 0:
		return 0, true
	}
	return (bid - ask) / (bid + ask), true
}

// countWalls counts levels larger than mult times the side's mean amount.
func countWalls(levels []models.Level, mult float64) int {
	m := meanAmount(levels)
	n := 0
	for _, l := range levels {
		if l.Amount > mult*m {
			n++
		}
	}
	return n
}

// countFake counts levels that look like spoofing: oversized, resting large
// for longer than the stale age, or repeatedly pulled and re-posted.
func countFake(levels []models.Level, p Params, now time.Time) int {
	m := meanAmount(levels)
	n := 0
	for _, l := range levels {
		switch {
		case l.Amount > p.FakeMultiplier*m:
		case p.StaleOrderAge > 0 && !l.FirstSeen.IsZero() && now.Sub(l.FirstSeen) > p.StaleOrderAge && l.Amount > p.WallMultiplier*m:
		case p.RepostLimit > 0 && l.Reposts >= p.RepostLimit:
		default:
			continue
		}
		n++
	}
	return n
}

// FakeOrderPct returns the share of book levels flagged as fake, in percent.
func FakeOrderPct(book models.OrderBook, p Params, now time.Time) float64 {
	bids, asks := topLevels(book.Bids, p.DepthLevels), topLevels(book.Asks, p.DepthLevels)
	total := len(bids) + len(asks)
	if total == 0 {
		return 0
	}
	fake := countFake(bids, p, now) + countFake(asks, p, now)
	return float64(fake) / float64(total) * 100
}

func bandarmologyScore(book models.OrderBook, p Params, now time.Time) (bookStructure, []string) {
	out := bookStructure{sub: models.SubScore{Name: Bandarmology, Value: 50, Indicators: map[string]float64{}}}
	book = models.OrderBook{Bids: topLevels(book.Bids, p.DepthLevels), Asks: topLevels(book.Asks, p.DepthLevels)}

	imb, ok := Imbalance(book, p.BandPercent)
	if !ok {
		return out, []string{"order_book"}
	}
	bidWalls := countWalls(book.Bids, p.WallMultiplier)
	askWalls := countWalls(book.Asks, p.WallMultiplier)
	fake := FakeOrderPct(book, p, now)

	score := 50 + imb*30
	score += clamp(float64(bidWalls-askWalls), -2, 2) * 5
	score -= math.Min(fake*0.4, 20)

	out.imbalance = imb
	out.fakePct = round2(fake)
	out.sub.Indicators["imbalance"] = round2(imb)
	out.sub.Indicators["bid_walls"] = float64(bidWalls)
	out.sub.Indicators["ask_walls"] = float64(askWalls)
	out.sub.Indicators["fake_order_pct"] = out.fakePct
	out.sub.Value = round2(clamp(score, 0, 100))
	return out, nil
}
