package scoring

import (
	"math"

	"cryptosignal/models"
)

const (
	tightSpreadPct = 0.1
	wideSpreadPct  = 2.0
)

// volumeTrend compares traded volume of the newer half of the window with
// the older half, in [-1, 1].
func volumeTrend(trades []models.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	half := len(trades) / 2
	var older, recent float64
	for i, t := range trades {
		if i < half {
			older += t.Amount
		} else {
			recent += t.Amount
		}
	}
	if older+recent == 0 {
		return 0
	}
	return (recent - older) / (recent + older)
}

// sentimentScore is the market mood simulated from the snapshot itself.
func sentimentScore(t models.Ticker, trades []models.Trade, imbalance, whaleImpact float64) models.SubScore {
	momentum := clamp(t.Change24h, -10, 10) / 10
	trend := volumeTrend(trades)
	mood := 0.35*momentum + 0.20*trend + 0.25*imbalance + 0.20*whaleImpact

	return models.SubScore{
		Name:  Sentiment,
		Value: round2(clamp(50+50*mood, 0, 100)),
		Indicators: map[string]float64{
			"price_momentum": round2(momentum),
			"volume_trend":   round2(trend),
			"imbalance":      round2(imbalance),
			"whale_impact":   round2(whaleImpact),
		},
	}
}

func quoteVolume(t models.Ticker) float64 {
	if t.QuoteVolume > 0 {
		return t.QuoteVolume
	}
	if t.Volume > 0 && t.Last > 0 {
		return t.Volume * t.Last
	}
	return 0
}

// liquidityScore maps quote volume on a log scale between floor and ceiling
// and blends it with how tight the spread is. No volume scores zero.
func liquidityScore(t models.Ticker, book models.OrderBook, p Params) (models.SubScore, []string) {
	sub := models.SubScore{Name: Liquidity, Indicators: map[string]float64{}}
	q := quoteVolume(t)
	if q <= 0 {
		return sub, []string{"volume"}
	}

	var volScore float64
	if p.VolumeCeiling > p.VolumeFloor && p.VolumeFloor > 0 {
		lo, hi := math.Log10(p.VolumeFloor), math.Log10(p.VolumeCeiling)
		volScore = clamp((math.Log10(q)-lo)/(hi-lo)*100, 0, 100)
	}

	var spreadScore float64
	spread, ok := book.Spread()
	if ok {
		sub.Indicators["spread_pct"] = round2(spread)
		switch {
		case spread <= tightSpreadPct:
			spreadScore = 100
		case spread >= wideSpreadPct:
			spreadScore = 0
		default:
			spreadScore = (wideSpreadPct - spread) / (wideSpreadPct - tightSpreadPct) * 100
		}
	}

	sub.Indicators["quote_volume"] = q
	sub.Indicators["volume_score"] = round2(volScore)
	sub.Indicators["spread_score"] = round2(spreadScore)
	sub.Value = round2(0.7*volScore + 0.3*spreadScore)
	if !ok {
		return sub, []string{"spread"}
	}
	return sub, nil
}

// LiquidityScore returns the liquidity sub-score of a ticker and book,
// whether or not a profile weighs it.
func LiquidityScore(t models.Ticker, book models.OrderBook, p Params) float64 {
	sub, _ := liquidityScore(t, book, p)
	return sub.Value
}

// momentumScore places the last price within the 24h range.
func momentumScore(t models.Ticker) (models.SubScore, []string) {
	sub := models.SubScore{Name: Momentum, Value: 50, Indicators: map[string]float64{}}
	if t.High <= t.Low || t.Last <= 0 {
		return sub, []string{"range"}
	}
	pos := (t.Last - t.Low) / (t.High - t.Low)
	sub.Indicators["range_position"] = round2(pos)
	sub.Indicators["change_24h"] = t.Change24h
	sub.Value = round2(clamp(pos*100, 0, 100))
	return sub, nil
}
