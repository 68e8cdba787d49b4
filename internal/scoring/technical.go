package scoring

import (
	"cryptosignal/models"
)

const (
	rsiPeriod     = 14
	emaFastPeriod = 12
	emaSlowPeriod = 26
	smaPeriod     = 20

	rsiOversold   = 30
	rsiOverbought = 70
)

// recentTrades returns at most n of the newest trades in chronological order.
func recentTrades(trades []models.Trade, n int) []models.Trade {
	if n > 0 && len(trades) > n {
		trades = trades[:n]
	}
	out := make([]models.Trade, len(trades))
	for i, t := range trades {
		out[len(trades)-1-i] = t
	}
	return out
}

func closes(trades []models.Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.Price
	}
	return out
}

// technicalScore starts neutral and moves on RSI extremes, an EMA crossover,
// the position of the last price against its SMA and the trade flow.
func technicalScore(trades []models.Trade) (models.SubScore, []string) {
	sub := models.SubScore{Name: Technical, Value: 50, Indicators: map[string]float64{}}
	if len(trades) < 2 {
		return sub, []string{"price_history"}
	}

	prices := closes(trades)
	last := prices[len(prices)-1]
	score := 50.0

	if rsi, ok := RSI(prices, rsiPeriod); ok {
		sub.Indicators["rsi"] = round2(rsi)
		switch {
		case rsi < rsiOversold:
			score += 20
		case rsi > rsiOverbought:
			score -= 20
		}
	}

	fast, okFast := EMA(prices, emaFastPeriod)
	slow, okSlow := EMA(prices, emaSlowPeriod)
	if okFast && okSlow {
		sub.Indicators["ema_fast"] = fast
		sub.Indicators["ema_slow"] = slow
		if fast > slow {
			score += 15
		} else if fast < slow {
			score -= 15
		}
	}

	if sma, ok := SMA(prices, smaPeriod); ok && sma > 0 {
		sub.Indicators["sma"] = sma
		dev := (last - sma) / sma * 100
		if dev > 2 {
			score += 15
		} else if dev < -2 {
			score -= 15
		}
	}

	if ofi, ok := OrderFlowImbalance(trades); ok {
		sub.Indicators["ofi"] = round2(ofi)
		if ofi > 0.2 {
			score += 5
		} else if ofi < -0.2 {
			score -= 5
		}
	}
	sub.Indicators["cvd"] = CumulativeVolumeDelta(trades)
	if lambda, ok := KyleLambda(trades); ok {
		sub.Indicators["kyle_lambda"] = lambda
	}

	sub.Value = round2(clamp(score, 0, 100))
	return sub, nil
}
