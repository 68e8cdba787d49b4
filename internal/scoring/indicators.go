package scoring

import (
	"math"

	"cryptosignal/models"
)

// RSI computes Wilder's relative strength index of the last value in
// closes. ok is false when fewer than period+1 values are available.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// EMA returns the exponential moving average of data seeded with the simple
// average of the first period values.
func EMA(data []float64, period int) (float64, bool) {
	if period <= 0 || len(data) < period {
		return 0, false
	}
	k := 2.0 / (float64(period) + 1.0)
	ema := mean(data[:period])
	for _, v := range data[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// SMA returns the average of the last period values.
func SMA(data []float64, period int) (float64, bool) {
	if period <= 0 || len(data) < period {
		return 0, false
	}
	return mean(data[len(data)-period:]), true
}

// OrderFlowImbalance is (buy volume - sell volume) / total volume of the
// trades, in [-1, 1]. ok is false when there is no volume.
func OrderFlowImbalance(trades []models.Trade) (float64, bool) {
	var buy, sell float64
	for _, t := range trades {
		if t.Side == models.SideBuy {
			buy += t.Amount
		} else {
			sell += t.Amount
		}
	}
	if buy+sell == 0 {
		return 0, false
	}
	return (buy - sell) / (buy + sell), true
}

// CumulativeVolumeDelta is the sum of buy volume minus sell volume.
func CumulativeVolumeDelta(trades []models.Trade) float64 {
	cvd := 0.0
	for _, t := range trades {
		if t.Side == models.SideBuy {
			cvd += t.Amount
		} else {
			cvd -= t.Amount
		}
	}
	return cvd
}

const (
	kyleWindow    = 5
	kyleMinTrades = 10
)

// KyleLambda estimates price impact per unit of signed volume as
// cov(dP, Q) / var(Q), where for every rolling window of five trades dP is
// the price move across the window and Q the net taker volume inside it.
// trades must be in chronological order. ok is false with fewer than ten
// trades or when signed volume does not vary.
func KyleLambda(trades []models.Trade) (float64, bool) {
	if len(trades) < kyleMinTrades {
		return 0, false
	}

	dp := make([]float64, 0, len(trades)-kyleWindow)
	q := make([]float64, 0, len(trades)-kyleWindow)
	for i := kyleWindow; i < len(trades); i++ {
		net := 0.0
		for _, t := range trades[i-kyleWindow : i] {
			if t.Side == models.SideBuy {
				net += t.Amount
			} else {
				net -= t.Amount
			}
		}
		dp = append(dp, trades[i].Price-trades[i-kyleWindow].Price)
		q = append(q, net)
	}

	mq, mp := mean(q), mean(dp)
	var cov, variance float64
	for i := range q {
		cov += (q[i] - mq) * (dp[i] - mp)
		variance += (q[i] - mq) * (q[i] - mq)
	}
	if variance == 0 {
		return 0, false
	}
	return cov / variance, true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
