package scoring

import (
	"math"

	"cryptosignal/models"
)

// executionSizes are the tested order sizes as fractions of one side's
// visible liquidity, smallest first.
var executionSizes = []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 1.0}

// ExecutionProfile walks the book with market orders of increasing size and
// reports their VWAP, slippage and the break-even exit price once a taker
// fee of feePct percent is paid on entry and exit. maxSlippagePct selects the
// optimal size. It returns nil unless both sides of the book hold liquidity.
func ExecutionProfile(book models.OrderBook, feePct, maxSlippagePct float64) *models.Execution {
	bidLiq := sideLiquidity(book.Bids)
	askLiq := sideLiquidity(book.Asks)
	if bidLiq <= 0 || askLiq <= 0 {
		return nil
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	mid := (bid + ask) / 2
	if mid <= 0 {
		return nil
	}

	ex := &models.Execution{
		BestBid:      bid,
		BestAsk:      ask,
		Mid:          mid,
		Spread:       ask - bid,
		SpreadPct:    round4((ask - bid) / mid * 100),
		BidLiquidity: bidLiq,
		AskLiquidity: askLiq,
		TakerFeePct:  feePct,
	}
	ex.Buy = slippageCurve(book.Asks, askLiq, ask, feePct, true)
	ex.Sell = slippageCurve(book.Bids, bidLiq, bid, feePct, false)
	ex.OptimalBuy = optimalSize(ex.Buy, maxSlippagePct)
	ex.OptimalSell = optimalSize(ex.Sell, maxSlippagePct)
	return ex
}

func sideLiquidity(levels []models.Level) float64 {
	total := 0.0
	for _, l := range levels {
		if l.Price > 0 && l.Amount > 0 {
			total += l.Amount
		}
	}
	return total
}

func slippageCurve(levels []models.Level, liquidity, best, feePct float64, buy bool) []models.SlippagePoint {
	fee := feePct / 100
	points := make([]models.SlippagePoint, 0, len(executionSizes))
	for _, frac := range executionSizes {
		size := liquidity * frac
		vwap, cost, used, ok := fill(levels, size)
		if !ok || vwap <= 0 {
			continue
		}
		p := models.SlippagePoint{
			Size:     size,
			SizePct:  frac * 100,
			VWAP:     vwap,
			Slippage: round4((vwap/best - 1) * 100),
			Cost:     cost,
			Levels:   used,
		}
		if buy {
			p.BreakEven = vwap * (1 + fee) / (1 - fee)
			p.ProfitNeeded = round4((p.BreakEven/vwap - 1) * 100)
		} else {
			p.BreakEven = vwap * (1 - fee) / (1 + fee)
			p.ProfitNeeded = round4((vwap/p.BreakEven - 1) * 100)
		}
		points = append(points, p)
	}
	return points
}

// fill executes size against levels, best first. ok is false when the book
// cannot absorb the whole order.
func fill(levels []models.Level, size float64) (vwap, cost float64, used int, ok bool) {
	if size <= 0 {
		return 0, 0, 0, false
	}
	remaining := size
	for _, l := range levels {
		if remaining <= size*1e-9 {
			break
		}
		if l.Price <= 0 || l.Amount <= 0 {
			continue
		}
		qty := math.Min(remaining, l.Amount)
		cost += qty * l.Price
		remaining -= qty
		used++
	}
	if remaining > size*1e-9 {
		return 0, 0, used, false
	}
	return cost / size, cost, used, true
}

// optimalSize picks the last point before slippage first exceeds the limit.
func optimalSize(points []models.SlippagePoint, limit float64) models.OptimalSize {
	if len(points) == 0 {
		return models.OptimalSize{}
	}
	best := -1
	for i, p := range points {
		if math.Abs(p.Slippage) > limit {
			break
		}
		best = i
	}
	within := best >= 0
	if !within {
		best = 0
	}
	p := points[best]
	return models.OptimalSize{
		Size:        p.Size,
		SizePct:     p.SizePct,
		VWAP:        p.VWAP,
		Slippage:    p.Slippage,
		WithinLimit: within,
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
