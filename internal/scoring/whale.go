package scoring

import (
	"cryptosignal/models"
)

type whaleActivity struct {
	sub       models.SubScore
	buyRatio  float64
	sellRatio float64
}

// whaleScore classifies trades larger than mean + 2 standard deviations of
// the window as whale trades. The ratios are whale volume over total volume
// of the same side.
func whaleScore(trades []models.Trade) (whaleActivity, []string) {
	out := whaleActivity{sub: models.SubScore{Name: Whale, Value: 50, Indicators: map[string]float64{}}}
	if len(trades) < 2 {
		return out, []string{"trades"}
	}

	amounts := make([]float64, len(trades))
	for i, t := range trades {
		amounts[i] = t.Amount
	}
	threshold := mean(amounts) + 2*stddev(amounts)

	var buyVol, sellVol, whaleBuy, whaleSell float64
	var count int
	for _, t := range trades {
		whale := t.Amount > threshold
		if whale {
			count++
		}
		if t.Side == models.SideBuy {
			buyVol += t.Amount
			if whale {
				whaleBuy += t.Amount
			}
		} else {
			sellVol += t.Amount
			if whale {
				whaleSell += t.Amount
			}
		}
	}
	if buyVol > 0 {
		out.buyRatio = whaleBuy / buyVol
	}
	if sellVol > 0 {
		out.sellRatio = whaleSell / sellVol
	}

	out.sub.Indicators["whale_threshold"] = threshold
	out.sub.Indicators["whale_trades"] = float64(count)
	out.sub.Indicators["whale_buy_ratio"] = round2(out.buyRatio)
	out.sub.Indicators["whale_sell_ratio"] = round2(out.sellRatio)
	out.sub.Value = round2(clamp(50+(out.buyRatio-out.sellRatio)*50, 0, 100))
	return out, nil
}
