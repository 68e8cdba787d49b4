// Package sentiment reads the market-wide fear and greed index and applies
// it to recommendations as a contrarian signal.
package sentiment

import (
	"cryptosignal/internal/scoring"
	"cryptosignal/models"
)

// Adjuster shifts actions one step against the crowd: below Fear it leans
// bullish, above Greed bearish.
type Adjuster struct {
	Fear  int
	Greed int
}

// NewAdjuster returns an adjuster with the given thresholds.
func NewAdjuster(fear, greed int) Adjuster {
	return Adjuster{Fear: fear, Greed: greed}
}

// Adjust returns a copy of rec with the reading applied. The shift is always
// computed from rec.BaseAction, so adjusting an already adjusted
// recommendation with the same reading changes nothing.
func (a Adjuster) Adjust(rec models.Recommendation, reading models.FearGreed) models.Recommendation {
	out := rec
	base := rec.BaseAction
	if base == "" {
		base = rec.Action
	}
	out.BaseAction = base
	out.Action = a.shift(base, reading.Value)
	r := reading
	out.Sentiment = &r

	if out.Action != rec.Action {
		out.Targets = scoring.TargetsFor(out.Action, rec.Targets.Current)
	}
	out.Reasoning = scoring.Reasoning(out)
	return out
}

func (a Adjuster) shift(action models.Action, index int) models.Action {
	switch {
	case index < a.Fear:
		switch action {
		case models.ActionHold:
			return models.ActionBuy
		case models.ActionBuy:
			return models.ActionStrongBuy
		}
	case index > a.Greed:
		switch action {
		case models.ActionHold:
			return models.ActionSell
		case models.ActionSell:
			return models.ActionStrongSell
		}
	}
	return action
}

// Classify names the band an index value falls in.
func Classify(index int) string {
	switch {
	case index <= 25:
		return "Extreme Fear"
	case index <= 45:
		return "Fear"
	case index <= 55:
		return "Neutral"
	case index <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}
