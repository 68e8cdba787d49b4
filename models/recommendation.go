package models

import "time"

// Action is the trading action attached to a recommendation.
type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionHold       Action = "HOLD"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
	ActionAvoid      Action = "AVOID"
)

// IsBuy reports whether the action is bullish.
func (a Action) IsBuy() bool {
	return a == ActionBuy || a == ActionStrongBuy
}

// IsSell reports whether the action is bearish.
func (a Action) IsSell() bool {
	return a == ActionSell || a == ActionStrongSell
}

// Risk is the risk tier derived from independent risk factors.
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskMedium   Risk = "MEDIUM"
	RiskHigh     Risk = "HIGH"
	RiskVeryHigh Risk = "VERY_HIGH"
)

// Confidence describes how complete the input data was.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// SubScore is a named score in [0,100] together with the raw indicators
// that produced it.
type SubScore struct {
	Name       string             `json:"name"`
	Value      float64            `json:"value"`
	Weight     float64            `json:"weight"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Targets are the price levels suggested for an action.
type Targets struct {
	Current  float64 `json:"current"`
	Target1  float64 `json:"target_1"`
	Target2  float64 `json:"target_2"`
	StopLoss float64 `json:"stop_loss"`
}

// FearGreed is a reading of the market-wide fear and greed index.
type FearGreed struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
	Fallback       bool      `json:"fallback,omitempty"`
}

// Recommendation is the outcome of one analysis. It is built once and not
// modified afterwards; adjustments return a new value.
type Recommendation struct {
	Pair         string     `json:"pair"`
	Profile      string     `json:"profile"`
	TotalScore   float64    `json:"total_score"`
	Action       Action     `json:"action"`
	BaseAction   Action     `json:"base_action"`
	Risk         Risk       `json:"risk"`
	RiskFactors  []string   `json:"risk_factors,omitempty"`
	Confidence   Confidence `json:"confidence"`
	SubScores    []SubScore `json:"sub_scores"`
	FakeOrderPct float64    `json:"fake_order_pct"`
	Targets      Targets    `json:"targets"`
	Reasoning    string     `json:"reasoning"`
	// Missing lists the inputs that were absent and replaced by neutral values.
	Missing   []string   `json:"missing,omitempty"`
	Sentiment *FearGreed `json:"sentiment,omitempty"`
	// Execution is nil when either side of the book is empty.
	Execution   *Execution `json:"execution,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
	Stale       bool       `json:"stale,omitempty"`
}

// SubScore returns the sub-score with the given name.
func (r Recommendation) SubScore(name string) (SubScore, bool) {
	for _, s := range r.SubScores {
		if s.Name == name {
			return s, true
		}
	}
	return SubScore{}, false
}
