// Package scoring turns a market snapshot into a weighted, explainable
// recommendation. Everything here is a pure function of its inputs.
package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cryptosignal/models"
)

// Params tune the sub-score computations.
type Params struct {
	// TradeWindow is how many of the newest trades are analysed.
	TradeWindow int
	// DepthLevels caps the number of book levels read per side.
	DepthLevels int
	// BandPercent is the distance from mid, in percent, that counts towards
	// book imbalance. Zero uses the whole book.
	BandPercent    float64
	WallMultiplier float64
	FakeMultiplier float64
	StaleOrderAge  time.Duration
	RepostLimit    int
	// VolumeFloor and VolumeCeiling bound the quote volume scale of the
	// liquidity score.
	VolumeFloor   float64
	VolumeCeiling float64
	// TakerFeePct is charged on entry and exit when computing break-even
	// prices. MaxSlippagePct bounds the suggested order size.
	TakerFeePct    float64
	MaxSlippagePct float64
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		TradeWindow:    100,
		DepthLevels:    50,
		BandPercent:    2,
		WallMultiplier: 5,
		FakeMultiplier: 10,
		StaleOrderAge:  5 * time.Minute,
		RepostLimit:    3,
		VolumeFloor:    1e6,
		VolumeCeiling:  1e11,
		TakerFeePct:    0.3,
		MaxSlippagePct: 0.5,
	}
}

// Input is one scoring request. LiquidityBaseline is the trailing liquidity
// score of the pair; zero disables the liquidity risk factor.
type Input struct {
	Snapshot          models.MarketSnapshot
	LiquidityBaseline float64
}

// Engine scores snapshots with a fixed profile. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	profile Profile
	params  Params
}

// New returns an engine for the given profile.
func New(profile Profile, params Params) (*Engine, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Engine{profile: profile, params: params}, nil
}

// Profile returns the weighting preset in use.
func (e *Engine) Profile() Profile { return e.profile }

// Params returns the tuning parameters in use.
func (e *Engine) Params() Params { return e.params }

// Score builds the recommendation for one snapshot, without any market-wide
// sentiment adjustment. Sparse input never fails: the affected sub-scores
// fall back to neutral values and the gap is listed in Missing.
func (e *Engine) Score(in Input) models.Recommendation {
	snap := in.Snapshot
	now := snap.FetchedAt
	if now.IsZero() {
		now = snap.Ticker.ServerTime
	}

	var missing []string
	trades := recentTrades(snap.Trades, e.params.TradeWindow)

	tech, m := technicalScore(trades)
	missing = append(missing, m...)
	book, m := bandarmologyScore(snap.Book, e.params, now)
	missing = append(missing, m...)
	whale, m := whaleScore(trades)
	missing = append(missing, m...)
	liq, liqMissing := liquidityScore(snap.Ticker, snap.Book, e.params)
	missing = append(missing, liqMissing...)

	computed := map[string]models.SubScore{
		Technical:    tech,
		Bandarmology: book.sub,
		Whale:        whale.sub,
		Liquidity:    liq,
		Sentiment:    sentimentScore(snap.Ticker, trades, book.imbalance, whale.buyRatio-whale.sellRatio),
	}
	if e.profile.Weight(Momentum) > 0 {
		mom, m := momentumScore(snap.Ticker)
		missing = append(missing, m...)
		computed[Momentum] = mom
	}

	subs := make([]models.SubScore, 0, len(e.profile.Weights))
	for _, w := range e.profile.Weights {
		s := computed[w.Name]
		s.Weight = w.Weight
		subs = append(subs, s)
	}

	total := WeightedTotal(e.profile, subs)
	action := Decide(total, book.fakePct)
	factors := riskFactors(snap.Ticker, book.fakePct, liq.Value, in.LiquidityBaseline, whale.sellRatio)
	missing = dedupe(missing)

	rec := models.Recommendation{
		Pair:         snap.Pair,
		Profile:      e.profile.Name,
		TotalScore:   round2(total),
		Action:       action,
		BaseAction:   action,
		Risk:         RiskTier(len(factors)),
		RiskFactors:  factors,
		Confidence:   confidence(quoteVolume(snap.Ticker), missing),
		SubScores:    subs,
		FakeOrderPct: book.fakePct,
		Targets:      TargetsFor(action, currentPrice(snap)),
		Missing:      missing,
		Execution:    ExecutionProfile(snap.Book, e.params.TakerFeePct, e.params.MaxSlippagePct),
		GeneratedAt:  now,
	}
	rec.Reasoning = Reasoning(rec)
	return rec
}

// WeightedTotal returns the weighted sum of the sub-scores clamped to
// [0,100]. Sub-scores the profile does not weigh contribute nothing.
func WeightedTotal(p Profile, subs []models.SubScore) float64 {
	total := 0.0
	for _, s := range subs {
		total += s.Value * p.Weight(s.Name)
	}
	return clamp(total, 0, 100)
}

// Combine returns WeightedTotal rounded to two decimals, the form stored in
// a recommendation.
func Combine(p Profile, subs []models.SubScore) float64 {
	return round2(WeightedTotal(p, subs))
}

// thresholdEpsilon absorbs float error in a weighted sum that lands exactly
// on a threshold.
const thresholdEpsilon = 1e-9

// Decide maps an unrounded total score to an action. The manipulation gate
// is checked first and overrides the score.
func Decide(total, fakePct float64) models.Action {
	t := total + thresholdEpsilon
	switch {
	case fakePct >= 30:
		return models.ActionAvoid
	case t >= 75 && fakePct < 20:
		return models.ActionStrongBuy
	case t >= 60:
		return models.ActionBuy
	case t >= 40:
		return models.ActionHold
	case t >= 25:
		return models.ActionSell
	default:
		return models.ActionStrongSell
	}
}

// RiskTier maps a count of independent risk factors to a tier.
func RiskTier(factors int) models.Risk {
	switch {
	case factors >= 4:
		return models.RiskVeryHigh
	case factors == 3:
		return models.RiskHigh
	case factors == 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func riskFactors(t models.Ticker, fakePct, liquidity, baseline, whaleSell float64) []string {
	var out []string
	if fakePct > 30 {
		out = append(out, fmt.Sprintf("manipulation %.1f%%", fakePct))
	}
	if baseline > 0 && liquidity < baseline {
		out = append(out, fmt.Sprintf("liquidity %.1f below trailing average %.1f", liquidity, baseline))
	}
	if t.Low > 0 && t.High > t.Low {
		if swing := (t.High - t.Low) / t.Low * 100; swing > 10 {
			out = append(out, fmt.Sprintf("volatility swing %.1f%%", swing))
		}
	}
	if whaleSell > 0.3 {
		out = append(out, fmt.Sprintf("whale sell ratio %.2f", whaleSell))
	}
	return out
}

func confidence(volume float64, missing []string) models.Confidence {
	switch {
	case volume <= 0:
		return models.ConfidenceLow
	case len(missing) == 0:
		return models.ConfidenceHigh
	default:
		return models.ConfidenceMedium
	}
}

func currentPrice(s models.MarketSnapshot) float64 {
	if s.Ticker.Last > 0 {
		return s.Ticker.Last
	}
	if mid, ok := s.Book.Mid(); ok {
		return mid
	}
	if len(s.Trades) > 0 {
		return s.Trades[0].Price
	}
	return 0
}

// TargetsFor returns profit targets and a stop loss around price for the
// direction of a.
func TargetsFor(a models.Action, price float64) models.Targets {
	t1, t2, stop := 1.02, 0.98, 0.95
	switch {
	case a.IsBuy():
		t1, t2, stop = 1.05, 1.10, 0.97
	case a.IsSell():
		t1, t2, stop = 0.95, 0.90, 1.03
	}
	return models.Targets{
		Current:  price,
		Target1:  price * t1,
		Target2:  price * t2,
		StopLoss: price * stop,
	}
}

// Reasoning summarises why a recommendation came out the way it did.
func Reasoning(r models.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s with total score %.2f", r.Action, r.TotalScore)

	if len(r.SubScores) > 0 {
		ranked := make([]models.SubScore, len(r.SubScores))
		copy(ranked, r.SubScores)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
		hi, lo := ranked[0], ranked[len(ranked)-1]
		fmt.Fprintf(&b, "; strongest %s %.1f, weakest %s %.1f", hi.Name, hi.Value, lo.Name, lo.Value)
	}
	if r.Action == models.ActionAvoid {
		fmt.Fprintf(&b, "; fake orders at %.1f%% override the score", r.FakeOrderPct)
	} else if r.TotalScore >= 75 && r.Action == models.ActionBuy {
		fmt.Fprintf(&b, "; fake orders at %.1f%% block a strong buy", r.FakeOrderPct)
	}
	if r.BaseAction != "" && r.Action != r.BaseAction {
		fmt.Fprintf(&b, "; adjusted from %s by market sentiment", r.BaseAction)
	}
	fmt.Fprintf(&b, "; risk %s", r.Risk)
	if len(r.RiskFactors) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(r.RiskFactors, ", "))
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(r.Missing, ", "))
	}
	return b.String()
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
