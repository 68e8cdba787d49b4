package models

// SlippagePoint is the cost of filling one market order of Size base units
// against the visible book.
type SlippagePoint struct {
	Size     float64 `json:"size"`
	SizePct  float64 `json:"size_pct"` // share of the side's visible liquidity
	VWAP     float64 `json:"vwap"`
	Slippage float64 `json:"slippage_pct"` // VWAP versus best price, signed
	Cost     float64 `json:"total_cost"`
	Levels   int     `json:"levels_consumed"`
	// BreakEven is the exit price that recovers both taker fees. For buys it
	// is the lowest sell price, for sells the highest re-entry price.
	BreakEven    float64 `json:"breakeven_price"`
	ProfitNeeded float64 `json:"profit_needed_pct"`
}

// OptimalSize is the largest tested order whose slippage stays within the
// limit. WithinLimit is false when even the smallest order exceeds it, in
// which case the smallest order is reported.
type OptimalSize struct {
	Size        float64 `json:"size"`
	SizePct     float64 `json:"size_pct"`
	VWAP        float64 `json:"vwap"`
	Slippage    float64 `json:"slippage_pct"`
	WithinLimit bool    `json:"within_limit"`
}

// Execution describes what market orders of various sizes would cost.
type Execution struct {
	BestBid      float64         `json:"best_bid"`
	BestAsk      float64         `json:"best_ask"`
	Mid          float64         `json:"mid"`
	Spread       float64         `json:"spread"`
	SpreadPct    float64         `json:"spread_pct"`
	BidLiquidity float64         `json:"bid_liquidity"`
	AskLiquidity float64         `json:"ask_liquidity"`
	TakerFeePct  float64         `json:"taker_fee_pct"`
	Buy          []SlippagePoint `json:"buy"`
	Sell         []SlippagePoint `json:"sell"`
	OptimalBuy   OptimalSize     `json:"optimal_buy"`
	OptimalSell  OptimalSize     `json:"optimal_sell"`
}
