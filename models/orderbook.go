package models

import (
	"time"
)

// Side marks which side of the book an order or trade belongs to.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Level represents a single resting price level in the order book.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Side   Side    `json:"side"`
	// FirstSeen is when this price level was first observed on the book.
	// Zero when the level has no observation history.
	FirstSeen time.Time `json:"first_seen,omitempty"`
	// Reposts counts how often the level vanished from the book and came back.
	Reposts int `json:"reposts,omitempty"`
}

// Notional returns price times amount.
func (l Level) Notional() float64 {
	return l.Price * l.Amount
}

// OrderBook holds both sides of the book ordered best first:
// bids by descending price, asks by ascending price.
type OrderBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// BestBid returns the highest bid price.
func (b OrderBook) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask price.
func (b OrderBook) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// Mid returns the mid price. With one empty side the best price of the
// other side is used.
func (b OrderBook) Mid() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	switch {
	case okBid && okAsk:
		return (bid + ask) / 2, true
	case okBid:
		return bid, true
	case okAsk:
		return ask, true
	default:
		return 0, false
	}
}

// Spread returns the relative spread (ask-bid)/mid in percent.
func (b OrderBook) Spread() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	mid := (bid + ask) / 2
	if mid <= 0 {
		return 0, false
	}
	return (ask - bid) / mid * 100, true
}

// Clone returns a deep copy of the book.
func (b OrderBook) Clone() OrderBook {
	out := OrderBook{
		Bids: make([]Level, len(b.Bids)),
		Asks: make([]Level, len(b.Asks)),
	}
	copy(out.Bids, b.Bids)
	copy(out.Asks, b.Asks)
	return out
}

// Trade is a single executed trade. Side is the taker side.
type Trade struct {
	ID     string    `json:"id"`
	Price  float64   `json:"price"`
	Amount float64   `json:"amount"`
	Side   Side      `json:"side"`
	Time   time.Time `json:"time"`
}

// Ticker carries the 24h statistics of a pair.
type Ticker struct {
	Pair        string    `json:"pair"`
	Last        float64   `json:"last"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Buy         float64   `json:"buy"`
	Sell        float64   `json:"sell"`
	Volume      float64   `json:"volume"`       // base asset volume
	QuoteVolume float64   `json:"quote_volume"` // quote currency volume
	Change24h   float64   `json:"change_24h"`   // percent
	ServerTime  time.Time `json:"server_time"`
}

// MarketSnapshot is the normalized view of one pair at one point in time.
// Trades are ordered newest first. A snapshot is not modified after it has
// been built; use Clone before annotating it.
type MarketSnapshot struct {
	Pair      string    `json:"pair"`
	Ticker    Ticker    `json:"ticker"`
	Book      OrderBook `json:"book"`
	Trades    []Trade   `json:"trades"`
	FetchedAt time.Time `json:"fetched_at"`
	// Stale is set when any part was served as a last known good value.
	Stale bool `json:"stale,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s MarketSnapshot) Clone() MarketSnapshot {
	out := s
	out.Book = s.Book.Clone()
	out.Trades = make([]Trade, len(s.Trades))
	copy(out.Trades, s.Trades)
	return out
}

// PairSummary is one row of the market-wide summary.
type PairSummary struct {
	Pair        string  `json:"pair"`
	Last        float64 `json:"last"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
	Change24h   float64 `json:"change_24h"`
}

// Summary is the market-wide overview returned by GetSummary.
type Summary struct {
	Source    string        `json:"source"`
	Pairs     []PairSummary `json:"pairs"`
	FetchedAt time.Time     `json:"fetched_at"`
	Stale     bool          `json:"stale,omitempty"`
}
