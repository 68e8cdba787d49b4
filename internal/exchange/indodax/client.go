// Package indodax reads public market data from the Indodax REST API.
package indodax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cryptosignal/config"
	"cryptosignal/internal/exchange"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/symbols"
	"cryptosignal/logger"
	"cryptosignal/models"
)

const (
	sourceName   = "indodax"
	maxBodyBytes = 8 << 20
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

var _ exchange.Source = (*Client)(nil)

// New builds a client from the indodax source configuration. The limiter
// only smooths bursts on the wire; the request budget itself is enforced
// by the caller's governor.
func New(cfg config.IndodaxConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        logger.GetLogger(),
	}
}

func (c *Client) Name() string { return sourceName }

// apiError is the body Indodax sends, often with status 200, for bad requests.
type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (c *Client) get(ctx context.Context, kind, path, pair string, out interface{}) (err error) {
	defer func() { metrics.UpstreamCall(sourceName, kind, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cryptosignal/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("indodax %s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("indodax %s: read body: %w", kind, err)
	}
	c.log.WithComponent("indodax_client").WithFields(logger.Fields{
		"endpoint": kind,
		"pair":     pair,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Milliseconds(),
	}).Debug("upstream response")

	if resp.StatusCode != http.StatusOK {
		exchange.ReportLimit(c.log, sourceName, pair, kind, resp.Status+" "+string(body))
		return &exchange.StatusError{Source: sourceName, Endpoint: kind, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
		msg := strings.TrimSpace(ae.Error + " " + ae.Description)
		exchange.ReportLimit(c.log, sourceName, pair, kind, msg)
		return &exchange.StatusError{Source: sourceName, Endpoint: kind, Code: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("indodax %s: decode: %w", kind, err)
	}
	return nil
}

// fields holds one ticker object. Volume keys depend on the pair
// ("vol_btc", "vol_idr") so the object is kept raw.
type fields map[string]json.RawMessage

func (f fields) num(key string) float64 {
	raw, ok := f[key]
	if !ok {
		return 0
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return 0
	}
	v, _ := d.Float64()
	return v
}

func (f fields) ticker(pair string) models.Ticker {
	base, quote := symbols.Split(pair)
	t := models.Ticker{
		Pair:        pair,
		Last:        f.num("last"),
		High:        f.num("high"),
		Low:         f.num("low"),
		Buy:         f.num("buy"),
		Sell:        f.num("sell"),
		Volume:      f.num("vol_" + base),
		QuoteVolume: f.num("vol_" + quote),
	}
	if ts := int64(f.num("server_time")); ts > 0 {
		t.ServerTime = time.Unix(ts, 0).UTC()
	}
	// The ticker carries no 24h open; measure the move from the 24h low.
	if t.Low > 0 && t.Last > 0 {
		t.Change24h = (t.Last - t.Low) / t.Low * 100
	}
	return t
}

// Summaries returns every pair on the exchange, sorted by quote volume.
func (c *Client) Summaries(ctx context.Context) (models.Summary, error) {
	var payload struct {
		Tickers   map[string]fields          `json:"tickers"`
		Prices24h map[string]decimal.Decimal `json:"prices_24h"`
	}
	if err := c.get(ctx, "summaries", "/api/summaries", "", &payload); err != nil {
		return models.Summary{}, err
	}
	if len(payload.Tickers) == 0 {
		return models.Summary{}, fmt.Errorf("indodax summaries: no tickers in response")
	}

	out := models.Summary{Source: sourceName, FetchedAt: time.Now().UTC()}
	for id, f := range payload.Tickers {
		pair, ok := symbols.Normalize(id, "idr")
		if !ok {
			continue
		}
		t := f.ticker(pair)
		ps := models.PairSummary{
			Pair:        pair,
			Last:        t.Last,
			High:        t.High,
			Low:         t.Low,
			Volume:      t.Volume,
			QuoteVolume: t.QuoteVolume,
		}
		if open, ok := payload.Prices24h[symbols.ToIndodax(pair)]; ok && open.IsPositive() {
			o, _ := open.Float64()
			ps.Change24h = (t.Last - o) / o * 100
		}
		out.Pairs = append(out.Pairs, ps)
	}
	sort.Slice(out.Pairs, func(i, j int) bool {
		if out.Pairs[i].QuoteVolume != out.Pairs[j].QuoteVolume {
			return out.Pairs[i].QuoteVolume > out.Pairs[j].QuoteVolume
		}
		return out.Pairs[i].Pair < out.Pairs[j].Pair
	})
	return out, nil
}

func (c *Client) Ticker(ctx context.Context, pair string) (models.Ticker, error) {
	var payload struct {
		Ticker fields `json:"ticker"`
	}
	if err := c.get(ctx, "ticker", "/api/ticker/"+symbols.ToIndodax(pair), pair, &payload); err != nil {
		return models.Ticker{}, err
	}
	if len(payload.Ticker) == 0 {
		return models.Ticker{}, fmt.Errorf("indodax ticker %s: empty ticker", pair)
	}
	return payload.Ticker.ticker(pair), nil
}

func levels(rows [][2]decimal.Decimal, side models.Side) []models.Level {
	out := make([]models.Level, 0, len(rows))
	for _, r := range rows {
		p, _ := r[0].Float64()
		a, _ := r[1].Float64()
		out = append(out, models.Level{Price: p, Amount: a, Side: side})
	}
	return out
}

func (c *Client) Depth(ctx context.Context, pair string, limit int) (models.OrderBook, error) {
	var payload struct {
		Buy  [][2]decimal.Decimal `json:"buy"`
		Sell [][2]decimal.Decimal `json:"sell"`
	}
	if err := c.get(ctx, "depth", "/api/depth/"+symbols.ToIndodax(pair), pair, &payload); err != nil {
		return models.OrderBook{}, err
	}
	book := models.OrderBook{
		Bids: levels(payload.Buy, models.SideBuy),
		Asks: levels(payload.Sell, models.SideSell),
	}
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	if limit > 0 {
		if len(book.Bids) > limit {
			book.Bids = book.Bids[:limit]
		}
		if len(book.Asks) > limit {
			book.Asks = book.Asks[:limit]
		}
	}
	return book, nil
}

type tradeRow struct {
	Date   decimal.Decimal `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	TID    json.RawMessage `json:"tid"`
	Type   string          `json:"type"`
}

func (c *Client) Trades(ctx context.Context, pair string, limit int) ([]models.Trade, error) {
	var rows []tradeRow
	if err := c.get(ctx, "trades", "/api/trades/"+symbols.ToIndodax(pair), pair, &rows); err != nil {
		return nil, err
	}
	trades := make([]models.Trade, 0, len(rows))
	for _, r := range rows {
		p, _ := r.Price.Float64()
		a, _ := r.Amount.Float64()
		side := models.SideBuy
		if strings.EqualFold(r.Type, "sell") {
			side = models.SideSell
		}
		t := models.Trade{ID: strings.Trim(string(r.TID), `"`), Price: p, Amount: a, Side: side}
		if sec := r.Date.IntPart(); sec > 0 {
			t.Time = time.Unix(sec, 0).UTC()
		}
		trades = append(trades, t)
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Time.After(trades[j].Time) })
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}
