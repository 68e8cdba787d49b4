// Package bybit reads public v5 market data through the Bybit Go SDK.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	bybitapi "github.com/bybit-exchange/bybit.go.api"

	"cryptosignal/config"
	"cryptosignal/internal/exchange"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/symbols"
	"cryptosignal/logger"
	"cryptosignal/models"
)

const sourceName = "bybit"

// retCodes Bybit uses for throttled requests.
var throttledCodes = map[int]bool{
	10006: true, // too many visits
	10018: true, // ip rate limit exceeded
}

// Client adapts the SDK's market endpoints to exchange.Source.
type Client struct {
	client      *bybitapi.Client
	category    string
	quoteAsset  string
	depthLimit  int
	tradesLimit int
	log         *logger.Log
}

var _ exchange.Source = (*Client)(nil)

func New(cfg config.BybitConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.bybit.com"
	}
	category := cfg.Category
	if category == "" {
		category = "linear"
	}
	quote := strings.ToUpper(cfg.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}

	log := logger.GetLogger()
	client := bybitapi.NewBybitHttpClient("", "", bybitapi.WithBaseURL(base))
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &limitTransport{base: http.DefaultTransport, log: log},
	}
	return &Client{
		client:      client,
		category:    category,
		quoteAsset:  quote,
		depthLimit:  cfg.DepthLimit,
		tradesLimit: cfg.TradesLimit,
		log:         log,
	}
}

func (c *Client) Name() string { return sourceName }

func (c *Client) symbol(pair string) string {
	return symbols.ToBybit(pair, c.quoteAsset, c.category == "linear")
}

// decode checks the envelope and copies the result into out.
func (c *Client) decode(resp *bybitapi.ServerResponse, endpoint, pair string, out interface{}) error {
	if resp == nil {
		return fmt.Errorf("bybit %s: empty response", endpoint)
	}
	if resp.RetCode != 0 {
		exchange.ReportLimit(c.log, sourceName, pair, endpoint, resp.RetMsg)
		code := http.StatusBadRequest
		if throttledCodes[resp.RetCode] {
			code = http.StatusTooManyRequests
		}
		return &exchange.StatusError{
			Source:   sourceName,
			Endpoint: endpoint,
			Code:     code,
			Body:     fmt.Sprintf("retCode=%d %s", resp.RetCode, resp.RetMsg),
		}
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("bybit %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bybit %s: decode result: %w", endpoint, err)
	}
	return nil
}

// wrap reports throttling hints in transport errors. Throttled responses
// themselves arrive as envelopes and are handled by decode.
func (c *Client) wrap(err error, endpoint, pair string) error {
	exchange.ReportLimit(c.log, sourceName, pair, endpoint, err.Error())
	return fmt.Errorf("bybit %s: %w", endpoint, err)
}

func parse(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

type tickerList struct {
	List []struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		HighPrice24h string `json:"highPrice24h"`
		LowPrice24h  string `json:"lowPrice24h"`
		Volume24h    string `json:"volume24h"`
		Turnover24h  string `json:"turnover24h"`
		Price24hPcnt string `json:"price24hPcnt"`
		Bid1Price    string `json:"bid1Price"`
		Ask1Price    string `json:"ask1Price"`
	} `json:"list"`
}

func (c *Client) Summaries(ctx context.Context) (s models.Summary, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "summaries", err) }()

	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": c.category,
	}).GetMarketTickers(ctx)
	if err != nil {
		return models.Summary{}, c.wrap(err, "summaries", "")
	}
	var res tickerList
	if err := c.decode(resp, "summaries", "", &res); err != nil {
		return models.Summary{}, err
	}
	s = models.Summary{Source: sourceName, FetchedAt: time.Now().UTC()}
	for _, t := range res.List {
		if !strings.HasSuffix(t.Symbol, c.quoteAsset) {
			continue
		}
		s.Pairs = append(s.Pairs, models.PairSummary{
			Pair:        symbols.FromBybit(t.Symbol),
			Last:        parse(t.LastPrice),
			High:        parse(t.HighPrice24h),
			Low:         parse(t.LowPrice24h),
			Volume:      parse(t.Volume24h),
			QuoteVolume: parse(t.Turnover24h),
			Change24h:   parse(t.Price24hPcnt) * 100,
		})
	}
	sort.Slice(s.Pairs, func(i, j int) bool { return s.Pairs[i].QuoteVolume > s.Pairs[j].QuoteVolume })
	return s, nil
}

func (c *Client) Ticker(ctx context.Context, pair string) (t models.Ticker, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "ticker", err) }()

	sym := c.symbol(pair)
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": c.category,
		"symbol":   sym,
	}).GetMarketTickers(ctx)
	if err != nil {
		return models.Ticker{}, c.wrap(err, "ticker", pair)
	}
	var res tickerList
	if err := c.decode(resp, "ticker", pair, &res); err != nil {
		return models.Ticker{}, err
	}
	if len(res.List) == 0 {
		return models.Ticker{}, fmt.Errorf("bybit ticker %s: empty response", sym)
	}
	st := res.List[0]
	return models.Ticker{
		Pair:        pair,
		Last:        parse(st.LastPrice),
		High:        parse(st.HighPrice24h),
		Low:         parse(st.LowPrice24h),
		Buy:         parse(st.Bid1Price),
		Sell:        parse(st.Ask1Price),
		Volume:      parse(st.Volume24h),
		QuoteVolume: parse(st.Turnover24h),
		Change24h:   parse(st.Price24hPcnt) * 100,
		ServerTime:  time.Now().UTC(),
	}, nil
}

type orderBook struct {
	Symbol string      `json:"s"`
	Bids   [][2]string `json:"b"`
	Asks   [][2]string `json:"a"`
	TS     int64       `json:"ts"`
}

func (c *Client) Depth(ctx context.Context, pair string, limit int) (b models.OrderBook, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "depth", err) }()

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   c.symbol(pair),
	}
	if n := requestSize(limit, c.depthLimit); n > 0 {
		params["limit"] = c.clampDepth(n)
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return models.OrderBook{}, c.wrap(err, "depth", pair)
	}
	var res orderBook
	if err := c.decode(resp, "depth", pair, &res); err != nil {
		return models.OrderBook{}, err
	}
	for i, l := range res.Bids {
		if limit > 0 && i >= limit {
			break
		}
		b.Bids = append(b.Bids, models.Level{Price: parse(l[0]), Amount: parse(l[1]), Side: models.SideBuy})
	}
	for i, l := range res.Asks {
		if limit > 0 && i >= limit {
			break
		}
		b.Asks = append(b.Asks, models.Level{Price: parse(l[0]), Amount: parse(l[1]), Side: models.SideSell})
	}
	return b, nil
}

// clampDepth caps the depth at what the category serves: 500 levels for
// derivatives, 200 for spot.
func (c *Client) clampDepth(n int) int {
	ceiling := 500
	if c.category == "spot" {
		ceiling = 200
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

// requestSize is the number of rows asked from the API: the configured size
// when set, never less than what the caller needs.
func requestSize(want, configured int) int {
	if configured > want {
		return configured
	}
	return want
}

type tradeList struct {
	List []struct {
		ExecID string `json:"execId"`
		Price  string `json:"price"`
		Size   string `json:"size"`
		Side   string `json:"side"`
		Time   string `json:"time"`
	} `json:"list"`
}

func (c *Client) Trades(ctx context.Context, pair string, limit int) (out []models.Trade, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "trades", err) }()

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   c.symbol(pair),
	}
	if n := requestSize(limit, c.tradesLimit); n > 0 {
		if n > 1000 {
			n = 1000
		}
		params["limit"] = n
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetPublicRecentTrades(ctx)
	if err != nil {
		return nil, c.wrap(err, "trades", pair)
	}
	var res tradeList
	if err := c.decode(resp, "trades", pair, &res); err != nil {
		return nil, err
	}
	out = make([]models.Trade, 0, len(res.List))
	for _, t := range res.List {
		side := models.SideBuy
		if strings.EqualFold(t.Side, "sell") {
			side = models.SideSell
		}
		ms, _ := strconv.ParseInt(t.Time, 10, 64)
		out = append(out, models.Trade{
			ID:     t.ExecID,
			Price:  parse(t.Price),
			Amount: parse(t.Size),
			Side:   side,
			Time:   time.UnixMilli(ms).UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
