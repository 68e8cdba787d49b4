// Package binance reads public futures market data through go-binance.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	futures "github.com/adshao/go-binance/v2/futures"

	"cryptosignal/config"
	"cryptosignal/internal/exchange"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/symbols"
	"cryptosignal/logger"
	"cryptosignal/models"
)

const sourceName = "binance"

// Client adapts a futures REST client to exchange.Source.
type Client struct {
	client      *futures.Client
	quoteAsset  string
	depthLimit  int
	tradesLimit int
	log         *logger.Log
}

var _ exchange.Source = (*Client)(nil)

func New(cfg config.BinanceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := futures.NewClient("", "")
	client.HTTPClient = &http.Client{Timeout: timeout}
	if cfg.BaseURL != "" {
		client.SetApiEndpoint(strings.TrimRight(cfg.BaseURL, "/"))
	}
	quote := strings.ToUpper(cfg.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}
	return &Client{
		client:      client,
		quoteAsset:  quote,
		depthLimit:  cfg.DepthLimit,
		tradesLimit: cfg.TradesLimit,
		log:         logger.GetLogger(),
	}
}

func (c *Client) Name() string { return sourceName }

// RequestWeightLimit returns the REQUEST_WEIGHT per minute limit announced
// by the exchange, or 0 when it cannot be determined.
func (c *Client) RequestWeightLimit(ctx context.Context) (int64, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, c.wrap(err, "exchange_info", "")
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// wrap turns API errors into StatusErrors so throttling is recognisable.
func (c *Client) wrap(err error, endpoint, pair string) error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("binance %s: %w", endpoint, err)
	}
	exchange.ReportLimit(c.log, sourceName, pair, endpoint, apiErr.Message)
	code := http.StatusBadRequest
	switch apiErr.Code {
	case -1003, -1015:
		code = http.StatusTooManyRequests
	}
	return &exchange.StatusError{
		Source:   sourceName,
		Endpoint: endpoint,
		Code:     code,
		Body:     fmt.Sprintf("code=%d %s", apiErr.Code, apiErr.Message),
	}
}

func parse(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (c *Client) Summaries(ctx context.Context) (s models.Summary, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "summaries", err) }()

	stats, err := c.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return models.Summary{}, c.wrap(err, "summaries", "")
	}
	s = models.Summary{Source: sourceName, FetchedAt: time.Now().UTC()}
	for _, st := range stats {
		if !strings.HasSuffix(st.Symbol, c.quoteAsset) {
			continue
		}
		s.Pairs = append(s.Pairs, models.PairSummary{
			Pair:        symbols.FromBinance(st.Symbol),
			Last:        parse(st.LastPrice),
			High:        parse(st.HighPrice),
			Low:         parse(st.LowPrice),
			Volume:      parse(st.Volume),
			QuoteVolume: parse(st.QuoteVolume),
			Change24h:   parse(st.PriceChangePercent),
		})
	}
	sort.Slice(s.Pairs, func(i, j int) bool { return s.Pairs[i].QuoteVolume > s.Pairs[j].QuoteVolume })
	return s, nil
}

func (c *Client) Ticker(ctx context.Context, pair string) (t models.Ticker, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "ticker", err) }()

	sym := symbols.ToBinance(pair, c.quoteAsset)
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(sym).Do(ctx)
	if err != nil {
		return models.Ticker{}, c.wrap(err, "ticker", pair)
	}
	if len(stats) == 0 {
		return models.Ticker{}, fmt.Errorf("binance ticker %s: empty response", sym)
	}
	st := stats[0]
	return models.Ticker{
		Pair:        pair,
		Last:        parse(st.LastPrice),
		High:        parse(st.HighPrice),
		Low:         parse(st.LowPrice),
		Volume:      parse(st.Volume),
		QuoteVolume: parse(st.QuoteVolume),
		Change24h:   parse(st.PriceChangePercent),
		ServerTime:  time.UnixMilli(st.CloseTime).UTC(),
	}, nil
}

func (c *Client) Depth(ctx context.Context, pair string, limit int) (b models.OrderBook, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "depth", err) }()

	svc := c.client.NewDepthService().Symbol(symbols.ToBinance(pair, c.quoteAsset))
	if n := requestSize(limit, c.depthLimit); n > 0 {
		svc = svc.Limit(depthLimit(n))
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return models.OrderBook{}, c.wrap(err, "depth", pair)
	}
	for i, l := range res.Bids {
		if limit > 0 && i >= limit {
			break
		}
		b.Bids = append(b.Bids, models.Level{Price: parse(l.Price), Amount: parse(l.Quantity), Side: models.SideBuy})
	}
	for i, l := range res.Asks {
		if limit > 0 && i >= limit {
			break
		}
		b.Asks = append(b.Asks, models.Level{Price: parse(l.Price), Amount: parse(l.Quantity), Side: models.SideSell})
	}
	return b, nil
}

// requestSize is the number of rows asked from the API: the configured size
// when set, never less than what the caller needs.
func requestSize(want, configured int) int {
	if configured > want {
		return configured
	}
	return want
}

// depthLimit rounds up to a depth the futures API accepts.
func depthLimit(n int) int {
	for _, l := range []int{5, 10, 20, 50, 100, 500, 1000} {
		if n <= l {
			return l
		}
	}
	return 1000
}

func (c *Client) Trades(ctx context.Context, pair string, limit int) (out []models.Trade, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "trades", err) }()

	svc := c.client.NewRecentTradesService().Symbol(symbols.ToBinance(pair, c.quoteAsset))
	if n := requestSize(limit, c.tradesLimit); n > 0 {
		svc = svc.Limit(n)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.wrap(err, "trades", pair)
	}
	out = make([]models.Trade, 0, len(res))
	// The API lists trades oldest first.
	for i := len(res) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		t := res[i]
		side := models.SideBuy
		if t.IsBuyerMaker {
			side = models.SideSell
		}
		out = append(out, models.Trade{
			ID:     strconv.FormatInt(t.ID, 10),
			Price:  parse(t.Price),
			Amount: parse(t.Quantity),
			Side:   side,
			Time:   time.UnixMilli(t.Time).UTC(),
		})
	}
	return out, nil
}
