// Package exchange defines the upstream market data capability and the
// errors its implementations report.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cryptosignal/models"
)

// ErrRateLimited is matched by StatusErrors that carry an upstream throttle.
var ErrRateLimited = errors.New("rate limited by upstream")

// Source is a market data upstream. Every method issues exactly one request.
type Source interface {
	Name() string
	Summaries(ctx context.Context) (models.Summary, error)
	Ticker(ctx context.Context, pair string) (models.Ticker, error)
	// Depth returns at most limit levels per side, best first.
	Depth(ctx context.Context, pair string, limit int) (models.OrderBook, error)
	// Trades returns at most limit recent trades, newest first.
	Trades(ctx context.Context, pair string, limit int) ([]models.Trade, error)
}

// StatusError is a non-success response from an upstream.
type StatusError struct {
	Source   string
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Source, e.Endpoint, e.Code, e.Body)
}

// RateLimited reports whether the upstream refused the request for exceeding
// its rate limit or banned the caller.
func (e *StatusError) RateLimited() bool {
	if e.Code == http.StatusTooManyRequests || e.Code == http.StatusTeapot {
		return true
	}
	rateLimit, ipBan := detectLimit(e.Source, e.Body)
	return rateLimit || ipBan
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited()
}
