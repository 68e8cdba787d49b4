package indodax

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosignal/config"
	"cryptosignal/internal/exchange"
	"cryptosignal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.IndodaxConfig{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10},
	})
}

func TestTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ticker/btcidr" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ticker":{"high":"1100000000","low":"1000000000","vol_btc":"12.5","vol_idr":"13125000000","last":"1050000000","buy":"1049000000","sell":"1051000000","server_time":1700000000}}`))
	})

	tk, err := c.Ticker(context.Background(), "btc_idr")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if tk.Last != 1050000000 || tk.Volume != 12.5 || tk.QuoteVolume != 13125000000 {
		t.Fatalf("unexpected ticker %+v", tk)
	}
	if tk.Change24h != 5 {
		t.Fatalf("change=%v want 5", tk.Change24h)
	}
	if !tk.ServerTime.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("server time %v", tk.ServerTime)
	}
}

func TestDepth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buy":[[99,"1.5"],[100,"2"],[98,"3"]],"sell":[["102","1"],[101,"0.5"]]}`))
	})

	book, err := c.Depth(context.Background(), "eth_idr", 2)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("limit not applied: %+v", book)
	}
	if book.Bids[0].Price != 100 || book.Asks[0].Price != 101 {
		t.Fatalf("book not ordered best first: %+v", book)
	}
	if book.Bids[0].Side != models.SideBuy || book.Asks[0].Side != models.SideSell {
		t.Fatalf("sides not set: %+v", book)
	}
}

func TestTrades(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"1700000001","price":"100","amount":"1","tid":"11","type":"buy"},
			{"date":"1700000003","price":"102","amount":"2","tid":"13","type":"sell"},
			{"date":1700000002,"price":101,"amount":"0.5","tid":12,"type":"buy"}
		]`))
	})

	trades, err := c.Trades(context.Background(), "btc_idr", 0)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades", len(trades))
	}
	if trades[0].ID != "13" || trades[1].ID != "12" || trades[2].ID != "11" {
		t.Fatalf("trades not newest first: %+v", trades)
	}
	if trades[0].Side != models.SideSell || trades[0].Amount != 2 {
		t.Fatalf("unexpected trade %+v", trades[0])
	}
}

func TestSummaries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tickers":{
			"btc_idr":{"last":"110","high":"120","low":"90","vol_btc":"10","vol_idr":"1100"},
			"eth_idr":{"last":"50","high":"60","low":"40","vol_eth":"100","vol_idr":"5000"}
		},"prices_24h":{"btcidr":"100","ethidr":"50"}}`))
	})

	s, err := c.Summaries(context.Background())
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(s.Pairs) != 2 || s.Pairs[0].Pair != "eth_idr" {
		t.Fatalf("pairs not sorted by volume: %+v", s.Pairs)
	}
	if s.Pairs[1].Change24h != 10 {
		t.Fatalf("btc change=%v want 10", s.Pairs[1].Change24h)
	}
}

func TestRateLimitedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("too many requests"))
	})

	_, err := c.Ticker(context.Background(), "btc_idr")
	var se *exchange.StatusError
	if !errors.As(err, &se) || !se.RateLimited() {
		t.Fatalf("err=%v want rate limited StatusError", err)
	}
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Fatalf("err does not match ErrRateLimited")
	}
}

func TestAPIErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid_pair","error_description":"Invalid Pair"}`))
	})

	_, err := c.Depth(context.Background(), "nope_idr", 10)
	var se *exchange.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v want StatusError", err)
	}
	if se.RateLimited() {
		t.Fatalf("invalid pair reported as rate limited")
	}
}
