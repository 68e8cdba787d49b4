package binance

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

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(config.BinanceConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, QuoteAsset: "USDT"})
}

func TestDepthAndTrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/depth", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol=%s want BTCUSDT", got)
		}
		w.Write([]byte(`{"lastUpdateId":1,"E":1,"T":1,"bids":[["100.0","2"],["99.5","1"]],"asks":[["100.5","3"]]}`))
	})
	mux.HandleFunc("/fapi/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"price":"100","qty":"1","quoteQty":"100","time":1700000000000,"isBuyerMaker":true},
			{"id":2,"price":"101","qty":"2","quoteQty":"202","time":1700000001000,"isBuyerMaker":false}
		]`))
	})
	c := newTestClient(t, mux)

	book, err := c.Depth(context.Background(), "btc_idr", 5)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(book.Bids) != 2 || book.Bids[0].Price != 100 || book.Asks[0].Amount != 3 {
		t.Fatalf("unexpected book %+v", book)
	}

	trades, err := c.Trades(context.Background(), "btc_usdt", 10)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 2 || trades[0].ID != "2" {
		t.Fatalf("trades not newest first: %+v", trades)
	}
	if trades[0].Side != models.SideBuy || trades[1].Side != models.SideSell {
		t.Fatalf("taker side not derived from isBuyerMaker: %+v", trades)
	}
}

func TestTicker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ETHUSDT","priceChange":"10","priceChangePercent":"2.5","weightedAvgPrice":"400",
			"lastPrice":"410","lastQty":"1","openPrice":"400","highPrice":"420","lowPrice":"390",
			"volume":"1000","quoteVolume":"410000","openTime":1699913600000,"closeTime":1700000000000,
			"firstId":1,"lastId":2,"count":2}`))
	})
	c := newTestClient(t, mux)

	tk, err := c.Ticker(context.Background(), "eth_usdt")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if tk.Last != 410 || tk.Change24h != 2.5 || tk.QuoteVolume != 410000 {
		t.Fatalf("unexpected ticker %+v", tk)
	}
}

func TestThrottledRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/depth", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests; current limit is 2400 requests per minute."}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Depth(context.Background(), "btc_usdt", 20)
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestDepthLimit(t *testing.T) {
	cases := map[int]int{1: 5, 5: 5, 6: 10, 50: 50, 51: 100, 5000: 1000}
	for in, want := range cases {
		if got := depthLimit(in); got != want {
			t.Errorf("depthLimit(%d)=%d want %d", in, got, want)
		}
	}
}
