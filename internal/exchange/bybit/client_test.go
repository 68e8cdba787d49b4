package bybit

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
	return New(config.BybitConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, Category: "linear", QuoteAsset: "USDT"})
}

func envelope(result string) []byte {
	return []byte(`{"retCode":0,"retMsg":"OK","result":` + result + `,"retExtInfo":{},"time":1700000000000}`)
}

func TestDepthAndTrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("category") != "linear" {
			t.Errorf("query=%s", r.URL.RawQuery)
		}
		w.Write(envelope(`{"s":"BTCUSDT","b":[["100.0","2"],["99.5","1"],["99","4"]],"a":[["100.5","3"]],"ts":1700000000000,"u":1}`))
	})
	mux.HandleFunc("/v5/market/recent-trade", func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(`{"category":"linear","list":[
			{"execId":"a","symbol":"BTCUSDT","price":"100","size":"1","side":"Sell","time":"1700000000000","isBlockTrade":false},
			{"execId":"b","symbol":"BTCUSDT","price":"101","size":"2","side":"Buy","time":"1700000001000","isBlockTrade":false}
		]}`))
	})
	c := newTestClient(t, mux)

	book, err := c.Depth(context.Background(), "btc_idr", 2)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(book.Bids) != 2 || book.Bids[0].Price != 100 || book.Asks[0].Amount != 3 {
		t.Fatalf("unexpected book %+v", book)
	}
	if book.Bids[0].Side != models.SideBuy || book.Asks[0].Side != models.SideSell {
		t.Fatalf("sides not set: %+v", book)
	}

	trades, err := c.Trades(context.Background(), "btc_usdt", 10)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 2 || trades[0].ID != "b" {
		t.Fatalf("trades not newest first: %+v", trades)
	}
	if trades[0].Side != models.SideBuy || trades[1].Side != models.SideSell {
		t.Fatalf("taker side not taken from side: %+v", trades)
	}
	if !trades[1].Time.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("trade time=%v", trades[1].Time)
	}
}

const tickersResult = `{"category":"linear","list":[
	{"symbol":"ETHUSDT","lastPrice":"410","highPrice24h":"420","lowPrice24h":"390","volume24h":"1000",
	 "turnover24h":"410000","price24hPcnt":"0.025","bid1Price":"409.9","ask1Price":"410.1"},
	{"symbol":"SHIB1000USDT","lastPrice":"0.012","highPrice24h":"0.013","lowPrice24h":"0.011","volume24h":"5000000",
	 "turnover24h":"60000000","price24hPcnt":"-0.01","bid1Price":"0.0119","ask1Price":"0.0121"},
	{"symbol":"BTCPERP","lastPrice":"1","highPrice24h":"1","lowPrice24h":"1","volume24h":"1",
	 "turnover24h":"1","price24hPcnt":"0","bid1Price":"1","ask1Price":"1"}
]}`

func TestTickerAndSummaries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		if sym := r.URL.Query().Get("symbol"); sym != "" && sym != "ETHUSDT" {
			t.Errorf("symbol=%s want ETHUSDT", sym)
		}
		w.Write(envelope(tickersResult))
	})
	c := newTestClient(t, mux)

	tk, err := c.Ticker(context.Background(), "eth_usdt")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if tk.Last != 410 || tk.Change24h != 2.5 || tk.QuoteVolume != 410000 || tk.Buy != 409.9 {
		t.Fatalf("unexpected ticker %+v", tk)
	}

	sum, err := c.Summaries(context.Background())
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(sum.Pairs) != 2 {
		t.Fatalf("expected USDT pairs only, got %+v", sum.Pairs)
	}
	if sum.Pairs[0].Pair != "shib_usdt" || sum.Pairs[1].Pair != "eth_usdt" {
		t.Fatalf("pairs not sorted by quote volume: %+v", sum.Pairs)
	}
}

func TestThrottledRetCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10006,"retMsg":"Too many visits!","result":{},"retExtInfo":{},"time":1700000000000}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Depth(context.Background(), "btc_usdt", 20)
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestThrottledStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/recent-trade", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := newTestClient(t, mux)

	_, err := c.Trades(context.Background(), "btc_usdt", 20)
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestRejectedRequestIsNotThrottled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error: symbol invalid","result":{},"retExtInfo":{},"time":1700000000000}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Ticker(context.Background(), "nope_usdt")
	var se *exchange.StatusError
	if !errors.As(err, &se) || se.RateLimited() {
		t.Fatalf("err=%v want a non throttled StatusError", err)
	}
}

func TestForbiddenStatusIsIPLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/market/orderbook", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bapi-Limit", "120")
		w.Header().Set("X-Bapi-Limit-Status", "0")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("access too frequent"))
	})
	c := newTestClient(t, mux)

	_, err := c.Depth(context.Background(), "btc_usdt", 20)
	var se *exchange.StatusError
	if !errors.As(err, &se) || !se.RateLimited() || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err=%v want a throttled StatusError", err)
	}
}

func TestUsedWeight(t *testing.T) {
	if got := usedWeight("120", "100"); got != 20 {
		t.Fatalf("usedWeight=%d want 20", got)
	}
	if got := usedWeight("", "5"); got != 0 {
		t.Fatalf("usedWeight=%d want 0", got)
	}
}

func TestClampDepth(t *testing.T) {
	linear := &Client{category: "linear"}
	spot := &Client{category: "spot"}
	if linear.clampDepth(1000) != 500 || spot.clampDepth(1000) != 200 || linear.clampDepth(50) != 50 {
		t.Fatalf("unexpected depth clamp")
	}
}
