package sentiment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosignal/internal/exchange"
	"cryptosignal/internal/scoring"
	"cryptosignal/models"
)

func recommendation(action models.Action) models.Recommendation {
	return models.Recommendation{
		Pair:       "btc_idr",
		TotalScore: 64,
		Action:     action,
		BaseAction: action,
		Targets:    scoring.TargetsFor(action, 100),
	}
}

func TestAdjustFearUpgradesHold(t *testing.T) {
	a := NewAdjuster(25, 75)
	once := a.Adjust(recommendation(models.ActionHold), models.FearGreed{Value: 10})
	if once.Action != models.ActionBuy {
		t.Fatalf("action=%s want BUY", once.Action)
	}
	if once.BaseAction != models.ActionHold {
		t.Fatalf("base action=%s want HOLD", once.BaseAction)
	}
	if once.Targets.StopLoss != 97 {
		t.Fatalf("targets not moved to the buy side: %+v", once.Targets)
	}

	twice := a.Adjust(once, models.FearGreed{Value: 10})
	if twice.Action != models.ActionBuy {
		t.Fatalf("second adjustment compounded to %s", twice.Action)
	}
}

func TestAdjustEndToEnd(t *testing.T) {
	p, _ := scoring.ProfileByName("full")
	subs := []models.SubScore{
		{Name: scoring.Technical, Value: 70},
		{Name: scoring.Bandarmology, Value: 80},
		{Name: scoring.Sentiment, Value: 50},
		{Name: scoring.Whale, Value: 60},
		{Name: scoring.Liquidity, Value: 50},
	}
	total := scoring.Combine(p, subs)
	rec := recommendation(scoring.Decide(total, 0))
	if rec.Action != models.ActionBuy {
		t.Fatalf("pre-adjustment action=%s want BUY", rec.Action)
	}
	adj := NewAdjuster(25, 75).Adjust(rec, models.FearGreed{Value: 15})
	if adj.Action != models.ActionStrongBuy {
		t.Fatalf("action=%s want STRONG_BUY", adj.Action)
	}
	if adj.Sentiment == nil || adj.Sentiment.Value != 15 {
		t.Fatalf("reading not attached: %+v", adj.Sentiment)
	}
}

func TestAdjustTable(t *testing.T) {
	a := NewAdjuster(25, 75)
	tests := []struct {
		action models.Action
		index  int
		want   models.Action
	}{
		{models.ActionHold, 24, models.ActionBuy},
		{models.ActionHold, 25, models.ActionHold},
		{models.ActionBuy, 0, models.ActionStrongBuy},
		{models.ActionStrongBuy, 5, models.ActionStrongBuy},
		{models.ActionSell, 10, models.ActionSell},
		{models.ActionHold, 76, models.ActionSell},
		{models.ActionHold, 75, models.ActionHold},
		{models.ActionSell, 90, models.ActionStrongSell},
		{models.ActionBuy, 90, models.ActionBuy},
		{models.ActionAvoid, 5, models.ActionAvoid},
		{models.ActionAvoid, 95, models.ActionAvoid},
	}
	for _, tt := range tests {
		got := a.Adjust(recommendation(tt.action), models.FearGreed{Value: tt.index}).Action
		if got != tt.want {
			t.Errorf("%s at %d: got %s want %s", tt.action, tt.index, got, tt.want)
		}
	}
}

func TestAdjustRevertsWithNewReading(t *testing.T) {
	a := NewAdjuster(25, 75)
	fear := a.Adjust(recommendation(models.ActionHold), models.FearGreed{Value: 10})
	calm := a.Adjust(fear, models.FearGreed{Value: 50})
	if calm.Action != models.ActionHold {
		t.Fatalf("action=%s want HOLD", calm.Action)
	}
}

func TestClassify(t *testing.T) {
	cases := map[int]string{0: "Extreme Fear", 25: "Extreme Fear", 26: "Fear", 45: "Fear", 50: "Neutral", 56: "Greed", 75: "Greed", 76: "Extreme Greed", 100: "Extreme Greed"}
	for v, want := range cases {
		if got := Classify(v); got != want {
			t.Errorf("Classify(%d)=%s want %s", v, got, want)
		}
	}
}

func TestClientCurrentIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Fear and Greed Index","data":[{"value":"23","value_classification":"Extreme Fear","timestamp":"1700000000","time_until_update":"3600"}],"metadata":{"error":null}}`))
	}))
	defer srv.Close()

	fg, err := NewClient(srv.URL, time.Second).CurrentIndex(context.Background())
	if err != nil {
		t.Fatalf("CurrentIndex: %v", err)
	}
	if fg.Value != 23 || fg.Classification != "Extreme Fear" || fg.Fallback {
		t.Fatalf("unexpected reading %+v", fg)
	}
	if !fg.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("timestamp=%v", fg.Timestamp)
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/empty":
			w.Write([]byte(`{"data":[]}`))
		default:
			w.Write([]byte(`{"data":[{"value":"abc"}]}`))
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/limited", time.Second).CurrentIndex(context.Background())
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
	if _, err := NewClient(srv.URL+"/empty", time.Second).CurrentIndex(context.Background()); err == nil {
		t.Fatalf("empty data accepted")
	}
	if _, err := NewClient(srv.URL+"/bad", time.Second).CurrentIndex(context.Background()); err == nil {
		t.Fatalf("non-numeric value accepted")
	}
}

func TestNeutral(t *testing.T) {
	fg := Neutral(time.Now())
	if fg.Value != 50 || !fg.Fallback || fg.Classification != "Neutral" {
		t.Fatalf("unexpected fallback %+v", fg)
	}
}
