package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cryptosignal/internal/cache"
)

func TestRecordersAreSafeBeforeInit(t *testing.T) {
	// must not panic while collectors are nil
	if cacheLookups == nil {
		CacheLookup("detail", true)
		UpstreamCall("indodax", "ticker", nil)
		RateLimited("indodax", "governor")
		FetchShared("detail")
		StaleServed("detail")
		RecommendationIssued("BUY")
		ObserveAnalysis(time.Millisecond)
	}
}

func TestCountersAfterInit(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(cacheLookups.WithLabelValues("detail", "hit"))
	CacheLookup("detail", true)
	if got := testutil.ToFloat64(cacheLookups.WithLabelValues("detail", "hit")); got != before+1 {
		t.Fatalf("hit counter=%v want %v", got, before+1)
	}

	UpstreamCall("indodax", "depth", errors.New("boom"))
	if got := testutil.ToFloat64(upstreamCalls.WithLabelValues("indodax", "depth", "error")); got < 1 {
		t.Fatalf("upstream error not counted")
	}

	RateLimited("indodax", "upstream")
	if got := testutil.ToFloat64(rateLimited.WithLabelValues("indodax", "upstream")); got < 1 {
		t.Fatalf("rate limit not counted")
	}
}

func TestHandlerExposesCacheGauges(t *testing.T) {
	Init()
	c := cache.New("metrics_test_cache", 2)
	c.Set("a", 1, time.Minute)
	RegisterCache(c)
	RegisterGovernor("metrics_test_budget", func() int { return 7 })

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `cryptosignal_cache_entries{cache="metrics_test_cache"} 1`) {
		t.Errorf("cache gauge missing from scrape output")
	}
	if !strings.Contains(body, `cryptosignal_governor_available_tokens{budget="metrics_test_budget"} 7`) {
		t.Errorf("governor gauge missing from scrape output")
	}
}
