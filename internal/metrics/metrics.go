// Package metrics registers the Prometheus collectors:
//
//	#cryptosignal_cache_lookups_total{cache,result}
//	#cryptosignal_upstream_calls_total{source,kind,result}
//	#cryptosignal_rate_limited_total{budget,origin}
//	#cryptosignal_fetch_shared_total{cache}
//	#cryptosignal_stale_served_total{cache}
//	#cryptosignal_recommendations_total{action}
//	#cryptosignal_analysis_duration_seconds
//	#go_* and process_* system metrics
//
// and exposes them through Handler / Serve.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptosignal/internal/cache"
	"cryptosignal/logger"
)

var (
	once             sync.Once
	cacheLookups     *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	fetchShared      *prometheus.CounterVec
	staleServed      *prometheus.CounterVec
	recommendations  *prometheus.CounterVec
	analysisDuration prometheus.Histogram
)

// Init registers every collector with the default registry. Calls after the
// first are no-ops. Until Init runs the recording helpers do nothing.
func Init() {
	once.Do(func() {
		cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_cache_lookups_total",
			Help: "Cache lookups by cache and result (hit or miss)",
		}, []string{"cache", "result"})

		upstreamCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_upstream_calls_total",
			Help: "Upstream calls by source, payload kind and result",
		}, []string{"source", "kind", "result"})

		rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_rate_limited_total",
			Help: "Fetches refused for lack of budget, locally (governor) or by the upstream",
		}, []string{"budget", "origin"})

		fetchShared = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_fetch_shared_total",
			Help: "Callers served by another caller's in-flight fetch",
		}, []string{"cache"})

		staleServed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_stale_served_total",
			Help: "Last-known-good values served after an upstream failure",
		}, []string{"cache"})

		recommendations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptosignal_recommendations_total",
			Help: "Recommendations issued by final action",
		}, []string{"action"})

		analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptosignal_analysis_duration_seconds",
			Help:    "Time to produce a recommendation, including fetches",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		})

		_ = prometheus.Register(cacheLookups)
		_ = prometheus.Register(upstreamCalls)
		_ = prometheus.Register(rateLimited)
		_ = prometheus.Register(fetchShared)
		_ = prometheus.Register(staleServed)
		_ = prometheus.Register(recommendations)
		_ = prometheus.Register(analysisDuration)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.GetLogger().WithComponent("metrics").WithFields(logger.Fields{"address": addr}).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RegisterCache exposes size and eviction counters of c.
func RegisterCache(c *cache.Cache) {
	labels := prometheus.Labels{"cache": c.Name()}
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "cryptosignal_cache_entries",
		Help:        "Entries currently stored, expired or not",
		ConstLabels: labels,
	}, func() float64 { return float64(c.Len()) }))
	_ = prometheus.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        "cryptosignal_cache_evictions_total",
		Help:        "Live entries evicted to make room",
		ConstLabels: labels,
	}, func() float64 { return float64(c.Stats().Evictions) }))
	_ = prometheus.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        "cryptosignal_cache_expirations_total",
		Help:        "Expired entries purged",
		ConstLabels: labels,
	}, func() float64 { return float64(c.Stats().Expirations) }))
}

// RegisterGovernor exposes the tokens currently available in a budget.
func RegisterGovernor(name string, available func() int) {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "cryptosignal_governor_available_tokens",
		Help:        "Tokens available in the request budget",
		ConstLabels: prometheus.Labels{"budget": name},
	}, func() float64 { return float64(available()) }))
}

// CacheLookup counts a hit or miss on the named cache.
func CacheLookup(cacheName string, hit bool) {
	if cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cacheName, result).Inc()
}

// UpstreamCall counts one call to the upstream and its outcome.
func UpstreamCall(source, kind string, err error) {
	if upstreamCalls == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	upstreamCalls.WithLabelValues(source, kind, result).Inc()
}

// RateLimited counts a fetch refused locally ("governor") or by the
// upstream ("upstream").
func RateLimited(budget, origin string) {
	if rateLimited != nil {
		rateLimited.WithLabelValues(budget, origin).Inc()
	}
}

// FetchShared counts a caller that reused another caller's fetch.
func FetchShared(cacheName string) {
	if fetchShared != nil {
		fetchShared.WithLabelValues(cacheName).Inc()
	}
}

// StaleServed counts a stale fallback.
func StaleServed(cacheName string) {
	if staleServed != nil {
		staleServed.WithLabelValues(cacheName).Inc()
	}
}

// RecommendationIssued counts a recommendation by action.
func RecommendationIssued(action string) {
	if recommendations != nil {
		recommendations.WithLabelValues(action).Inc()
	}
}

// ObserveAnalysis records how long one analysis took.
func ObserveAnalysis(d time.Duration) {
	if analysisDuration != nil {
		analysisDuration.Observe(d.Seconds())
	}
}
