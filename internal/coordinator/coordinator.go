// Package coordinator serves values from a cache and, on a miss, performs at
// most one rate-gated upstream fetch per key at a time.
package coordinator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"cryptosignal/internal/cache"
	"cryptosignal/internal/governor"
	"cryptosignal/internal/metrics"
	"cryptosignal/logger"
)

// Fetcher loads the current value for key from the upstream.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (interface{}, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key string) (interface{}, error)

func (f FetcherFunc) Fetch(ctx context.Context, key string) (interface{}, error) {
	return f(ctx, key)
}

// Origin tells where a Result came from.
type Origin string

const (
	OriginCache    Origin = "cache"
	OriginUpstream Origin = "upstream"
	OriginStale    Origin = "stale"
)

// Result is a value handed back by Fetch. Stale is set only when the
// stale-on-error policy served a last-known-good value.
type Result struct {
	Value  interface{}
	Origin Origin
	Stale  bool
	// Shared is true when the value came from another caller's fetch.
	Shared bool
}

// Options tune a Coordinator.
type Options struct {
	// StaleOnError serves the last successfully fetched value for a key,
	// flagged stale, when a fresh fetch fails.
	StaleOnError bool
	// StaleTTL bounds how long a last-known-good value is kept.
	StaleTTL time.Duration
	// UpstreamTimeout bounds a single fetcher call. Zero means no bound
	// beyond the caller's context.
	UpstreamTimeout time.Duration
}

// Coordinator is safe for concurrent use. Build one per logical cache and
// share the governor between coordinators that spend the same budget.
type Coordinator struct {
	cache    *cache.Cache
	stale    *cache.Cache
	governor *governor.Governor
	opts     Options
	group    singleflight.Group
	log      *logger.Log
}

// New wires a coordinator around c and g.
func New(c *cache.Cache, g *governor.Governor, opts Options) *Coordinator {
	co := &Coordinator{
		cache:    c,
		governor: g,
		opts:     opts,
		log:      logger.GetLogger(),
	}
	if opts.StaleOnError {
		ttl := opts.StaleTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		co.opts.StaleTTL = ttl
		co.stale = cache.New(c.Name()+"_stale", c.Capacity())
	}
	return co
}

// Name returns the name of the underlying cache.
func (c *Coordinator) Name() string { return c.cache.Name() }

// Fetch returns the cached value for key or fetches it with f. On a miss
// only one fetch per key runs at a time; concurrent callers wait for it and
// share its outcome. The fetching caller first waits up to rateTimeout for
// governor budget and fails with a RateLimitError if none is granted.
// Fetcher failures come back as UpstreamError and are never cached.
//
// If ctx ends while waiting, Fetch returns ctx.Err() but the fetch itself
// keeps running and still populates the cache.
func (c *Coordinator) Fetch(ctx context.Context, key string, ttl time.Duration, f Fetcher, rateTimeout time.Duration) (Result, error) {
	start := time.Now()
	entry := c.log.WithComponent("coordinator").WithFields(logger.Fields{"cache": c.cache.Name()})

	if v, ok := c.cache.Get(key); ok {
		metrics.CacheLookup(c.cache.Name(), true)
		logger.LogFetchEntry(entry, key, string(OriginCache), time.Since(start))
		return Result{Value: v, Origin: OriginCache}, nil
	}
	metrics.CacheLookup(c.cache.Name(), false)

	// The flight outlives any single waiter.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(flightCtx, key, ttl, f, rateTimeout)
	})

	select {
	case <-ctx.Done():
		entry.WithFields(logger.Fields{"key": key}).Debug("caller stopped waiting for in-flight fetch")
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		out := res.Val.(Result)
		if res.Shared {
			out.Shared = true
			metrics.FetchShared(c.cache.Name())
		}
		logger.LogFetchEntry(entry, key, string(out.Origin), time.Since(start))
		return out, nil
	}
}

// Invalidate drops the cached value for key.
func (c *Coordinator) Invalidate(key string) bool {
	return c.cache.Invalidate(key)
}

func (c *Coordinator) load(ctx context.Context, key string, ttl time.Duration, f Fetcher, rateTimeout time.Duration) (interface{}, error) {
	log := c.log.WithComponent("coordinator").WithFields(logger.Fields{
		"cache": c.cache.Name(),
		"key":   key,
	})

	// A flight that finished just before this one started may already have
	// filled the cache.
	if v, ok := c.cache.Get(key); ok {
		return Result{Value: v, Origin: OriginCache}, nil
	}

	if !c.governor.Acquire(ctx, rateTimeout) {
		metrics.RateLimited(c.governor.Name(), "governor")
		log.WithFields(logger.Fields{"timeout": rateTimeout.String()}).Warn("no request budget available")
		return c.fallback(key, &RateLimitError{Key: key})
	}

	fetchCtx := ctx
	if c.opts.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.opts.UpstreamTimeout)
		defer cancel()
	}

	v, err := f.Fetch(fetchCtx, key)
	if err != nil {
		if isThrottled(err) {
			metrics.RateLimited(c.governor.Name(), "upstream")
			log.WithError(err).Warn("upstream rejected the request as rate limited")
			return c.fallback(key, &RateLimitError{Key: key, Upstream: true, Err: err})
		}
		log.WithError(err).Error("upstream fetch failed")
		return c.fallback(key, &UpstreamError{Key: key, Err: err})
	}
	if v == nil {
		log.Error("upstream returned no data")
		return c.fallback(key, &UpstreamError{Key: key, Err: errors.New("empty payload")})
	}

	c.cache.Set(key, v, ttl)
	if c.stale != nil {
		c.stale.Set(key, v, c.opts.StaleTTL)
	}
	return Result{Value: v, Origin: OriginUpstream}, nil
}

// fallback applies the stale-on-error policy to a failed fetch.
func (c *Coordinator) fallback(key string, cause error) (interface{}, error) {
	if c.stale == nil {
		return nil, cause
	}
	v, ok := c.stale.Get(key)
	if !ok {
		return nil, cause
	}
	metrics.StaleServed(c.cache.Name())
	c.log.WithComponent("coordinator").WithError(cause).WithFields(logger.Fields{
		"cache": c.cache.Name(),
		"key":   key,
	}).Warn("serving last known good value")
	return Result{Value: v, Origin: OriginStale, Stale: true}, nil
}
