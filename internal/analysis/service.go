// Package analysis is the entry point used by outer layers: a market
// summary, the per-pair detail snapshot and the scored recommendation, all
// read through rate-governed, single-flight caches.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cryptosignal/config"
	"cryptosignal/internal/cache"
	"cryptosignal/internal/coordinator"
	"cryptosignal/internal/exchange"
	"cryptosignal/internal/governor"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/scoring"
	"cryptosignal/internal/sentiment"
	"cryptosignal/internal/symbols"
	"cryptosignal/logger"
	"cryptosignal/models"
)

// ErrUnknownAsset is returned for asset keys that do not name a pair.
var ErrUnknownAsset = errors.New("unknown asset")

const (
	baselineAlpha = 0.2
	levelHorizon  = 30 * time.Minute
)

// Service is safe for concurrent use. Build one per process.
type Service struct {
	source   exchange.Source
	mood     sentiment.Source
	engine   *scoring.Engine
	adjuster sentiment.Adjuster

	summary *coordinator.Coordinator
	detail  *coordinator.Coordinator
	fng     *coordinator.Coordinator

	caches    []*cache.Cache
	governors []*governor.Governor

	summaryTTL     time.Duration
	detailTTL      time.Duration
	sentimentTTL   time.Duration
	acquireTimeout time.Duration
	moodTimeout    time.Duration
	sentimentOn    bool
	defaultQuote   string

	tracker   *bookTracker
	baselines *baselines
	log       *logger.Log
	now       func() time.Time
}

// New wires the caches, governors and coordinators described by cfg around
// the given upstreams. mood may be nil when sentiment is disabled.
func New(cfg *config.Config, source exchange.Source, mood sentiment.Source) (*Service, error) {
	profile, err := scoring.ProfileByName(cfg.Scoring.Profile)
	if err != nil {
		return nil, err
	}
	engine, err := scoring.New(profile, ScoringParams(cfg.Scoring))
	if err != nil {
		return nil, err
	}

	exchangeBudget := governor.New(source.Name(), cfg.Governor.Capacity, cfg.Governor.RefillWindow)
	opts := coordinator.Options{
		StaleOnError:    cfg.Coordinator.StaleOnError,
		StaleTTL:        cfg.Coordinator.StaleTTL,
		UpstreamTimeout: cfg.Coordinator.UpstreamTimeout,
	}
	summaryCache := cache.New("summary", cfg.Cache.Summary.Capacity)
	detailCache := cache.New("detail", cfg.Cache.Detail.Capacity)

	s := &Service{
		source:         source,
		mood:           mood,
		engine:         engine,
		adjuster:       sentiment.NewAdjuster(cfg.Sentiment.FearThreshold, cfg.Sentiment.GreedThreshold),
		summary:        coordinator.New(summaryCache, exchangeBudget, opts),
		detail:         coordinator.New(detailCache, exchangeBudget, opts),
		caches:         []*cache.Cache{summaryCache, detailCache},
		governors:      []*governor.Governor{exchangeBudget},
		summaryTTL:     cfg.Cache.Summary.TTL,
		detailTTL:      cfg.Cache.Detail.TTL,
		sentimentTTL:   cfg.Cache.Sentiment.TTL,
		acquireTimeout: cfg.Governor.AcquireTimeout,
		moodTimeout:    cfg.Sentiment.Governor.AcquireTimeout,
		sentimentOn:    cfg.Sentiment.Enabled && mood != nil,
		defaultQuote:   "idr",
		tracker:        newBookTracker(levelHorizon),
		baselines:      newBaselines(baselineAlpha),
		log:            logger.GetLogger(),
		now:            time.Now,
	}
	switch source.Name() {
	case "binance":
		s.defaultQuote = cfg.Source.Binance.QuoteAsset
	case "bybit":
		s.defaultQuote = cfg.Source.Bybit.QuoteAsset
	}
	if s.sentimentOn {
		// The index lives on another host and spends its own budget.
		moodBudget := governor.New("sentiment", cfg.Sentiment.Governor.Capacity, cfg.Sentiment.Governor.RefillWindow)
		moodCache := cache.New("sentiment", cfg.Cache.Sentiment.Capacity)
		s.fng = coordinator.New(moodCache, moodBudget, opts)
		s.caches = append(s.caches, moodCache)
		s.governors = append(s.governors, moodBudget)
	}
	return s, nil
}

// ScoringParams maps the scoring configuration onto engine parameters.
func ScoringParams(c config.ScoringConfig) scoring.Params {
	return scoring.Params{
		TradeWindow:    c.TradeWindow,
		DepthLevels:    c.DepthLevels,
		BandPercent:    c.BandPercent,
		WallMultiplier: c.WallMultiplier,
		FakeMultiplier: c.FakeMultiplier,
		StaleOrderAge:  c.StaleOrderAge,
		RepostLimit:    c.RepostLimit,
		VolumeFloor:    c.VolumeFloor,
		VolumeCeiling:  c.VolumeCeiling,
		TakerFeePct:    c.TakerFeePct,
		MaxSlippagePct: c.MaxSlippagePct,
	}
}

// Caches returns every cache the service owns, for metrics and reports.
func (s *Service) Caches() []*cache.Cache { return s.caches }

// Governors returns every request budget the service owns.
func (s *Service) Governors() []*governor.Governor { return s.governors }

// Pair normalises an asset key to a pair id.
func (s *Service) Pair(asset string) (string, error) {
	pair, ok := symbols.Normalize(asset, s.defaultQuote)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
	return pair, nil
}

// GetSummary returns the market-wide overview.
func (s *Service) GetSummary(ctx context.Context) (models.Summary, error) {
	key := "summary:" + s.source.Name()
	res, err := s.summary.Fetch(ctx, key, s.summaryTTL, coordinator.FetcherFunc(func(ctx context.Context, _ string) (interface{}, error) {
		sum, err := s.source.Summaries(ctx)
		if err != nil {
			return nil, err
		}
		return sum, nil
	}), s.acquireTimeout)
	if err != nil {
		return models.Summary{}, err
	}
	sum := res.Value.(models.Summary)
	sum.Stale = res.Stale
	return sum, nil
}

// GetDetail returns the current snapshot of one pair. Ticker, depth and
// trades are cached under their own keys and fetched concurrently, each
// spending one unit of the shared budget on a miss.
func (s *Service) GetDetail(ctx context.Context, asset string) (models.MarketSnapshot, error) {
	pair, err := s.Pair(asset)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	params := s.engine.Params()

	var (
		ticker models.Ticker
		book   models.OrderBook
		trades []models.Trade
		stale  [3]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.detail.Fetch(gctx, "ticker:"+pair, s.detailTTL, coordinator.FetcherFunc(func(ctx context.Context, _ string) (interface{}, error) {
			t, err := s.source.Ticker(ctx, pair)
			if err != nil {
				return nil, err
			}
			return t, nil
		}), s.acquireTimeout)
		if err != nil {
			return err
		}
		ticker, stale[0] = res.Value.(models.Ticker), res.Stale
		return nil
	})
	g.Go(func() error {
		res, err := s.detail.Fetch(gctx, "depth:"+pair, s.detailTTL, coordinator.FetcherFunc(func(ctx context.Context, _ string) (interface{}, error) {
			b, err := s.source.Depth(ctx, pair, params.DepthLevels)
			if err != nil {
				return nil, err
			}
			return b, nil
		}), s.acquireTimeout)
		if err != nil {
			return err
		}
		book, stale[1] = res.Value.(models.OrderBook), res.Stale
		return nil
	})
	g.Go(func() error {
		res, err := s.detail.Fetch(gctx, "trades:"+pair, s.detailTTL, coordinator.FetcherFunc(func(ctx context.Context, _ string) (interface{}, error) {
			tr, err := s.source.Trades(ctx, pair, params.TradeWindow)
			if err != nil {
				return nil, err
			}
			return tr, nil
		}), s.acquireTimeout)
		if err != nil {
			return err
		}
		trades, stale[2] = res.Value.([]models.Trade), res.Stale
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.MarketSnapshot{}, err
	}

	now := s.now().UTC()
	snap := models.MarketSnapshot{
		Pair:      pair,
		Ticker:    ticker,
		Book:      s.tracker.observe(pair, book, now),
		Trades:    append([]models.Trade(nil), trades...),
		FetchedAt: now,
		Stale:     stale[0] || stale[1] || stale[2],
	}
	return snap, nil
}

// GetRecommendation scores the current snapshot of one pair and applies the
// market-wide sentiment reading when enabled.
func (s *Service) GetRecommendation(ctx context.Context, asset string) (models.Recommendation, error) {
	start := time.Now()
	reqID := uuid.NewString()
	log := s.log.WithComponent("analysis").WithRequest(reqID).WithFields(logger.Fields{"asset": asset})

	snap, err := s.GetDetail(ctx, asset)
	if err != nil {
		log.WithError(err).Warn(Describe(err))
		return models.Recommendation{}, err
	}
	log = log.WithPair(snap.Pair)

	baseline := s.baselines.get(snap.Pair)
	rec := s.engine.Score(scoring.Input{Snapshot: snap, LiquidityBaseline: baseline})
	rec.Stale = snap.Stale
	s.baselines.update(snap.Pair, scoring.LiquidityScore(snap.Ticker, snap.Book, s.engine.Params()))

	if s.sentimentOn {
		reading, err := s.marketMood(ctx)
		if err != nil {
			return models.Recommendation{}, err
		}
		rec = s.adjuster.Adjust(rec, reading)
	}

	elapsed := time.Since(start)
	metrics.RecommendationIssued(string(rec.Action))
	metrics.ObserveAnalysis(elapsed)
	logger.LogPerformanceEntry(log, "analysis", "recommendation", elapsed, logger.Fields{
		"action":     rec.Action,
		"score":      rec.TotalScore,
		"risk":       rec.Risk,
		"confidence": rec.Confidence,
	})
	return rec, nil
}

// marketMood returns the fear and greed reading, or the neutral fallback
// when the source fails. Only the caller's own cancellation is an error.
func (s *Service) marketMood(ctx context.Context) (models.FearGreed, error) {
	res, err := s.fng.Fetch(ctx, "fear_greed", s.sentimentTTL, coordinator.FetcherFunc(func(ctx context.Context, _ string) (interface{}, error) {
		fg, err := s.mood.CurrentIndex(ctx)
		if err != nil {
			return nil, err
		}
		return fg, nil
	}), s.moodTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return models.FearGreed{}, ctx.Err()
		}
		s.log.WithComponent("analysis").WithError(err).Warn("fear and greed index unavailable, assuming neutral")
		return sentiment.Neutral(s.now()), nil
	}
	return res.Value.(models.FearGreed), nil
}

// Describe turns an error from this package into the text shown to users.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownAsset):
		return "unknown asset"
	case errors.Is(err, coordinator.ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return "try again shortly"
	default:
		return "data temporarily unavailable"
	}
}
