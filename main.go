package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cryptosignal/config"
	"cryptosignal/internal/analysis"
	"cryptosignal/internal/exchange"
	"cryptosignal/internal/exchange/binance"
	"cryptosignal/internal/exchange/bybit"
	"cryptosignal/internal/exchange/indodax"
	"cryptosignal/internal/metrics"
	"cryptosignal/internal/sentiment"
	"cryptosignal/logger"
)

// maxConcurrentAssets bounds how many assets one analysis round scores at
// the same time. The governor still decides how many upstream calls run.
const maxConcurrentAssets = 8

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	assetsFlag := flag.String("assets", "", "Comma separated assets overriding analysis.assets")
	once := flag.Bool("once", false, "Run a single analysis round and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *assetsFlag != "" {
		cfg.Analysis.Assets = strings.Split(*assetsFlag, ",")
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"env":     config.AppEnvironment(),
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"source":  cfg.Source.Exchange,
		"profile": cfg.Scoring.Profile,
	}).Info("starting cryptosignal")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, logger.CloudWatchOptions{
			Region:          cfg.Metrics.CloudWatch.Region,
			Namespace:       cfg.Metrics.CloudWatch.Namespace,
			Dashboard:       cfg.Metrics.CloudWatch.Dashboard,
			AccessKeyID:     cfg.Metrics.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.Metrics.CloudWatch.SecretAccessKey,
		})
	}

	source, err := newSource(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to create market data source")
		os.Exit(1)
	}

	var mood sentiment.Source
	if cfg.Sentiment.Enabled {
		mood = sentiment.NewClient(cfg.Sentiment.URL, cfg.Sentiment.Timeout)
	}

	svc, err := analysis.New(cfg, source, mood)
	if err != nil {
		log.WithError(err).Error("failed to create analysis service")
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		for _, c := range svc.Caches() {
			metrics.RegisterCache(c)
		}
		for _, g := range svc.Governors() {
			metrics.RegisterGovernor(g.Name(), g.Available)
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	for _, c := range svc.Caches() {
		logger.RegisterReportSource("cache_"+c.Name(), func() map[string]float64 {
			st := c.Stats()
			return map[string]float64{
				"cache_entries":     float64(c.Len()),
				"cache_hits":        float64(st.Hits),
				"cache_misses":      float64(st.Misses),
				"cache_evictions":   float64(st.Evictions),
				"cache_expirations": float64(st.Expirations),
			}
		})
	}
	for _, g := range svc.Governors() {
		logger.RegisterReportSource("governor_"+g.Name(), func() map[string]float64 {
			admitted, timeouts := g.Stats()
			return map[string]float64{
				"governor_available": float64(g.Available()),
				"governor_admitted":  float64(admitted),
				"governor_timeouts":  float64(timeouts),
			}
		})
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	runRound(ctx, svc, cfg.Analysis.Assets)
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.Analysis.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			log.Info("cryptosignal stopped")
			return
		case <-ticker.C:
			runRound(ctx, svc, cfg.Analysis.Assets)
		}
	}
}

// newSource builds the configured exchange client.
func newSource(ctx context.Context, cfg *config.Config) (exchange.Source, error) {
	log := logger.GetLogger().WithComponent("main")
	switch cfg.Source.Exchange {
	case "indodax":
		return indodax.New(cfg.Source.Indodax), nil
	case "binance":
		client := binance.New(cfg.Source.Binance)
		limit, err := client.RequestWeightLimit(ctx)
		if err != nil {
			log.WithError(err).Warn("could not read binance request weight limit")
			return client, nil
		}
		perWindow := float64(limit) * cfg.Governor.RefillWindow.Minutes()
		entry := log.WithFields(logger.Fields{
			"weight_limit_per_minute": limit,
			"governor_capacity":       cfg.Governor.Capacity,
			"refill_window":           cfg.Governor.RefillWindow.String(),
		})
		if float64(cfg.Governor.Capacity) > perWindow {
			entry.Warn("governor budget exceeds the exchange request weight limit")
		} else {
			entry.Info("governor budget within the exchange request weight limit")
		}
		return client, nil
	case "bybit":
		return bybit.New(cfg.Source.Bybit), nil
	default:
		return nil, errors.New("unsupported source.exchange " + cfg.Source.Exchange)
	}
}

// runRound scores every asset once and logs each recommendation.
func runRound(ctx context.Context, svc *analysis.Service, assets []string) {
	log := logger.GetLogger().WithComponent("main")
	start := time.Now()

	if sum, err := svc.GetSummary(ctx); err != nil {
		log.WithError(err).Warn("market summary: " + analysis.Describe(err))
	} else {
		log.WithFields(logger.Fields{"pairs": len(sum.Pairs), "stale": sum.Stale}).Info("market summary refreshed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAssets)
	for _, asset := range assets {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			continue
		}
		g.Go(func() error {
			rec, err := svc.GetRecommendation(gctx, asset)
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{"asset": asset}).Warn(analysis.Describe(err))
				return nil
			}
			body, err := json.Marshal(rec)
			if err != nil {
				log.WithError(err).Error("failed to encode recommendation")
				return nil
			}
			log.WithFields(logger.Fields{
				"pair":           rec.Pair,
				"action":         rec.Action,
				"recommendation": json.RawMessage(body),
			}).Info("recommendation")
			return nil
		})
	}
	_ = g.Wait()

	logger.LogPerformanceEntry(log, "main", "analysis_round", time.Since(start), logger.Fields{"assets": len(assets)})
}
