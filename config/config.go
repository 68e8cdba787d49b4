package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
	Governor    GovernorConfig    `yaml:"governor"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Source      SourceConfig      `yaml:"source"`
	Sentiment   SentimentConfig   `yaml:"sentiment"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// CacheEntryConfig sizes one logical cache.
type CacheEntryConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

type CacheConfig struct {
	Summary   CacheEntryConfig `yaml:"summary"`
	Detail    CacheEntryConfig `yaml:"detail"`
	Sentiment CacheEntryConfig `yaml:"sentiment"`
}

// GovernorConfig is the outbound request budget shared by every fetch that
// reaches the same upstream.
type GovernorConfig struct {
	Capacity       int           `yaml:"capacity"`
	RefillWindow   time.Duration `yaml:"refill_window"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type CoordinatorConfig struct {
	StaleOnError    bool          `yaml:"stale_on_error"`
	StaleTTL        time.Duration `yaml:"stale_ttl"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type IndodaxConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type BinanceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	DepthLimit  int           `yaml:"depth_limit"`
	TradesLimit int           `yaml:"trades_limit"`
	QuoteAsset  string        `yaml:"quote_asset"`
}

type BybitConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Category    string        `yaml:"category"`
	DepthLimit  int           `yaml:"depth_limit"`
	TradesLimit int           `yaml:"trades_limit"`
	QuoteAsset  string        `yaml:"quote_asset"`
}

type SourceConfig struct {
	Exchange string        `yaml:"exchange"`
	Indodax  IndodaxConfig `yaml:"indodax"`
	Binance  BinanceConfig `yaml:"binance"`
	Bybit    BybitConfig   `yaml:"bybit"`
}

type SentimentConfig struct {
	Enabled        bool           `yaml:"enabled"`
	URL            string         `yaml:"url"`
	Timeout        time.Duration  `yaml:"timeout"`
	FearThreshold  int            `yaml:"fear_threshold"`
	GreedThreshold int            `yaml:"greed_threshold"`
	Governor       GovernorConfig `yaml:"governor"`
}

type ScoringConfig struct {
	Profile        string        `yaml:"profile"`
	BandPercent    float64       `yaml:"band_percent"`
	WallMultiplier float64       `yaml:"wall_multiplier"`
	FakeMultiplier float64       `yaml:"fake_multiplier"`
	StaleOrderAge  time.Duration `yaml:"stale_order_age"`
	RepostLimit    int           `yaml:"repost_limit"`
	DepthLevels    int           `yaml:"depth_levels"`
	TradeWindow    int           `yaml:"trade_window"`
	VolumeFloor    float64       `yaml:"volume_floor"`
	VolumeCeiling  float64       `yaml:"volume_ceiling"`
	TakerFeePct    float64       `yaml:"taker_fee_pct"`
	MaxSlippagePct float64       `yaml:"max_slippage_pct"`
}

type AnalysisConfig struct {
	Assets   []string      `yaml:"assets"`
	Interval time.Duration `yaml:"interval"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	Dashboard       string `yaml:"dashboard"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Address    string           `yaml:"address"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

// Default returns the configuration used for every key the file omits.
func Default() Config {
	return Config{
		App: AppConfig{Name: "cryptosignal", Version: "dev"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cache: CacheConfig{
			Summary:   CacheEntryConfig{Capacity: 10, TTL: 30 * time.Second},
			Detail:    CacheEntryConfig{Capacity: 500, TTL: 60 * time.Second},
			Sentiment: CacheEntryConfig{Capacity: 4, TTL: time.Hour},
		},
		Governor: GovernorConfig{
			Capacity:       10,
			RefillWindow:   time.Minute,
			AcquireTimeout: 10 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			StaleTTL:        30 * time.Minute,
			UpstreamTimeout: 15 * time.Second,
		},
		Source: SourceConfig{
			Exchange: "indodax",
			Indodax: IndodaxConfig{
				BaseURL:   "https://indodax.com",
				Timeout:   10 * time.Second,
				RateLimit: RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1},
			},
			Binance: BinanceConfig{
				Timeout:     10 * time.Second,
				DepthLimit:  100,
				TradesLimit: 200,
				QuoteAsset:  "USDT",
			},
			Bybit: BybitConfig{
				BaseURL:     "https://api.bybit.com",
				Timeout:     10 * time.Second,
				Category:    "linear",
				DepthLimit:  100,
				TradesLimit: 200,
				QuoteAsset:  "USDT",
			},
		},
		Sentiment: SentimentConfig{
			Enabled:        true,
			URL:            "https://api.alternative.me/fng/",
			Timeout:        10 * time.Second,
			FearThreshold:  25,
			GreedThreshold: 75,
			Governor: GovernorConfig{
				Capacity:       30,
				RefillWindow:   time.Minute,
				AcquireTimeout: 5 * time.Second,
			},
		},
		Scoring: ScoringConfig{
			Profile:        "full",
			BandPercent:    2,
			WallMultiplier: 5,
			FakeMultiplier: 10,
			StaleOrderAge:  5 * time.Minute,
			RepostLimit:    3,
			DepthLevels:    50,
			TradeWindow:    100,
			VolumeFloor:    1e6,
			VolumeCeiling:  1e11,
			TakerFeePct:    0.3,
			MaxSlippagePct: 0.5,
		},
		Analysis: AnalysisConfig{
			Interval: time.Minute,
		},
		Metrics: MetricsConfig{
			Address: ":2112",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("GOVERNOR_CAPACITY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GOVERNOR_CAPACITY: %w", err)
		}
		cfg.Governor.Capacity = n
	}
	if v := strings.TrimSpace(os.Getenv("SCORING_PROFILE")); v != "" {
		cfg.Scoring.Profile = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("SOURCE_EXCHANGE")); v != "" {
		cfg.Source.Exchange = strings.ToLower(v)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
	}
	return nil
}

var profiles = map[string]bool{"full": true, "sentiment_heavy": true, "basic": true}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.Cache.Summary.Capacity < 0 {
		return fmt.Errorf("cache.summary.capacity must not be negative")
	}
	if cfg.Cache.Detail.Capacity < 0 {
		return fmt.Errorf("cache.detail.capacity must not be negative")
	}
	if cfg.Cache.Summary.TTL <= 0 {
		return fmt.Errorf("cache.summary.ttl must be greater than 0")
	}
	if cfg.Cache.Detail.TTL <= 0 {
		return fmt.Errorf("cache.detail.ttl must be greater than 0")
	}
	if cfg.Cache.Sentiment.TTL <= 0 {
		return fmt.Errorf("cache.sentiment.ttl must be greater than 0")
	}

	if cfg.Governor.Capacity <= 0 {
		return fmt.Errorf("governor.capacity must be greater than 0")
	}
	if cfg.Governor.RefillWindow <= 0 {
		return fmt.Errorf("governor.refill_window must be greater than 0")
	}
	if cfg.Governor.AcquireTimeout < 0 {
		return fmt.Errorf("governor.acquire_timeout must not be negative")
	}

	switch cfg.Source.Exchange {
	case "indodax":
		if cfg.Source.Indodax.BaseURL == "" {
			return fmt.Errorf("source.indodax.base_url is required")
		}
	case "binance":
	case "bybit":
		switch cfg.Source.Bybit.Category {
		case "linear", "spot":
		default:
			return fmt.Errorf("source.bybit.category must be linear or spot")
		}
	default:
		return fmt.Errorf("source.exchange '%s' is not supported", cfg.Source.Exchange)
	}

	if cfg.Sentiment.Enabled {
		if cfg.Sentiment.URL == "" {
			return fmt.Errorf("sentiment.url is required when sentiment is enabled")
		}
		if cfg.Sentiment.Governor.Capacity <= 0 || cfg.Sentiment.Governor.RefillWindow <= 0 {
			return fmt.Errorf("sentiment.governor capacity and refill_window must be greater than 0")
		}
	}
	f, g := cfg.Sentiment.FearThreshold, cfg.Sentiment.GreedThreshold
	if f < 0 || g > 100 || f >= g {
		return fmt.Errorf("sentiment thresholds must satisfy 0 <= fear_threshold < greed_threshold <= 100")
	}

	if !profiles[cfg.Scoring.Profile] {
		return fmt.Errorf("scoring.profile '%s' is not one of full, sentiment_heavy, basic", cfg.Scoring.Profile)
	}
	if cfg.Scoring.BandPercent <= 0 {
		return fmt.Errorf("scoring.band_percent must be greater than 0")
	}
	if cfg.Scoring.WallMultiplier <= 1 || cfg.Scoring.FakeMultiplier <= 1 {
		return fmt.Errorf("scoring.wall_multiplier and scoring.fake_multiplier must be greater than 1")
	}
	if cfg.Scoring.TradeWindow < 2 {
		return fmt.Errorf("scoring.trade_window must be at least 2")
	}
	if cfg.Scoring.VolumeFloor <= 0 || cfg.Scoring.VolumeCeiling <= cfg.Scoring.VolumeFloor {
		return fmt.Errorf("scoring.volume_floor must be positive and below scoring.volume_ceiling")
	}
	if cfg.Scoring.TakerFeePct < 0 || cfg.Scoring.TakerFeePct >= 100 {
		return fmt.Errorf("scoring.taker_fee_pct must be in [0,100)")
	}
	if cfg.Scoring.MaxSlippagePct <= 0 {
		return fmt.Errorf("scoring.max_slippage_pct must be greater than 0")
	}

	if cfg.Analysis.Interval <= 0 {
		return fmt.Errorf("analysis.interval must be greater than 0")
	}
	if len(cfg.Analysis.Assets) == 0 && IsProductionLike(getAppEnvironment()) {
		return fmt.Errorf("analysis.assets is required in %s", getAppEnvironment())
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}
