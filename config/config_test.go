package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes content to a temporary config file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `app:
  name: "TestApp"
  version: "1.0"
cache:
  detail:
    capacity: 100
    ttl: 45s
governor:
  capacity: 12
  refill_window: 1m
  acquire_timeout: 3s
scoring:
  profile: basic
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.App.Name)
	}
	if cfg.Cache.Detail.Capacity != 100 || cfg.Cache.Detail.TTL != 45*time.Second {
		t.Errorf("unexpected detail cache: %+v", cfg.Cache.Detail)
	}
	if cfg.Governor.Capacity != 12 || cfg.Governor.AcquireTimeout != 3*time.Second {
		t.Errorf("unexpected governor: %+v", cfg.Governor)
	}
	if cfg.Scoring.Profile != "basic" {
		t.Errorf("unexpected profile: %s", cfg.Scoring.Profile)
	}
	// omitted keys keep their defaults
	if cfg.Cache.Summary.Capacity != 10 || cfg.Sentiment.FearThreshold != 25 || cfg.Source.Exchange != "indodax" {
		t.Errorf("defaults not applied: %+v %+v", cfg.Cache.Summary, cfg.Sentiment)
	}
	if cfg.Source.Bybit.Category != "linear" || cfg.Scoring.TakerFeePct != 0.3 || cfg.Scoring.MaxSlippagePct != 0.5 {
		t.Errorf("defaults not applied: %+v %+v", cfg.Source.Bybit, cfg.Scoring)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GOVERNOR_CAPACITY", "20")
	t.Setenv("SCORING_PROFILE", "Sentiment_Heavy")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Governor.Capacity != 20 {
		t.Errorf("capacity=%d want 20", cfg.Governor.Capacity)
	}
	if cfg.Scoring.Profile != "sentiment_heavy" {
		t.Errorf("profile=%s want sentiment_heavy", cfg.Scoring.Profile)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"bad profile", "scoring:\n  profile: yolo\n", "scoring.profile"},
		{"zero detail ttl", "cache:\n  detail:\n    ttl: 0s\n", "cache.detail.ttl"},
		{"zero governor", "governor:\n  capacity: 0\n", "governor.capacity"},
		{"bad exchange", "source:\n  exchange: mtgox\n", "source.exchange"},
		{"inverted thresholds", "sentiment:\n  fear_threshold: 80\n  greed_threshold: 20\n", "sentiment thresholds"},
		{"tiny trade window", "scoring:\n  trade_window: 1\n", "scoring.trade_window"},
		{"zero interval", "analysis:\n  interval: 0s\n", "analysis.interval"},
		{"bybit inverse", "source:\n  exchange: bybit\n  bybit:\n    category: inverse\n", "source.bybit.category"},
		{"negative fee", "scoring:\n  taker_fee_pct: -0.1\n", "scoring.taker_fee_pct"},
		{"zero slippage", "scoring:\n  max_slippage_pct: 0\n", "scoring.max_slippage_pct"},
	}
	for _, tt := range tests {
		path := writeTempConfig(t, "app:\n  name: x\n"+tt.extra)
		_, err := LoadConfig(path)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yml")
	prod := filepath.Join(dir, "config.production.yml")
	if err := os.WriteFile(prod, []byte("app:\n  name: prod\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("APP_ENV", "prod")
	if got := ResolvePath(base); got != prod {
		t.Errorf("ResolvePath=%s want %s", got, prod)
	}
	t.Setenv("APP_ENV", "staging")
	if got := ResolvePath(base); got != base {
		t.Errorf("ResolvePath=%s want %s", got, base)
	}
}

func TestIsProductionLike(t *testing.T) {
	if !IsProductionLike(EnvironmentProduction) || !IsProductionLike(EnvironmentStaging) || IsProductionLike(EnvironmentDevelopment) {
		t.Fatalf("unexpected production classification")
	}
}

func TestProductionRequiresAssets(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	t.Setenv("APP_ENV", "production")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "analysis.assets") {
		t.Fatalf("err=%v want analysis.assets error", err)
	}
	t.Setenv("APP_ENV", "development")
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("development config rejected: %v", err)
	}
}

func TestIndodaxRateLimitKeys(t *testing.T) {
	path := writeTempConfig(t, "app:\n  name: x\nsource:\n  indodax:\n    base_url: \"https://indodax.com\"\n    rate_limit:\n      requests_per_second: 7\n      burst_size: 3\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if rl := cfg.Source.Indodax.RateLimit; rl.RequestsPerSecond != 7 || rl.BurstSize != 3 {
		t.Fatalf("rate_limit not read: %+v", rl)
	}
}
