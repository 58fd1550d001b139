package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "trade" }, `unknown mode "trade"`},
		{"bad strategy", func(c *Config) { c.Detector.Strategy = "triangular" }, "unknown strategy"},
		{"zero window", func(c *Config) { c.Detector.WindowSeconds = 0 }, "window_seconds"},
		{"bad algorithm", func(c *Config) { c.Schedule.Algorithm = "random" }, "unknown algorithm"},
		{"analyze without file", func(c *Config) { c.Mode = "analyze" }, "analyze: file is required"},
		{"distributed without redis", func(c *Config) { c.Throttle.Distributed = true }, "distributed requires redis"},
		{"bad chain limit", func(c *Config) { c.Throttle.ChainLimits["base"] = 0 }, "chain_limits.base"},
		{"bad transfer key", func(c *Config) { c.CostModel.TokenTransfer["arbitrum"] = 1 }, `"arbitrum" must look like`},
		{"archive without s3", func(c *Config) { c.Archive.Enabled = true }, "archive: requires s3.enabled"},
		{"pass shorter than request", func(c *Config) { c.Collector.PassTimeout.Duration = time.Second }, "pass_timeout"},
		{"fee out of range", func(c *Config) { c.CostModel.DEXFeeRate = 1.5 }, "dex_fee_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbscan.toml")
	body := `
mode = "analyze"

[detector]
strategy = "leveraged"
window_seconds = 60

[schedule]
execution_time = "45s"

[analyze]
file = "data/unified_prices_20250101.csv"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARBSCAN_DETECTOR_HEDGE_VENUE", "binance")
	t.Setenv("ARBSCAN_RPC_ARBITRUM", "https://arb.example/rpc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Detector.Strategy != "leveraged" || cfg.Detector.WindowSeconds != 60 {
		t.Fatalf("detector not merged: %+v", cfg.Detector)
	}
	if cfg.Detector.HedgeVenue != "binance" {
		t.Fatalf("env override ignored: hedge venue %q", cfg.Detector.HedgeVenue)
	}
	if cfg.Schedule.ExecutionTime.Duration != 45*time.Second {
		t.Fatalf("execution time = %v", cfg.Schedule.ExecutionTime.Duration)
	}
	if got := cfg.Venues.AMM.RPCOverrides["arbitrum"]; got != "https://arb.example/rpc" {
		t.Fatalf("rpc override = %q", got)
	}
	// untouched defaults survive
	if cfg.Detector.SpreadThresholdPct != 0.05 {
		t.Fatalf("threshold default lost: %v", cfg.Detector.SpreadThresholdPct)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "k"
	cfg.Venues.AMM.RPCOverrides["ethereum"] = "https://mainnet.example/v3/secret"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != "***" || out.Server.APIKey != "***" {
		t.Fatalf("secrets not redacted: %+v %+v", out.Postgres, out.Server)
	}
	if out.Venues.AMM.RPCOverrides["ethereum"] != "***" {
		t.Fatal("rpc override not redacted")
	}
	if cfg.Postgres.Password != "hunter2" || cfg.Venues.AMM.RPCOverrides["ethereum"] == "***" {
		t.Fatal("original config mutated")
	}
	out.CostModel.MinTransfer["UNI"] = 99
	if cfg.CostModel.MinTransfer["UNI"] == 99 {
		t.Fatal("maps shared between copies")
	}
}
