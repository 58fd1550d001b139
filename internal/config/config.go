// Package config defines the top-level configuration for the price
// arbitrage scanner and provides validation helpers.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Collector   CollectorConfig `toml:"collector"`
	Throttle    ThrottleConfig  `toml:"throttle"`
	Venues      VenuesConfig    `toml:"venues"`
	Detector    DetectorConfig  `toml:"detector"`
	CostModel   CostModelConfig `toml:"cost_model"`
	Schedule    ScheduleConfig  `toml:"schedule"`
	Analyze     AnalyzeConfig   `toml:"analyze"`
	ObsLog      ObsLogConfig    `toml:"obslog"`
	Archive     ArchiveConfig   `toml:"archive"`
	Postgres    PostgresConfig  `toml:"postgres"`
	Redis       RedisConfig     `toml:"redis"`
	S3          S3Config        `toml:"s3"`
	PoolStore   PoolStoreConfig `toml:"pool_store"`
	Server      ServerConfig    `toml:"server"`
	Notify      NotifyConfig    `toml:"notify"`
	Log         LogConfig       `toml:"log"`
	CatalogPath string          `toml:"catalog_path"`
	Mode        string          `toml:"mode"`
	LogLevel    string          `toml:"log_level"`
}

// CollectorConfig controls the per-family collection loops and the adapter
// retry budget.
type CollectorConfig struct {
	CentralizedInterval duration `toml:"centralized_interval"`
	DerivativeInterval  duration `toml:"derivative_interval"`
	OnChainInterval     duration `toml:"onchain_interval"`
	RequestTimeout      duration `toml:"request_timeout"`
	// PassTimeout bounds one collection pass. A stop signal never cancels
	// requests already sent; this deadline does.
	PassTimeout    duration `toml:"pass_timeout"`
	MaxAttempts    int      `toml:"max_attempts"`
	BaseBackoff    duration `toml:"base_backoff"`
	MaxBackoff     duration `toml:"max_backoff"`
	TimeoutBackoff duration `toml:"timeout_backoff"`
}

// ThrottleConfig holds per-venue admission limits.
type ThrottleConfig struct {
	Pacing            duration       `toml:"pacing"`
	CentralizedLimit  int            `toml:"centralized_limit"`
	DerivativeLimit   int            `toml:"derivative_limit"`
	DefaultChainLimit int            `toml:"default_chain_limit"`
	ChainLimits       map[string]int `toml:"chain_limits"`
	VenueLimits       map[string]int `toml:"venue_limits"`
	// Distributed enables a shared Redis sliding-window budget per venue on
	// top of the in-process gate.
	Distributed       bool     `toml:"distributed"`
	DistributedLimit  int      `toml:"distributed_limit"`
	DistributedWindow duration `toml:"distributed_window"`
}

// VenuesConfig enables and points the venue adapters.
type VenuesConfig struct {
	Binance     RESTVenueConfig `toml:"binance"`
	Bybit       RESTVenueConfig `toml:"bybit"`
	Hyperliquid RESTVenueConfig `toml:"hyperliquid"`
	DYDX        RESTVenueConfig `toml:"dydx"`
	PerpFeeRate float64         `toml:"perp_fee_rate"`
	AMM         AMMConfig       `toml:"amm"`
}

// RESTVenueConfig is shared by the HTTP-polled venues.
type RESTVenueConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// AMMConfig selects on-chain networks and optional RPC overrides.
type AMMConfig struct {
	Enabled bool `toml:"enabled"`
	// Chains restricts collection to these networks; empty means every
	// network in the catalogue.
	Chains       []string          `toml:"chains"`
	RPCOverrides map[string]string `toml:"rpc_overrides"`
	FeeTiers     []uint32          `toml:"fee_tiers"`
}

// DetectorConfig parameterises the arbitrage strategies.
type DetectorConfig struct {
	// Strategy selects "spread", "leveraged" or "complete".
	Strategy             string   `toml:"strategy"`
	WindowSeconds        int64    `toml:"window_seconds"`
	SpreadThresholdPct   float64  `toml:"spread_threshold_pct"`
	HedgeVenue           string   `toml:"hedge_venue"`
	PairToleranceSeconds int64    `toml:"pair_tolerance_seconds"`
	MinLeveragedDiffPct  float64  `toml:"min_leveraged_diff_pct"`
	MinCycleSpreadPct    float64  `toml:"min_cycle_spread_pct"`
	Investment           float64  `toml:"investment"`
	AnalyzeInterval      duration `toml:"analyze_interval"`
	Lookback             duration `toml:"lookback"`
}

// CostModelConfig is the injected cost model. Transfer tables are keyed
// "origin->destination" where origin and destination are segments.
type CostModelConfig struct {
	DEXFeeRate          float64            `toml:"dex_fee_rate"`
	CEXFeeRate          float64            `toml:"cex_fee_rate"`
	FuturesFeeRate      float64            `toml:"futures_fee_rate"`
	MarginRate          float64            `toml:"margin_rate"`
	FundingRateHourly   float64            `toml:"funding_rate_hourly"`
	HedgeGas            float64            `toml:"hedge_gas"`
	GasPerTx            float64            `toml:"gas_per_tx"`
	WeeklyRebalanceCost float64            `toml:"weekly_rebalance_cost"`
	TransactionFee      float64            `toml:"transaction_fee"`
	CentralizedVenues   []string           `toml:"centralized_venues"`
	TokenTransfer       map[string]float64 `toml:"token_transfer"`
	StableReturn        map[string]float64 `toml:"stable_return"`
	MinTransfer         map[string]float64 `toml:"min_transfer"`
	DefaultMinTransfer  float64            `toml:"default_min_transfer"`
}

// ScheduleConfig selects the trade scheduler.
type ScheduleConfig struct {
	// Algorithm is "greedy" (default) or "optimal".
	Algorithm     string   `toml:"algorithm"`
	ExecutionTime duration `toml:"execution_time"`
}

// AnalyzeConfig controls offline analysis of an observation log.
type AnalyzeConfig struct {
	File       string  `toml:"file"`
	Investment float64 `toml:"investment"`
	Persist    bool    `toml:"persist"`
	Upload     bool    `toml:"upload"`
}

// ObsLogConfig locates the daily observation log files.
type ObsLogConfig struct {
	Dir    string `toml:"dir"`
	Prefix string `toml:"prefix"`
}

// ArchiveConfig controls the daily archive upload.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled"`
	// Cron is a 5-field UTC schedule, "minute hour dom month dow".
	Cron    string   `toml:"cron"`
	Prefix  string   `toml:"prefix"`
	Parquet bool     `toml:"parquet"`
	LockTTL duration `toml:"lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
	// Namespace prefixes every key and pub/sub channel.
	Namespace string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PoolStoreConfig locates the SQLite pool registry. An empty path disables
// persistence and keeps the pool cache in memory only.
type PoolStoreConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit caps requests per client IP per RateWindow through the
	// Redis limiter; zero disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	DedupTTL          duration `toml:"dedup_ttl"`
	MinProfitUSD      float64  `toml:"min_profit_usd"`
}

// LogConfig routes log output to a rotating file when File is set.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Collector: CollectorConfig{
			CentralizedInterval: duration{5 * time.Second},
			DerivativeInterval:  duration{5 * time.Second},
			OnChainInterval:     duration{60 * time.Second},
			RequestTimeout:      duration{10 * time.Second},
			PassTimeout:         duration{45 * time.Second},
			MaxAttempts:         3,
			BaseBackoff:         duration{time.Second},
			MaxBackoff:          duration{30 * time.Second},
			TimeoutBackoff:      duration{time.Second},
		},
		Throttle: ThrottleConfig{
			Pacing:            duration{200 * time.Millisecond},
			CentralizedLimit:  8,
			DerivativeLimit:   4,
			DefaultChainLimit: 3,
			ChainLimits: map[string]int{
				"base":     1,
				"ethereum": 2,
			},
			VenueLimits: map[string]int{
				"bybit": 5,
			},
			DistributedLimit:  20,
			DistributedWindow: duration{time.Second},
		},
		Venues: VenuesConfig{
			Binance:     RESTVenueConfig{Enabled: true, BaseURL: "https://api.binance.com"},
			Bybit:       RESTVenueConfig{Enabled: true, BaseURL: "https://api.bybit.com"},
			Hyperliquid: RESTVenueConfig{Enabled: true, BaseURL: "https://api.hyperliquid.xyz"},
			DYDX:        RESTVenueConfig{Enabled: true, BaseURL: "https://indexer.dydx.trade"},
			PerpFeeRate: 0.0002,
			AMM: AMMConfig{
				Enabled:      true,
				RPCOverrides: map[string]string{},
				FeeTiers:     []uint32{3000, 500, 10000, 100},
			},
		},
		Detector: DetectorConfig{
			Strategy:             "spread",
			WindowSeconds:        30,
			SpreadThresholdPct:   0.05,
			HedgeVenue:           "bybit",
			PairToleranceSeconds: 300,
			MinLeveragedDiffPct:  0.05,
			MinCycleSpreadPct:    1.0,
			Investment:           1000,
			AnalyzeInterval:      duration{time.Minute},
			Lookback:             duration{10 * time.Minute},
		},
		CostModel: CostModelConfig{
			DEXFeeRate:          0.003,
			CEXFeeRate:          0.001,
			FuturesFeeRate:      0.0002,
			MarginRate:          0.1,
			FundingRateHourly:   0.0001,
			HedgeGas:            3.0,
			GasPerTx:            2.0,
			WeeklyRebalanceCost: 8.0,
			TransactionFee:      0.0025,
			CentralizedVenues:   []string{"binance", "bybit"},
			TokenTransfer: map[string]float64{
				"arbitrum->centralized": 3.0,
				"optimism->centralized": 2.5,
				"base->centralized":     2.0,
				"arbitrum->optimism":    12.0,
				"optimism->arbitrum":    12.0,
				"arbitrum->base":        10.0,
				"base->arbitrum":        10.0,
				"optimism->base":        8.0,
				"base->optimism":        8.0,
			},
			StableReturn: map[string]float64{
				"centralized->arbitrum": 8.0,
				"centralized->optimism": 7.5,
				"centralized->base":     6.0,
				"arbitrum->optimism":    15.0,
				"optimism->arbitrum":    15.0,
				"arbitrum->base":        13.0,
				"base->arbitrum":        13.0,
				"optimism->base":        11.0,
				"base->optimism":        11.0,
			},
			MinTransfer: map[string]float64{
				"UNI":   0.1,
				"WETH":  0.001,
				"WBTC":  0.0001,
				"LINK":  0.1,
				"MATIC": 1.0,
			},
			DefaultMinTransfer: 0.1,
		},
		Schedule: ScheduleConfig{
			Algorithm:     "greedy",
			ExecutionTime: duration{30 * time.Second},
		},
		Analyze: AnalyzeConfig{
			Investment: 100,
		},
		ObsLog: ObsLogConfig{
			Dir:    "./data",
			Prefix: "unified_prices",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Cron:    "15 0 * * *",
			Prefix:  "observations",
			Parquet: true,
			LockTTL: duration{10 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			PriceTTL:   duration{5 * time.Minute},
			Namespace:  "arbscan",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pricearb-data",
			ForcePathStyle: true,
		},
		PoolStore: PoolStoreConfig{
			Path: "pools.db",
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events:       []string{"opportunity", "summary", "error"},
			DedupTTL:     duration{10 * time.Minute},
			MinProfitUSD: 1.0,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Mode:     "collect",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"collect": true,
	"analyze": true,
	"full":    true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStrategies = map[string]bool{
	"spread":     true,
	"leveraged":  true,
	"hedge":      true,
	"complete":   true,
	"full_cycle": true,
}

var validAlgorithms = map[string]bool{
	"greedy":  true,
	"optimal": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: collect, analyze, full, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Collector
	if c.Collector.CentralizedInterval.Duration <= 0 ||
		c.Collector.DerivativeInterval.Duration <= 0 ||
		c.Collector.OnChainInterval.Duration <= 0 {
		errs = append(errs, "collector: intervals must be > 0")
	}
	if c.Collector.MaxAttempts < 1 {
		errs = append(errs, "collector: max_attempts must be >= 1")
	}
	if c.Collector.RequestTimeout.Duration <= 0 {
		errs = append(errs, "collector: request_timeout must be > 0")
	}
	if c.Collector.PassTimeout.Duration < c.Collector.RequestTimeout.Duration {
		errs = append(errs, "collector: pass_timeout must be >= request_timeout")
	}

	// Throttle
	if c.Throttle.CentralizedLimit < 1 || c.Throttle.DerivativeLimit < 1 || c.Throttle.DefaultChainLimit < 1 {
		errs = append(errs, "throttle: limits must be >= 1")
	}
	for _, name := range sortedKeys(c.Throttle.ChainLimits) {
		if c.Throttle.ChainLimits[name] < 1 {
			errs = append(errs, fmt.Sprintf("throttle: chain_limits.%s must be >= 1", name))
		}
	}
	for _, name := range sortedKeys(c.Throttle.VenueLimits) {
		if c.Throttle.VenueLimits[name] < 1 {
			errs = append(errs, fmt.Sprintf("throttle: venue_limits.%s must be >= 1", name))
		}
	}
	if c.Throttle.Pacing.Duration < 0 {
		errs = append(errs, "throttle: pacing must not be negative")
	}
	if c.Throttle.Distributed {
		if !c.Redis.Enabled {
			errs = append(errs, "throttle: distributed requires redis.enabled")
		}
		if c.Throttle.DistributedLimit < 1 || c.Throttle.DistributedWindow.Duration <= 0 {
			errs = append(errs, "throttle: distributed_limit and distributed_window must be positive")
		}
	}

	// Detector
	if !validStrategies[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c.Detector.Strategy)), "-", "_")] {
		errs = append(errs, fmt.Sprintf("detector: unknown strategy %q (valid: spread, leveraged, complete)", c.Detector.Strategy))
	}
	if c.Detector.WindowSeconds <= 0 {
		errs = append(errs, "detector: window_seconds must be > 0")
	}
	if c.Detector.SpreadThresholdPct < 0 {
		errs = append(errs, "detector: spread_threshold_pct must be >= 0")
	}
	if c.Detector.Investment <= 0 {
		errs = append(errs, "detector: investment must be > 0")
	}
	if c.Detector.HedgeVenue == "" {
		errs = append(errs, "detector: hedge_venue must not be empty")
	}

	// Cost model
	for name, v := range map[string]float64{
		"dex_fee_rate":        c.CostModel.DEXFeeRate,
		"cex_fee_rate":        c.CostModel.CEXFeeRate,
		"futures_fee_rate":    c.CostModel.FuturesFeeRate,
		"margin_rate":         c.CostModel.MarginRate,
		"funding_rate_hourly": c.CostModel.FundingRateHourly,
		"transaction_fee":     c.CostModel.TransactionFee,
	} {
		if v < 0 || v >= 1 {
			errs = append(errs, fmt.Sprintf("cost_model: %s must be in [0, 1)", name))
		}
	}
	for _, key := range append(sortedKeys(c.CostModel.TokenTransfer), sortedKeys(c.CostModel.StableReturn)...) {
		if !strings.Contains(key, "->") {
			errs = append(errs, fmt.Sprintf("cost_model: transfer key %q must look like origin->destination", key))
		}
	}

	// Schedule
	if !validAlgorithms[strings.ToLower(c.Schedule.Algorithm)] {
		errs = append(errs, fmt.Sprintf("schedule: unknown algorithm %q (valid: greedy, optimal)", c.Schedule.Algorithm))
	}
	if c.Schedule.ExecutionTime.Duration < 0 {
		errs = append(errs, "schedule: execution_time must not be negative")
	}

	// Analyze
	if mode == "analyze" {
		if strings.TrimSpace(c.Analyze.File) == "" {
			errs = append(errs, "analyze: file is required for mode analyze")
		}
		if c.Analyze.Investment <= 0 {
			errs = append(errs, "analyze: investment must be > 0")
		}
	}

	if c.ObsLog.Dir == "" {
		errs = append(errs, "obslog: dir must not be empty")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled || c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if c.Archive.Enabled && !c.S3.Enabled {
		errs = append(errs, "archive: requires s3.enabled")
	}
	if c.Archive.Enabled && len(strings.Fields(c.Archive.Cron)) != 5 {
		errs = append(errs, fmt.Sprintf("archive: cron must have 5 fields, got %q", c.Archive.Cron))
	}

	// Server
	if c.Server.Enabled || mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
