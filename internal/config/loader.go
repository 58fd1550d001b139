package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBSCAN_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Collector ──
	setDuration(&cfg.Collector.CentralizedInterval, "ARBSCAN_COLLECTOR_CENTRALIZED_INTERVAL")
	setDuration(&cfg.Collector.DerivativeInterval, "ARBSCAN_COLLECTOR_DERIVATIVE_INTERVAL")
	setDuration(&cfg.Collector.OnChainInterval, "ARBSCAN_COLLECTOR_ONCHAIN_INTERVAL")
	setDuration(&cfg.Collector.RequestTimeout, "ARBSCAN_COLLECTOR_REQUEST_TIMEOUT")
	setDuration(&cfg.Collector.PassTimeout, "ARBSCAN_COLLECTOR_PASS_TIMEOUT")
	setInt(&cfg.Collector.MaxAttempts, "ARBSCAN_COLLECTOR_MAX_ATTEMPTS")

	// ── Throttle ──
	setDuration(&cfg.Throttle.Pacing, "ARBSCAN_THROTTLE_PACING")
	setInt(&cfg.Throttle.CentralizedLimit, "ARBSCAN_THROTTLE_CENTRALIZED_LIMIT")
	setInt(&cfg.Throttle.DerivativeLimit, "ARBSCAN_THROTTLE_DERIVATIVE_LIMIT")
	setInt(&cfg.Throttle.DefaultChainLimit, "ARBSCAN_THROTTLE_DEFAULT_CHAIN_LIMIT")
	setBool(&cfg.Throttle.Distributed, "ARBSCAN_THROTTLE_DISTRIBUTED")

	// ── Venues ──
	setBool(&cfg.Venues.Binance.Enabled, "ARBSCAN_BINANCE_ENABLED")
	setStr(&cfg.Venues.Binance.BaseURL, "ARBSCAN_BINANCE_BASE_URL")
	setBool(&cfg.Venues.Bybit.Enabled, "ARBSCAN_BYBIT_ENABLED")
	setStr(&cfg.Venues.Bybit.BaseURL, "ARBSCAN_BYBIT_BASE_URL")
	setBool(&cfg.Venues.Hyperliquid.Enabled, "ARBSCAN_HYPERLIQUID_ENABLED")
	setStr(&cfg.Venues.Hyperliquid.BaseURL, "ARBSCAN_HYPERLIQUID_BASE_URL")
	setBool(&cfg.Venues.DYDX.Enabled, "ARBSCAN_DYDX_ENABLED")
	setStr(&cfg.Venues.DYDX.BaseURL, "ARBSCAN_DYDX_BASE_URL")
	setFloat64(&cfg.Venues.PerpFeeRate, "ARBSCAN_PERP_FEE_RATE")
	setBool(&cfg.Venues.AMM.Enabled, "ARBSCAN_AMM_ENABLED")
	setStringSlice(&cfg.Venues.AMM.Chains, "ARBSCAN_AMM_CHAINS")
	setRPCOverrides(cfg.Venues.AMM.RPCOverrides, "ARBSCAN_RPC_")

	// ── Detector ──
	setStr(&cfg.Detector.Strategy, "ARBSCAN_DETECTOR_STRATEGY")
	setInt64(&cfg.Detector.WindowSeconds, "ARBSCAN_DETECTOR_WINDOW_SECONDS")
	setFloat64(&cfg.Detector.SpreadThresholdPct, "ARBSCAN_DETECTOR_SPREAD_THRESHOLD_PCT")
	setStr(&cfg.Detector.HedgeVenue, "ARBSCAN_DETECTOR_HEDGE_VENUE")
	setFloat64(&cfg.Detector.Investment, "ARBSCAN_DETECTOR_INVESTMENT")
	setDuration(&cfg.Detector.AnalyzeInterval, "ARBSCAN_DETECTOR_ANALYZE_INTERVAL")
	setDuration(&cfg.Detector.Lookback, "ARBSCAN_DETECTOR_LOOKBACK")

	// ── Schedule ──
	setStr(&cfg.Schedule.Algorithm, "ARBSCAN_SCHEDULE_ALGORITHM")
	setDuration(&cfg.Schedule.ExecutionTime, "ARBSCAN_SCHEDULE_EXECUTION_TIME")

	// ── Analyze ──
	setStr(&cfg.Analyze.File, "ARBSCAN_ANALYZE_FILE")
	setFloat64(&cfg.Analyze.Investment, "ARBSCAN_ANALYZE_INVESTMENT")
	setBool(&cfg.Analyze.Persist, "ARBSCAN_ANALYZE_PERSIST")
	setBool(&cfg.Analyze.Upload, "ARBSCAN_ANALYZE_UPLOAD")

	// ── Observation log / archive ──
	setStr(&cfg.ObsLog.Dir, "ARBSCAN_OBSLOG_DIR")
	setStr(&cfg.ObsLog.Prefix, "ARBSCAN_OBSLOG_PREFIX")
	setBool(&cfg.Archive.Enabled, "ARBSCAN_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "ARBSCAN_ARCHIVE_CRON")
	setBool(&cfg.Archive.Parquet, "ARBSCAN_ARCHIVE_PARQUET")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "ARBSCAN_REDIS_NAMESPACE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSCAN_S3_FORCE_PATH_STYLE")

	// ── Pool store ──
	setStr(&cfg.PoolStore.Path, "ARBSCAN_POOL_STORE_PATH")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBSCAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBSCAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBSCAN_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBSCAN_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBSCAN_NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.MinProfitUSD, "ARBSCAN_NOTIFY_MIN_PROFIT_USD")

	// ── Log ──
	setStr(&cfg.Log.File, "ARBSCAN_LOG_FILE")

	// ── Top-level ──
	setStr(&cfg.CatalogPath, "ARBSCAN_CATALOG_PATH")
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setRPCOverrides picks up per-network RPC URLs such as ARBSCAN_RPC_ARBITRUM.
func setRPCOverrides(dst map[string]string, prefix string) {
	if dst == nil {
		return
	}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		network := strings.ToLower(strings.TrimPrefix(name, prefix))
		if network != "" {
			dst[network] = value
		}
	}
}
