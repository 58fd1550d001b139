package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/pricearb/internal/blob/s3"
	"github.com/alanyoungcy/pricearb/internal/cache/redis"
	"github.com/alanyoungcy/pricearb/internal/config"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/notify"
	"github.com/alanyoungcy/pricearb/internal/server/handler"
	"github.com/alanyoungcy/pricearb/internal/store/postgres"
)

// Dependencies bundles the infrastructure the operating modes share. Every
// field is optional; a nil field means the backing service is disabled.
type Dependencies struct {
	Postgres         *postgres.Client
	OpportunityStore domain.OpportunityStore

	Redis       *redis.Client
	PriceCache  domain.PriceCache
	RateLimiter *redis.RateLimiter
	LockManager domain.LockManager
	SignalBus   *redis.SignalBus

	S3         *s3blob.Client
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Reports    *s3blob.ReportUploader

	Notifier *notify.Notifier
}

// needsPostgres reports whether mode reads or writes opportunities.
func needsPostgres(cfg *config.Config) bool {
	if !cfg.Postgres.Enabled {
		return false
	}
	if cfg.Mode == "analyze" {
		return cfg.Analyze.Persist
	}
	return true
}

// needsRedis reports whether mode uses the price cache, bus or locks.
// Offline analysis never does.
func needsRedis(cfg *config.Config) bool {
	return cfg.Redis.Enabled && cfg.Mode != "analyze"
}

// needsS3 reports whether mode uploads archives or reports.
func needsS3(cfg *config.Config) bool {
	if !cfg.S3.Enabled {
		return false
	}
	switch cfg.Mode {
	case "analyze":
		return cfg.Analyze.Upload
	case "server":
		return false
	default:
		return true
	}
}

// Wire connects to every enabled backing service and returns the
// dependencies with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	deps := &Dependencies{}

	if needsPostgres(cfg) {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Postgres = pg
		deps.OpportunityStore = postgres.NewOpportunityStore(pg.Pool())
	}

	if needsRedis(cfg) {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Redis = rc
		deps.PriceCache = redis.NewPriceCache(rc, cfg.Redis.PriceTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(rc, cfg.Throttle.DistributedLimit, cfg.Throttle.DistributedWindow.Duration)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
	}

	if needsS3(cfg) {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		w := s3blob.NewWriter(sc)
		deps.S3 = sc
		deps.BlobWriter = w
		deps.BlobReader = s3blob.NewReader(sc)
		deps.Reports = s3blob.NewReportUploader(w, "")
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, nil))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, nil))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.Info("dependencies wired",
		slog.Bool("postgres", deps.Postgres != nil),
		slog.Bool("redis", deps.Redis != nil),
		slog.Bool("s3", deps.S3 != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)
	return deps, cleanup, nil
}

// healthChecks returns a probe per wired backing service.
func (d *Dependencies) healthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if d.Postgres != nil {
		checks["postgres"] = d.Postgres.Health
	}
	if d.Redis != nil {
		checks["redis"] = d.Redis.Ping
	}
	if d.S3 != nil {
		checks["s3"] = d.S3.Health
	}
	return checks
}
