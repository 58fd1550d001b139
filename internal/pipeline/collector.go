// Package pipeline runs the long-lived collection loops and the daily
// archive job.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pricearb/internal/aggregator"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/venue"
)

// sinkTimeout bounds the cache and bus writes that close a pass.
const sinkTimeout = 5 * time.Second

// LogAppender persists a pass's observations. *obslog.Writer satisfies it.
type LogAppender interface {
	Append(obs []domain.Observation) error
}

// PricePublisher fans a pass's observations out to live subscribers.
// *redis.SignalBus satisfies it.
type PricePublisher interface {
	PublishObservations(ctx context.Context, obs []domain.Observation) error
}

// CollectorConfig wires a Collector. Log is required; Cache and Bus are
// optional.
type CollectorConfig struct {
	Name     string
	Driver   *venue.Driver
	Adapters []venue.Adapter
	Log      LogAppender
	Cache    domain.PriceCache
	Bus      PricePublisher
	Logger   *slog.Logger
}

// Collector runs collection passes over one venue family.
type Collector struct {
	name     string
	driver   *venue.Driver
	adapters []venue.Adapter
	log      LogAppender
	cache    domain.PriceCache
	bus      PricePublisher
	logger   *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		name:     cfg.Name,
		driver:   cfg.Driver,
		adapters: cfg.Adapters,
		log:      cfg.Log,
		cache:    cfg.Cache,
		bus:      cfg.Bus,
		logger:   logger.With(slog.String("component", "collector"), slog.String("family", cfg.Name)),
	}
}

// Name returns the family this collector serves.
func (c *Collector) Name() string { return c.name }

// Run performs one pass: every adapter is queried concurrently, results are
// merged, appended to the observation log, cached and published. Only a
// log write failure fails the pass; a venue that returned nothing simply
// contributes nothing. Cancelling ctx mid-pass stops new requests but the
// responses already on their way are still merged and written.
func (c *Collector) Run(ctx context.Context) (*aggregator.Snapshot, error) {
	start := time.Now()
	snap := aggregator.Merge(c.driver.CollectAll(ctx, c.adapters)...)
	obs := snap.All()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := c.log.Append(obs); err != nil {
		return snap, fmt.Errorf("pipeline: %s: append log: %w", c.name, err)
	}
	if c.cache != nil {
		if err := c.cache.SetLatest(ctx, obs); err != nil {
			c.logger.Warn("price cache update failed", slog.String("error", err.Error()))
		}
	}
	if c.bus != nil {
		if err := c.bus.PublishObservations(ctx, obs); err != nil {
			c.logger.Warn("price publish failed", slog.String("error", err.Error()))
		}
	}

	c.logger.Info("collection pass complete",
		slog.Int("venues", len(c.adapters)),
		slog.Int("observations", len(obs)),
		slog.Int("tokens", len(snap.Tokens())),
		slog.Int("dropped", snap.Dropped()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// RunLoop runs a pass immediately and then every interval until ctx is
// cancelled. A failed pass is logged and the loop carries on. Cancellation
// is observed between passes; a running pass finishes first.
func (c *Collector) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := c.Run(ctx); err != nil {
		c.logger.Error("collection pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Run(ctx); err != nil {
				c.logger.Error("collection pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
