// Package throttle gates outbound venue requests: bounded parallelism per
// venue plus a minimum spacing between request starts. It never retries;
// retry belongs to the venue driver built on top of gated calls.
package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Shared is an optional cross-process budget consulted after local
// admission. A failing shared limiter never blocks collection.
type Shared struct {
	Limiter domain.RateLimiter
	Limit   int
	Window  time.Duration
}

// Gate admits requests to a single venue.
type Gate struct {
	name     string
	limit    int64
	sem      *semaphore.Weighted
	pace     *rate.Limiter
	shared   *Shared
	inFlight atomic.Int64
	logger   *slog.Logger
}

// NewGate returns a gate allowing at most limit concurrent requests, with
// request starts spaced at least pacing apart. A non-positive pacing disables
// spacing.
func NewGate(name string, limit int, pacing time.Duration, shared *Shared, logger *slog.Logger) *Gate {
	if limit < 1 {
		limit = 1
	}
	lim := rate.Inf
	if pacing > 0 {
		lim = rate.Every(pacing)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		name:   name,
		limit:  int64(limit),
		sem:    semaphore.NewWeighted(int64(limit)),
		pace:   rate.NewLimiter(lim, 1),
		shared: shared,
		logger: logger,
	}
}

// Name returns the venue key this gate guards.
func (g *Gate) Name() string { return g.name }

// Limit returns the concurrency cap.
func (g *Gate) Limit() int { return int(g.limit) }

// InFlight returns the number of admitted requests still running.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Do runs fn once admitted. Admission waits for a concurrency slot, then for
// the pacing limiter, then for the shared budget when configured. A
// cancelled ctx aborts the wait; fn receives ctx unchanged, so callers that
// must let requests finish pass a context detached from their stop signal.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("throttle: %s: acquire: %w", g.name, err)
	}
	defer g.sem.Release(1)

	if err := g.pace.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %s: pace: %w", g.name, err)
	}
	if err := g.waitShared(ctx); err != nil {
		return err
	}

	g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	return fn(ctx)
}

func (g *Gate) waitShared(ctx context.Context) error {
	if g.shared == nil || g.shared.Limiter == nil {
		return nil
	}
	poll := g.shared.Window / time.Duration(max(g.shared.Limit, 1))
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for {
		ok, err := g.shared.Limiter.Allow(ctx, "venue:"+g.name, g.shared.Limit, g.shared.Window)
		if err != nil {
			g.logger.WarnContext(ctx, "shared rate limiter unavailable, continuing",
				slog.String("venue", g.name),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("throttle: %s: shared wait: %w", g.name, ctx.Err())
		case <-timer.C:
		}
	}
}
