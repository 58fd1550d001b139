package venue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// RetryPolicy is the per-pass retry budget for a bulk fetch.
type RetryPolicy struct {
	MaxAttempts int
	// BaseBackoff is the first delay after a rate-limit signal; it doubles
	// on each further attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// TimeoutBackoff is the flat delay after a transport timeout.
	TimeoutBackoff time.Duration
	// FallbackParallelism bounds concurrent FetchOne calls.
	FallbackParallelism int
	// PassTimeout bounds every request of one Collect call. Zero means no
	// deadline beyond the adapters' own client timeouts.
	PassTimeout time.Duration
}

// DefaultRetryPolicy is three attempts with 1s, 2s backoff on throttling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		BaseBackoff:         time.Second,
		MaxBackoff:          30 * time.Second,
		TimeoutBackoff:      time.Second,
		FallbackParallelism: 4,
		PassTimeout:         45 * time.Second,
	}
}

// Driver runs adapters under a retry policy. It never fails: the worst case
// for a venue is an empty result for that pass.
type Driver struct {
	policy RetryPolicy
	logger *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(policy RetryPolicy, logger *slog.Logger) *Driver {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.FallbackParallelism < 1 {
		policy.FallbackParallelism = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 100 * time.Millisecond
	}
	if policy.MaxBackoff < policy.BaseBackoff {
		policy.MaxBackoff = max(policy.BaseBackoff, 30*time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{policy: policy, logger: logger.With(slog.String("component", "venue_driver"))}
}

// requestContext detaches requests from the stop signal so a request
// already sent completes; only PassTimeout cuts it short.
func (d *Driver) requestContext(stop context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(stop)
	if d.policy.PassTimeout > 0 {
		return context.WithTimeout(base, d.policy.PassTimeout)
	}
	return context.WithCancel(base)
}

// Collect fetches every observation a venue can offer this pass. The bulk
// call is retried on throttling and timeouts; once the budget is spent, or
// on any other transport error, each instrument is fetched individually.
//
// Cancelling stop never aborts a request in flight. It only prevents new
// ones: no retry and no fallback is started once stop is done.
func (d *Driver) Collect(stop context.Context, a Adapter) []domain.Observation {
	log := d.logger.With(slog.String("venue", a.Name()))
	ctx, cancel := d.requestContext(stop)
	defer cancel()

	throttled := &backoff.Backoff{
		Min:    d.policy.BaseBackoff,
		Max:    d.policy.MaxBackoff,
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		obs, err := a.FetchAll(ctx)
		if err == nil {
			return Sanitize(obs)
		}
		lastErr = err

		var delay time.Duration
		retryable := true
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			delay = throttled.Duration()
		case errors.Is(err, domain.ErrTimeout):
			delay = d.policy.TimeoutBackoff
		default:
			retryable = false
		}
		log.WarnContext(ctx, "bulk fetch failed",
			slog.Int("attempt", attempt),
			slog.Bool("retryable", retryable),
			slog.String("error", err.Error()),
		)
		if !retryable || attempt == d.policy.MaxAttempts {
			break
		}
		if !sleep(stop, delay) {
			return nil
		}
	}

	if stop.Err() != nil {
		return nil
	}
	obs := d.fallback(stop, ctx, a)
	if len(obs) == 0 {
		log.WarnContext(ctx, "venue produced nothing this pass", slog.String("error", errString(lastErr)))
	}
	return obs
}

func (d *Driver) fallback(stop, ctx context.Context, a Adapter) []domain.Observation {
	tokens := a.Tokens()
	if len(tokens) == 0 {
		return nil
	}

	var (
		mu  sync.Mutex
		out []domain.Observation
		g   errgroup.Group
	)
	g.SetLimit(d.policy.FallbackParallelism)
	for _, tok := range tokens {
		g.Go(func() error {
			if stop.Err() != nil || ctx.Err() != nil {
				return nil
			}
			o, ok, err := a.FetchOne(ctx, tok)
			if err != nil {
				d.logger.DebugContext(ctx, "fallback fetch failed",
					slog.String("venue", a.Name()),
					slog.String("token", tok.Symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			out = append(out, o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return Sanitize(out)
}

// CollectAll runs every adapter concurrently and returns each venue's output
// in adapter order. Output order within the pass follows the adapter slice,
// not completion order.
func (d *Driver) CollectAll(ctx context.Context, adapters []Adapter) [][]domain.Observation {
	results := make([][]domain.Observation, len(adapters))
	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Collect(ctx, a)
		}()
	}
	wg.Wait()
	return results
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
