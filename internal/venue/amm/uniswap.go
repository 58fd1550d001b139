// Package amm implements the on-chain pool venue adapter.
package amm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/pool"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
)

// Uniswap prices every catalogued token deployed on one network.
type Uniswap struct {
	norm   *pool.Normalizer
	tokens []domain.TokenDescriptor
	logger *slog.Logger
}

// NewUniswap creates an adapter over a normalizer. Tokens without a contract
// address on the normalizer's network are skipped.
func NewUniswap(norm *pool.Normalizer, chain domain.VenueDescriptor, tokens []domain.TokenDescriptor, logger *slog.Logger) *Uniswap {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uniswap{
		norm:   norm,
		logger: logger.With(slog.String("venue", pool.VenueName), slog.String("network", chain.Network)),
	}
	for _, t := range tokens {
		if _, ok := chain.TokenAddress(t.Symbol); ok {
			u.tokens = append(u.tokens, t)
		}
	}
	return u
}

func (u *Uniswap) Name() string                     { return pool.VenueName + "/" + u.norm.Network() }
func (u *Uniswap) Family() domain.VenueFamily       { return domain.FamilyAMM }
func (u *Uniswap) Tokens() []domain.TokenDescriptor { return u.tokens }

// FetchAll quotes every token concurrently; the network gate bounds RPC
// parallelism. Individual token failures are dropped. An error is returned
// only when nothing was priced and at least one RPC call failed, so the
// driver can back off.
func (u *Uniswap) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	var (
		mu       sync.Mutex
		out      []domain.Observation
		firstErr error
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, tok := range u.tokens {
		g.Go(func() error {
			o, ok, err := u.norm.Quote(gctx, tok)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed++
				if firstErr == nil {
					firstErr = err
				}
				u.logger.DebugContext(gctx, "quote failed",
					slog.String("token", tok.Symbol),
					slog.String("error", err.Error()),
				)
			case ok:
				out = append(out, o)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(out) == 0 && firstErr != nil {
		return nil, fmt.Errorf("%s: %d of %d quotes failed: %w", u.Name(), failed, len(u.tokens), classifyRPC(firstErr))
	}
	return out, nil
}

// FetchOne quotes a single token.
func (u *Uniswap) FetchOne(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	o, ok, err := u.norm.Quote(ctx, token)
	if err != nil {
		return domain.Observation{}, false, classifyRPC(err)
	}
	return o, ok, nil
}

// classifyRPC maps JSON-RPC transport failures onto domain errors.
func classifyRPC(err error) error {
	var he rpc.HTTPError
	if errors.As(err, &he) && (he.StatusCode == http.StatusTooManyRequests || he.StatusCode == 418) {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrTimeout) {
		return err
	}
	return venue.ClassifyTransport(err)
}

var _ venue.Adapter = (*Uniswap)(nil)
