// Package venue defines the adapter contract every price source implements
// and the retry driver that turns adapter calls into best-effort collection.
package venue

import (
	"context"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Adapter fetches normalized observations from one venue.
//
// FetchAll is the preferred bulk path. FetchOne is the per-instrument
// fallback used when the bulk call keeps failing; it reports absence with
// ok=false rather than an error. Both drop malformed records silently and
// only return an error when the transport itself failed. Transport errors
// wrap domain.ErrRateLimited or domain.ErrTimeout when the venue throttled
// or the request timed out.
type Adapter interface {
	Name() string
	Family() domain.VenueFamily
	Tokens() []domain.TokenDescriptor
	FetchAll(ctx context.Context) ([]domain.Observation, error)
	FetchOne(ctx context.Context, token domain.TokenDescriptor) (obs domain.Observation, ok bool, err error)
}

// Sanitize drops observations that must never reach the aggregator: empty
// token, missing detail or a price outside the accepted USD range.
func Sanitize(obs []domain.Observation) []domain.Observation {
	out := obs[:0:0]
	for _, o := range obs {
		if o.Token == "" || o.Detail == nil || !domain.PriceInBounds(o.Price) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Now is the adapters' clock. Tests replace it.
var Now = func() time.Time { return time.Now() }
