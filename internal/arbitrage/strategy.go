// Package arbitrage searches windows of price observations for cross-venue
// arbitrage opportunities. Each strategy is a pure function of the
// observations it is given and its injected configuration.
package arbitrage

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Strategy searches one token's observation series. The series is sorted by
// timestamp and every element carries the same token.
type Strategy interface {
	Name() string
	Detect(ctx context.Context, token string, series []domain.Observation) []domain.Opportunity
}

var hundred = decimal.NewFromInt(100)

// forwardWindow returns series[lo:hi] holding every observation with a
// timestamp in [t, t+window].
func forwardWindow(series []domain.Observation, t, window int64) []domain.Observation {
	lo := sort.Search(len(series), func(i int) bool { return series[i].Timestamp >= t })
	hi := sort.Search(len(series), func(i int) bool { return series[i].Timestamp > t+window })
	return series[lo:hi]
}

// pctDiff returns (high-low)/low*100.
func pctDiff(low, high decimal.Decimal) decimal.Decimal {
	return high.Sub(low).Div(low).Mul(hundred)
}

// pairKey identifies an unordered observation pair independent of which side
// anchored the search.
func pairKey(token string, a, b domain.Observation) string {
	if b.Timestamp < a.Timestamp || (b.Timestamp == a.Timestamp && b.VenueKey() < a.VenueKey()) {
		a, b = b, a
	}
	return fmt.Sprintf("%s_%d_%d_%s_%s", token, a.Timestamp, b.Timestamp, a.VenueKey(), b.VenueKey())
}

func leg(o domain.Observation) domain.Leg {
	return domain.Leg{Venue: o.Venue, Segment: o.Segment, Price: o.Price, Timestamp: o.Timestamp}
}
