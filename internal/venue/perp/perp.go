// Package perp implements perpetual-market venue adapters.
package perp

import (
	"log/slog"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the taker fee attached to derivative observations.
var DefaultFeeRate = decimal.RequireFromString("0.0002")

// instruments maps venue instrument names to catalogue tokens.
type instruments struct {
	tokens []domain.TokenDescriptor
	byName map[string]string
}

func newInstruments(venueName string, tokens []domain.TokenDescriptor) instruments {
	in := instruments{byName: make(map[string]string)}
	for _, t := range tokens {
		if sym, ok := t.SymbolOn(venueName); ok {
			in.tokens = append(in.tokens, t)
			in.byName[sym] = t.Symbol
		}
	}
	return in
}

func observation(logger *slog.Logger, venueName, token, raw string, fee decimal.Decimal, ts int64) (domain.Observation, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !domain.PriceInBounds(price) {
		logger.Debug("dropping mark", slog.String("token", token), slog.String("price", raw))
		return domain.Observation{}, false
	}
	return domain.Observation{
		Venue:     venueName,
		Segment:   domain.SegmentDerivative,
		Token:     token,
		Price:     price,
		Timestamp: ts,
		Detail:    domain.DerivativeQuote{FeeRate: fee},
	}, true
}

func now() int64 { return venue.Now().Unix() }
