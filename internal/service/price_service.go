package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// TokenQuotes is the cached cross-venue view of one token.
type TokenQuotes struct {
	Token     string          `json:"token"`
	Quotes    []QuoteView     `json:"quotes"`
	Cheapest  *domain.Leg     `json:"cheapest,omitempty"`
	Richest   *domain.Leg     `json:"richest,omitempty"`
	SpreadPct decimal.Decimal `json:"spread_pct"`
	Venues    int             `json:"venues"`
}

// QuoteView is the JSON shape of one observation.
type QuoteView struct {
	Venue     string           `json:"venue"`
	Segment   string           `json:"segment"`
	Family    string           `json:"family"`
	Token     string           `json:"token"`
	Price     decimal.Decimal  `json:"price"`
	Bid       *decimal.Decimal `json:"bid,omitempty"`
	Ask       *decimal.Decimal `json:"ask,omitempty"`
	FeeRate   *decimal.Decimal `json:"fee_rate,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// QuoteViews converts obs for JSON output.
func QuoteViews(obs []domain.Observation) []QuoteView {
	out := make([]QuoteView, 0, len(obs))
	for _, o := range obs {
		v := QuoteView{
			Venue:     o.Venue,
			Segment:   o.Segment,
			Family:    o.Family().String(),
			Token:     o.Token,
			Price:     o.Price,
			Timestamp: o.Timestamp,
		}
		if bid, ok := o.Bid(); ok {
			v.Bid = &bid
		}
		if ask, ok := o.Ask(); ok {
			v.Ask = &ask
		}
		if fee, ok := o.FeeRate(); ok {
			v.FeeRate = &fee
		}
		out = append(out, v)
	}
	return out
}

// PriceService answers latest-price queries from the price cache.
type PriceService struct {
	cache  domain.PriceCache
	logger *slog.Logger
}

// NewPriceService creates a PriceService.
func NewPriceService(cache domain.PriceCache, logger *slog.Logger) *PriceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceService{cache: cache, logger: logger.With(slog.String("component", "price_service"))}
}

// Latest returns the latest quote per venue for token together with the
// cheapest and richest venue. It returns domain.ErrNotFound when no venue
// has quoted the token recently.
func (s *PriceService) Latest(ctx context.Context, token string) (TokenQuotes, error) {
	obs, err := s.cache.Latest(ctx, token)
	if err != nil {
		return TokenQuotes{}, fmt.Errorf("price_service: latest %s: %w", token, err)
	}
	return summarize(token, obs), nil
}

func summarize(token string, obs []domain.Observation) TokenQuotes {
	q := TokenQuotes{Token: token, Quotes: QuoteViews(obs), Venues: len(obs)}
	if len(obs) == 0 {
		return q
	}
	lo, hi := obs[0], obs[0]
	for _, o := range obs[1:] {
		if o.Price.LessThan(lo.Price) {
			lo = o
		}
		if o.Price.GreaterThan(hi.Price) {
			hi = o
		}
	}
	cheap := domain.Leg{Venue: lo.Venue, Segment: lo.Segment, Price: lo.Price, Timestamp: lo.Timestamp}
	rich := domain.Leg{Venue: hi.Venue, Segment: hi.Segment, Price: hi.Price, Timestamp: hi.Timestamp}
	q.Cheapest, q.Richest = &cheap, &rich
	q.SpreadPct = hi.Price.Sub(lo.Price).Div(lo.Price).Mul(decimal.NewFromInt(100))
	return q
}
