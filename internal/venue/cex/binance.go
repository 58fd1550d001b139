// Package cex implements spot-exchange venue adapters.
package cex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/shopspring/decimal"
)

const binanceName = "binance"

// Binance error codes that signal request-weight throttling or an unknown
// instrument.
const (
	binanceTooManyRequests = -1003
	binanceTooManyOrders   = -1015
	binanceInvalidSymbol   = -1121
)

// Binance reads last-trade prices from the Binance spot ticker endpoint.
type Binance struct {
	client   *binance.Client
	gate     *throttle.Gate
	tokens   []domain.TokenDescriptor
	bySymbol map[string]string
	logger   *slog.Logger
}

// NewBinance creates a Binance adapter for the tokens that carry a
// "binance" symbol mapping.
func NewBinance(baseURL string, httpClient *http.Client, tokens []domain.TokenDescriptor, gate *throttle.Gate, logger *slog.Logger) *Binance {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binance{
		client:   client,
		gate:     gate,
		bySymbol: make(map[string]string),
		logger:   logger.With(slog.String("venue", binanceName)),
	}
	for _, t := range tokens {
		if sym, ok := t.SymbolOn(binanceName); ok {
			b.tokens = append(b.tokens, t)
			b.bySymbol[sym] = t.Symbol
		}
	}
	return b
}

func (b *Binance) Name() string                     { return binanceName }
func (b *Binance) Family() domain.VenueFamily       { return domain.FamilyCentralized }
func (b *Binance) Tokens() []domain.TokenDescriptor { return b.tokens }

// FetchAll pulls the full ticker list in one request and keeps the mapped
// symbols.
func (b *Binance) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	var prices []*binance.SymbolPrice
	err := b.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		prices, err = b.client.NewListPricesService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance: list prices: %w", classifyBinance(err))
	}

	ts := venue.Now().Unix()
	out := make([]domain.Observation, 0, len(b.tokens))
	for _, p := range prices {
		if p == nil {
			continue
		}
		token, ok := b.bySymbol[p.Symbol]
		if !ok {
			continue
		}
		if o, ok := b.observation(token, p.Price, ts); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// FetchOne asks for a single symbol.
func (b *Binance) FetchOne(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	sym, ok := token.SymbolOn(binanceName)
	if !ok {
		return domain.Observation{}, false, nil
	}

	var prices []*binance.SymbolPrice
	err := b.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(sym).Do(ctx)
		return err
	})
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
			return domain.Observation{}, false, nil
		}
		return domain.Observation{}, false, fmt.Errorf("binance: price %s: %w", sym, classifyBinance(err))
	}

	for _, p := range prices {
		if p != nil && p.Symbol == sym {
			o, ok := b.observation(token.Symbol, p.Price, venue.Now().Unix())
			return o, ok, nil
		}
	}
	return domain.Observation{}, false, nil
}

func (b *Binance) observation(token, raw string, ts int64) (domain.Observation, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !domain.PriceInBounds(price) {
		b.logger.Debug("dropping ticker", slog.String("token", token), slog.String("price", raw))
		return domain.Observation{}, false
	}
	return domain.Observation{
		Venue:     binanceName,
		Segment:   domain.SegmentCentralized,
		Token:     token,
		Price:     price,
		Timestamp: ts,
		Detail:    domain.CentralizedQuote{},
	}, true
}

func classifyBinance(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case binanceTooManyRequests, binanceTooManyOrders:
			return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
		}
		return err
	}
	return venue.ClassifyTransport(err)
}

var _ venue.Adapter = (*Binance)(nil)
