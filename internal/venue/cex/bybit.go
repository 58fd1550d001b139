package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	bybit "github.com/bybit-exchange/bybit.go.api"
	"github.com/shopspring/decimal"
)

const bybitName = "bybit"

// Bybit return codes for request-rate throttling.
const (
	bybitTooManyVisits = 10006
	bybitIPRateLimit   = 10018
)

// Bybit reads spot last prices from the v5 market tickers endpoint.
type Bybit struct {
	client   *bybit.Client
	gate     *throttle.Gate
	tokens   []domain.TokenDescriptor
	bySymbol map[string]string
	logger   *slog.Logger
}

type bybitTickers struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// NewBybit creates a Bybit adapter for the tokens that carry a "bybit"
// symbol mapping.
func NewBybit(baseURL string, httpClient *http.Client, tokens []domain.TokenDescriptor, gate *throttle.Gate, logger *slog.Logger) *Bybit {
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(baseURL))
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bybit{
		client:   client,
		gate:     gate,
		bySymbol: make(map[string]string),
		logger:   logger.With(slog.String("venue", bybitName)),
	}
	for _, t := range tokens {
		if sym, ok := t.SymbolOn(bybitName); ok {
			b.tokens = append(b.tokens, t)
			b.bySymbol[sym] = t.Symbol
		}
	}
	return b
}

func (b *Bybit) Name() string                     { return bybitName }
func (b *Bybit) Family() domain.VenueFamily       { return domain.FamilyCentralized }
func (b *Bybit) Tokens() []domain.TokenDescriptor { return b.tokens }

// FetchAll lists every spot ticker and keeps the mapped symbols.
func (b *Bybit) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	tickers, err := b.tickers(ctx, map[string]interface{}{"category": "spot"})
	if err != nil {
		return nil, fmt.Errorf("bybit: tickers: %w", err)
	}

	ts := venue.Now().Unix()
	out := make([]domain.Observation, 0, len(b.tokens))
	for _, t := range tickers.List {
		token, ok := b.bySymbol[t.Symbol]
		if !ok {
			continue
		}
		if o, ok := b.observation(token, t.LastPrice, ts); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// FetchOne asks for a single spot symbol.
func (b *Bybit) FetchOne(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	sym, ok := token.SymbolOn(bybitName)
	if !ok {
		return domain.Observation{}, false, nil
	}
	tickers, err := b.tickers(ctx, map[string]interface{}{"category": "spot", "symbol": sym})
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("bybit: ticker %s: %w", sym, err)
	}
	if len(tickers.List) == 0 {
		return domain.Observation{}, false, nil
	}
	o, ok := b.observation(token.Symbol, tickers.List[0].LastPrice, venue.Now().Unix())
	return o, ok, nil
}

func (b *Bybit) tickers(ctx context.Context, params map[string]interface{}) (bybitTickers, error) {
	var resp *bybit.ServerResponse
	err := b.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		return err
	})
	if err != nil {
		return bybitTickers{}, venue.ClassifyTransport(err)
	}
	if resp == nil {
		return bybitTickers{}, fmt.Errorf("empty response")
	}
	switch resp.RetCode {
	case 0:
	case bybitTooManyVisits, bybitIPRateLimit:
		return bybitTickers{}, fmt.Errorf("%w: %s", domain.ErrRateLimited, resp.RetMsg)
	default:
		return bybitTickers{}, fmt.Errorf("retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return bybitTickers{}, fmt.Errorf("marshal result: %w", err)
	}
	var out bybitTickers
	if err := json.Unmarshal(payload, &out); err != nil {
		return bybitTickers{}, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func (b *Bybit) observation(token, raw string, ts int64) (domain.Observation, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !domain.PriceInBounds(price) {
		b.logger.Debug("dropping ticker", slog.String("token", token), slog.String("price", raw))
		return domain.Observation{}, false
	}
	return domain.Observation{
		Venue:     bybitName,
		Segment:   domain.SegmentCentralized,
		Token:     token,
		Price:     price,
		Timestamp: ts,
		Detail:    domain.CentralizedQuote{},
	}, true
}

var _ venue.Adapter = (*Bybit)(nil)
