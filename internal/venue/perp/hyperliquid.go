package perp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/shopspring/decimal"
)

const hyperliquidName = "hyperliquid"

// Hyperliquid reads perpetual mid prices from the public info endpoint.
type Hyperliquid struct {
	baseURL    string
	httpClient *http.Client
	gate       *throttle.Gate
	fee        decimal.Decimal
	inst       instruments
	logger     *slog.Logger
}

// NewHyperliquid creates a Hyperliquid adapter. baseURL is the API root,
// e.g. "https://api.hyperliquid.xyz".
func NewHyperliquid(baseURL string, httpClient *http.Client, tokens []domain.TokenDescriptor, fee decimal.Decimal, gate *throttle.Gate, logger *slog.Logger) *Hyperliquid {
	if httpClient == nil {
		httpClient = venue.NewHTTPClient(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hyperliquid{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		gate:       gate,
		fee:        fee,
		inst:       newInstruments(hyperliquidName, tokens),
		logger:     logger.With(slog.String("venue", hyperliquidName)),
	}
}

func (h *Hyperliquid) Name() string                     { return hyperliquidName }
func (h *Hyperliquid) Family() domain.VenueFamily       { return domain.FamilyDerivative }
func (h *Hyperliquid) Tokens() []domain.TokenDescriptor { return h.inst.tokens }

// FetchAll requests allMids and keeps the catalogued coins.
func (h *Hyperliquid) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	mids, err := h.allMids(ctx)
	if err != nil {
		return nil, err
	}
	ts := now()
	out := make([]domain.Observation, 0, len(h.inst.tokens))
	for coin, raw := range mids {
		token, ok := h.inst.byName[coin]
		if !ok {
			continue
		}
		if o, ok := observation(h.logger, hyperliquidName, token, raw, h.fee, ts); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// FetchOne has no per-coin endpoint to call, so it reads allMids and picks
// one coin.
func (h *Hyperliquid) FetchOne(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	coin, ok := token.SymbolOn(hyperliquidName)
	if !ok {
		return domain.Observation{}, false, nil
	}
	mids, err := h.allMids(ctx)
	if err != nil {
		return domain.Observation{}, false, err
	}
	raw, ok := mids[coin]
	if !ok {
		return domain.Observation{}, false, nil
	}
	o, ok := observation(h.logger, hyperliquidName, token.Symbol, raw, h.fee, now())
	return o, ok, nil
}

func (h *Hyperliquid) allMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string
	err := h.gate.Do(ctx, func(ctx context.Context) error {
		return venue.DoJSON(ctx, h.httpClient, h.baseURL+"/info", map[string]string{"type": "allMids"}, &mids)
	})
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: all mids: %w", err)
	}
	return mids, nil
}

var _ venue.Adapter = (*Hyperliquid)(nil)
