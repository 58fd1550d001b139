package perp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/shopspring/decimal"
)

const dydxName = "dydx"

// DYDX reads oracle prices from the dYdX v4 indexer.
type DYDX struct {
	baseURL    string
	httpClient *http.Client
	gate       *throttle.Gate
	fee        decimal.Decimal
	inst       instruments
	logger     *slog.Logger
}

type perpetualMarkets struct {
	Markets map[string]struct {
		Ticker      string `json:"ticker"`
		Status      string `json:"status"`
		OraclePrice string `json:"oraclePrice"`
	} `json:"markets"`
}

// NewDYDX creates a dYdX adapter. baseURL is the indexer root, e.g.
// "https://indexer.dydx.trade".
func NewDYDX(baseURL string, httpClient *http.Client, tokens []domain.TokenDescriptor, fee decimal.Decimal, gate *throttle.Gate, logger *slog.Logger) *DYDX {
	if httpClient == nil {
		httpClient = venue.NewHTTPClient(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DYDX{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		gate:       gate,
		fee:        fee,
		inst:       newInstruments(dydxName, tokens),
		logger:     logger.With(slog.String("venue", dydxName)),
	}
}

func (d *DYDX) Name() string                     { return dydxName }
func (d *DYDX) Family() domain.VenueFamily       { return domain.FamilyDerivative }
func (d *DYDX) Tokens() []domain.TokenDescriptor { return d.inst.tokens }

// FetchAll lists every perpetual market in one request.
func (d *DYDX) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	pm, err := d.markets(ctx, "")
	if err != nil {
		return nil, err
	}
	ts := now()
	out := make([]domain.Observation, 0, len(d.inst.tokens))
	for ticker, m := range pm.Markets {
		token, ok := d.inst.byName[ticker]
		if !ok || m.OraclePrice == "" {
			continue
		}
		if o, ok := observation(d.logger, dydxName, token, m.OraclePrice, d.fee, ts); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// FetchOne asks the indexer for a single ticker.
func (d *DYDX) FetchOne(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	ticker, ok := token.SymbolOn(dydxName)
	if !ok {
		return domain.Observation{}, false, nil
	}
	pm, err := d.markets(ctx, ticker)
	if err != nil {
		return domain.Observation{}, false, err
	}
	m, ok := pm.Markets[ticker]
	if !ok || m.OraclePrice == "" {
		return domain.Observation{}, false, nil
	}
	o, ok := observation(d.logger, dydxName, token.Symbol, m.OraclePrice, d.fee, now())
	return o, ok, nil
}

func (d *DYDX) markets(ctx context.Context, ticker string) (perpetualMarkets, error) {
	u := d.baseURL + "/v4/perpetualMarkets"
	if ticker != "" {
		u += "?" + url.Values{"ticker": {ticker}}.Encode()
	}
	var pm perpetualMarkets
	err := d.gate.Do(ctx, func(ctx context.Context) error {
		return venue.DoJSON(ctx, d.httpClient, u, nil, &pm)
	})
	if err != nil {
		return perpetualMarkets{}, fmt.Errorf("dydx: perpetual markets: %w", err)
	}
	return pm, nil
}

var _ venue.Adapter = (*DYDX)(nil)
