package arbitrage

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// LeveragedConfig configures the on-chain long / derivatives short hedge.
type LeveragedConfig struct {
	WindowSeconds int64
	// HedgeVenue is the venue whose observations are shorted.
	HedgeVenue string
	// PairToleranceSeconds bounds the timestamp gap between the two legs.
	PairToleranceSeconds int64
	// MinDiffPct is the minimum raw price difference in percent.
	MinDiffPct decimal.Decimal
	// Investment is the notional committed on each side.
	Investment decimal.Decimal
	Costs      CostModel
}

// Leveraged buys spot on an AMM and opens an equal-notional short on the
// hedge venue, closing both at the mean of the entry prices. Only pairs where
// the AMM price is below the hedge price qualify.
type Leveraged struct {
	cfg    LeveragedConfig
	logger *slog.Logger
}

// NewLeveraged creates a leveraged hedge strategy.
func NewLeveraged(cfg LeveragedConfig, logger *slog.Logger) *Leveraged {
	if logger == nil {
		logger = slog.Default()
	}
	return &Leveraged{cfg: cfg, logger: logger.With(slog.String("arb_strategy", domain.StrategyLeveraged))}
}

// Name returns the strategy identifier.
func (l *Leveraged) Name() string { return domain.StrategyLeveraged }

// Detect emits the most profitable hedge for every window anchor.
func (l *Leveraged) Detect(ctx context.Context, token string, series []domain.Observation) []domain.Opportunity {
	if !l.cfg.Investment.IsPositive() {
		return nil
	}
	var out []domain.Opportunity
	forEachAnchor(series, func(t int64) {
		window := forwardWindow(series, t, l.cfg.WindowSeconds)
		if best, ok := l.best(token, window); ok {
			out = append(out, best)
		}
	})
	if len(out) > 0 {
		l.logger.DebugContext(ctx, "leveraged opportunities",
			slog.String("token", token),
			slog.Int("count", len(out)),
		)
	}
	return out
}

func (l *Leveraged) best(token string, window []domain.Observation) (domain.Opportunity, bool) {
	var (
		best  domain.Opportunity
		found bool
	)
	for _, hedge := range window {
		if hedge.Venue != l.cfg.HedgeVenue {
			continue
		}
		for _, spot := range window {
			if spot.Family() != domain.FamilyAMM {
				continue
			}
			gap := spot.Timestamp - hedge.Timestamp
			if gap < -l.cfg.PairToleranceSeconds || gap > l.cfg.PairToleranceSeconds {
				continue
			}
			// shorting the on-chain side is not supported
			if !spot.Price.IsPositive() || !spot.Price.LessThan(hedge.Price) {
				continue
			}
			diff := pctDiff(spot.Price, hedge.Price)
			if diff.LessThan(l.cfg.MinDiffPct) {
				continue
			}
			opp := l.evaluate(token, spot, hedge, diff)
			if opp.NetProfit.IsPositive() && (!found || opp.NetProfit.GreaterThan(best.NetProfit)) {
				best, found = opp, true
			}
		}
	}
	return best, found
}

// evaluate models the hedge round trip for one pair.
func (l *Leveraged) evaluate(token string, spot, hedge domain.Observation, diff decimal.Decimal) domain.Opportunity {
	var (
		c    = l.cfg.Costs
		inv  = l.cfg.Investment
		one  = decimal.NewFromInt(1)
		two  = decimal.NewFromInt(2)
		buy  = spot.Price
		sell = hedge.Price
	)

	dexFee := inv.Mul(c.DEXFeeRate)
	tokens := inv.Sub(dexFee).Sub(c.HedgeGas).Div(buy)

	position := tokens.Mul(sell)
	margin := position.Mul(c.MarginRate)
	openFee := position.Mul(c.FuturesFeeRate)
	required := inv.Add(margin).Add(openFee)

	convergence := buy.Add(sell).Div(two)
	spotProceeds := tokens.Mul(convergence).Mul(one.Sub(c.DEXFeeRate)).Sub(c.HedgeGas)
	dexSellFee := tokens.Mul(convergence).Mul(c.DEXFeeRate)

	futuresPnL := tokens.Mul(sell.Sub(convergence))
	closeFee := position.Mul(c.FuturesFeeRate)
	funding := position.Mul(c.FundingRateHourly)
	hedgeFinal := inv.Add(futuresPnL).Sub(closeFee).Sub(funding)

	rebalance := c.DailyRebalanceCost()
	committed := inv.Mul(two)
	profit := spotProceeds.Add(hedgeFinal).Sub(committed).Sub(rebalance)

	return domain.Opportunity{
		Token:     token,
		Timestamp: hedge.Timestamp,
		Strategy:  domain.StrategyLeveraged,
		Buy:       leg(spot),
		Sell:      leg(hedge),
		SpreadPct: diff,
		Costs: domain.CostBreakdown{
			TradingFees:     dexFee.Add(dexSellFee).Add(openFee).Add(closeFee),
			Gas:             c.HedgeGas.Mul(two),
			Margin:          margin,
			Funding:         funding,
			Rebalance:       rebalance,
			RequiredCapital: required,
		},
		NetProfit:         profit,
		ProfitPct:         profit.Div(committed).Mul(hundred),
		CapitalEfficiency: profit.Div(required).Mul(hundred),
		Key:               pairKey(token, spot, hedge),
	}
}

// forEachAnchor calls fn once per distinct timestamp in series, in order.
func forEachAnchor(series []domain.Observation, fn func(t int64)) {
	for i, o := range series {
		if i > 0 && series[i-1].Timestamp == o.Timestamp {
			continue
		}
		fn(o.Timestamp)
	}
}

var _ Strategy = (*Leveraged)(nil)
