package arbitrage

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// FullCycleConfig configures the round-trip evaluator.
type FullCycleConfig struct {
	WindowSeconds int64
	// MinSpreadPct is the raw spread the sell side must exceed, in percent.
	MinSpreadPct decimal.Decimal
	Investment   decimal.Decimal
	Costs        CostModel
}

// FullCycle buys on one venue, moves the token to another, sells there and
// returns the stable proceeds to the origin.
type FullCycle struct {
	cfg    FullCycleConfig
	logger *slog.Logger
}

// NewFullCycle creates a full-cycle strategy.
func NewFullCycle(cfg FullCycleConfig, logger *slog.Logger) *FullCycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &FullCycle{cfg: cfg, logger: logger.With(slog.String("arb_strategy", domain.StrategyComplete))}
}

// Name returns the strategy identifier.
func (f *FullCycle) Name() string { return domain.StrategyComplete }

// Detect emits the most profitable cycle for every window anchor.
func (f *FullCycle) Detect(ctx context.Context, token string, series []domain.Observation) []domain.Opportunity {
	if !f.cfg.Investment.IsPositive() {
		return nil
	}
	var out []domain.Opportunity
	forEachAnchor(series, func(t int64) {
		window := forwardWindow(series, t, f.cfg.WindowSeconds)
		if best, ok := f.best(token, window); ok {
			out = append(out, best)
		}
	})
	if len(out) > 0 {
		f.logger.DebugContext(ctx, "full-cycle opportunities",
			slog.String("token", token),
			slog.Int("count", len(out)),
		)
	}
	return out
}

// best evaluates ordered pairs (i, j), i < j, buying at i and selling at j.
func (f *FullCycle) best(token string, window []domain.Observation) (domain.Opportunity, bool) {
	var (
		best  domain.Opportunity
		found bool
		floor = decimal.NewFromInt(1).Add(f.cfg.MinSpreadPct.Div(hundred))
	)
	for i := 0; i < len(window); i++ {
		for j := i + 1; j < len(window); j++ {
			buy, sell := window[i], window[j]
			if buy.VenueKey() == sell.VenueKey() || !buy.Price.IsPositive() {
				continue
			}
			if sell.Price.LessThanOrEqual(buy.Price.Mul(floor)) {
				continue
			}
			opp, ok := f.evaluate(token, buy, sell)
			if ok && opp.NetProfit.IsPositive() && (!found || opp.NetProfit.GreaterThan(best.NetProfit)) {
				best, found = opp, true
			}
		}
	}
	return best, found
}

// evaluate prices one cycle. It reports false when the bought amount is
// below the token's minimum transfer.
func (f *FullCycle) evaluate(token string, buy, sell domain.Observation) (domain.Opportunity, bool) {
	var (
		c   = f.cfg.Costs
		inv = f.cfg.Investment
		one = decimal.NewFromInt(1)
	)

	buyFee := c.FeeRate(buy)
	netInvestment := inv.Sub(c.GasPerTx)
	tokens := netInvestment.Mul(one.Sub(buyFee)).Div(buy.Price)
	if tokens.LessThan(c.MinTransferFor(token)) {
		return domain.Opportunity{}, false
	}

	// best never pairs a venue with itself, so both transfers always apply.
	outbound := c.TokenTransferCost(buy.Segment, sell.Segment)
	inbound := c.StableReturnCost(sell.Segment, buy.Segment)

	sellFee := c.FeeRate(sell)
	gross := tokens.Mul(sell.Price)
	received := gross.Mul(one.Sub(sellFee)).Sub(c.GasPerTx)
	final := received.Sub(outbound).Sub(inbound)
	profit := final.Sub(inv)

	return domain.Opportunity{
		Token:     token,
		Timestamp: buy.Timestamp,
		Strategy:  domain.StrategyComplete,
		Buy:       leg(buy),
		Sell:      leg(sell),
		SpreadPct: pctDiff(buy.Price, sell.Price),
		Costs: domain.CostBreakdown{
			TradingFees:     netInvestment.Mul(buyFee).Add(gross.Mul(sellFee)),
			Gas:             c.GasPerTx.Mul(decimal.NewFromInt(2)),
			TokenTransfer:   outbound,
			StableReturn:    inbound,
			RequiredCapital: inv,
		},
		NetProfit: profit,
		ProfitPct: profit.Div(inv).Mul(hundred),
		Key:       pairKey(token, buy, sell),
	}, true
}

var _ Strategy = (*FullCycle)(nil)
