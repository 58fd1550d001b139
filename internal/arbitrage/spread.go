package arbitrage

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// SpreadConfig configures the simple spread scan.
type SpreadConfig struct {
	// WindowSeconds bounds |ts_a - ts_b| for a pair to be compared.
	WindowSeconds int64
	// ThresholdPct is the minimum spread in percent, 0.05 = 0.05%.
	ThresholdPct decimal.Decimal
	// Investment and TransactionFee price the round trip: net spread is
	// spread - 2*fee*100, profit is investment * net / 100.
	Investment     decimal.Decimal
	TransactionFee decimal.Decimal
}

// Spread reports every pair of observations of a token within the window
// whose price spread reaches the threshold. Symmetric pairs found from
// either anchor are reported once.
type Spread struct {
	cfg    SpreadConfig
	logger *slog.Logger
}

// NewSpread creates a spread scan strategy.
func NewSpread(cfg SpreadConfig, logger *slog.Logger) *Spread {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spread{cfg: cfg, logger: logger.With(slog.String("arb_strategy", domain.StrategySpread))}
}

// Name returns the strategy identifier.
func (s *Spread) Name() string { return domain.StrategySpread }

// Detect scans series with every observation as an anchor.
func (s *Spread) Detect(ctx context.Context, token string, series []domain.Observation) []domain.Opportunity {
	var (
		out  []domain.Opportunity
		seen = make(map[string]struct{})
		fee  = s.cfg.TransactionFee.Mul(decimal.NewFromInt(2))
	)
	for i, anchor := range series {
		lo := sort.Search(len(series), func(k int) bool { return series[k].Timestamp >= anchor.Timestamp-s.cfg.WindowSeconds })
		for j := lo; j < len(series) && series[j].Timestamp <= anchor.Timestamp+s.cfg.WindowSeconds; j++ {
			if j == i {
				continue
			}
			other := series[j]
			buy, sell := anchor, other
			if other.Price.LessThan(anchor.Price) {
				buy, sell = other, anchor
			}
			if !buy.Price.IsPositive() {
				continue
			}
			spread := pctDiff(buy.Price, sell.Price)
			if spread.LessThan(s.cfg.ThresholdPct) {
				continue
			}
			key := pairKey(token, anchor, other)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			net := spread.Sub(fee.Mul(hundred))
			out = append(out, domain.Opportunity{
				Token:     token,
				Timestamp: anchor.Timestamp,
				Strategy:  domain.StrategySpread,
				Buy:       leg(buy),
				Sell:      leg(sell),
				SpreadPct: spread,
				Costs: domain.CostBreakdown{
					TradingFees:     s.cfg.Investment.Mul(fee),
					RequiredCapital: s.cfg.Investment,
				},
				NetProfit: s.cfg.Investment.Mul(net).Div(hundred),
				ProfitPct: net,
				Key:       key,
			})
		}
	}
	if len(out) > 0 {
		s.logger.DebugContext(ctx, "spread candidates",
			slog.String("token", token),
			slog.Int("count", len(out)),
		)
	}
	return out
}

var _ Strategy = (*Spread)(nil)
