package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy tags for detected opportunities.
const (
	StrategySpread    = "spread"
	StrategyLeveraged = "leveraged"
	StrategyComplete  = "complete"
)

// Leg identifies one side of an opportunity.
type Leg struct {
	Venue     string          `json:"venue"`
	Segment   string          `json:"segment"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// Platform is a human-readable venue label, e.g. "uniswap_v3/arbitrum".
func (l Leg) Platform() string {
	return l.Venue + "/" + l.Segment
}

// CostBreakdown holds the cost components that went into an opportunity's
// net profit. Unused fields stay zero for strategies that do not model them.
type CostBreakdown struct {
	TradingFees     decimal.Decimal `json:"trading_fees"`
	Gas             decimal.Decimal `json:"gas"`
	TokenTransfer   decimal.Decimal `json:"token_transfer"`
	StableReturn    decimal.Decimal `json:"stable_return"`
	Margin          decimal.Decimal `json:"margin"`
	Funding         decimal.Decimal `json:"funding"`
	Rebalance       decimal.Decimal `json:"rebalance"`
	RequiredCapital decimal.Decimal `json:"required_capital"`
}

// Total sums every cost component except margin and required capital,
// which are capital commitments rather than spend.
func (c CostBreakdown) Total() decimal.Decimal {
	return c.TradingFees.Add(c.Gas).Add(c.TokenTransfer).Add(c.StableReturn).
		Add(c.Funding).Add(c.Rebalance)
}

// Opportunity is a detected, cost-adjusted arbitrage candidate. Immutable
// once emitted by a strategy.
type Opportunity struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Timestamp int64           `json:"timestamp"`
	Strategy  string          `json:"strategy"`
	Buy       Leg             `json:"buy"`
	Sell      Leg             `json:"sell"`
	SpreadPct decimal.Decimal `json:"spread_pct"`
	Costs     CostBreakdown   `json:"costs"`
	NetProfit decimal.Decimal `json:"net_profit"`
	ProfitPct decimal.Decimal `json:"profit_pct"`
	// CapitalEfficiency is net profit over required capital, in percent.
	// Only the leveraged strategy sets it.
	CapitalEfficiency decimal.Decimal `json:"capital_efficiency"`
	// Key de-duplicates the same real-world pair discovered from different
	// window anchors.
	Key        string    `json:"key"`
	DetectedAt time.Time `json:"detected_at"`
}

// Interval returns the time span the opportunity occupies when executed,
// [min(buy, sell), max(buy, sell) + execution).
func (o Opportunity) Interval(execution time.Duration) (start, end int64) {
	start, end = o.Buy.Timestamp, o.Sell.Timestamp
	if start > end {
		start, end = end, start
	}
	return start, end + int64(execution/time.Second)
}

// ScheduledTrade is an opportunity accepted by the scheduler together with
// its occupied interval [Start, End).
type ScheduledTrade struct {
	Opportunity Opportunity `json:"opportunity"`
	Start       int64       `json:"start"`
	End         int64       `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (t ScheduledTrade) Overlaps(o ScheduledTrade) bool {
	return t.Start < o.End && t.End > o.Start
}
