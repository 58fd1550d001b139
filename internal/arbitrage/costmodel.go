package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// CostModel is the execution cost configuration shared by the leveraged and
// full-cycle strategies. Rates are fractions (0.003 = 0.3%); gas and
// transfer costs are flat USD amounts.
type CostModel struct {
	DEXFeeRate          decimal.Decimal
	CEXFeeRate          decimal.Decimal
	FuturesFeeRate      decimal.Decimal
	MarginRate          decimal.Decimal
	FundingRateHourly   decimal.Decimal
	HedgeGas            decimal.Decimal
	GasPerTx            decimal.Decimal
	WeeklyRebalanceCost decimal.Decimal

	// CentralizedVenues are charged the centralized fee even when an
	// observation arrives without a centralized detail.
	CentralizedVenues map[string]bool
	// TokenTransfer and StableReturn are keyed by TransferKey(origin, destination)
	// over segments. Missing keys cost nothing.
	TokenTransfer      map[string]decimal.Decimal
	StableReturn       map[string]decimal.Decimal
	MinTransfer        map[string]decimal.Decimal
	DefaultMinTransfer decimal.Decimal
}

// TransferKey builds the transfer table key for moving funds from origin to
// destination.
func TransferKey(origin, destination string) string {
	return origin + "->" + destination
}

// FeeRate returns the trading fee charged for a leg on o's venue.
func (c CostModel) FeeRate(o domain.Observation) decimal.Decimal {
	if c.CentralizedVenues[o.Venue] {
		return c.CEXFeeRate
	}
	switch o.Family() {
	case domain.FamilyCentralized:
		return c.CEXFeeRate
	case domain.FamilyDerivative:
		return c.FuturesFeeRate
	default:
		return c.DEXFeeRate
	}
}

// TokenTransferCost is the cost of moving the bought token from origin to
// destination.
func (c CostModel) TokenTransferCost(origin, destination string) decimal.Decimal {
	return c.TokenTransfer[TransferKey(origin, destination)]
}

// StableReturnCost is the cost of returning stable-asset proceeds from
// origin to destination.
func (c CostModel) StableReturnCost(origin, destination string) decimal.Decimal {
	return c.StableReturn[TransferKey(origin, destination)]
}

// MinTransferFor returns the smallest transferable amount of token.
func (c CostModel) MinTransferFor(token string) decimal.Decimal {
	if v, ok := c.MinTransfer[token]; ok {
		return v
	}
	return c.DefaultMinTransfer
}

// DailyRebalanceCost amortizes the weekly rebalancing transfer over a day.
func (c CostModel) DailyRebalanceCost() decimal.Decimal {
	return c.WeeklyRebalanceCost.Div(decimal.NewFromInt(7))
}
