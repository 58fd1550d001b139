package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Potential summarizes what a set of spread candidates could have earned
// when executed without overlap.
type Potential struct {
	Investment      decimal.Decimal         `json:"investment"`
	Candidates      int                     `json:"candidates"`
	Profitable      int                     `json:"profitable"`
	Executable      int                     `json:"executable"`
	TotalProfit     decimal.Decimal         `json:"total_profit"`
	AverageProfit   decimal.Decimal         `json:"average_profit"`
	MaxProfit       decimal.Decimal         `json:"max_profit"`
	SpanHours       decimal.Decimal         `json:"span_hours"`
	HourlyProfit    decimal.Decimal         `json:"hourly_profit"`
	DailyProfit     decimal.Decimal         `json:"daily_profit"`
	AnnualReturnPct decimal.Decimal         `json:"annual_return_pct"`
	Trades          []domain.ScheduledTrade `json:"trades"`
}

// ProfitPotential keeps candidates whose spread beats the round-trip fee
// (2 * transactionFee), prices each at investment * net spread, and
// schedules them with s. Rates over time use the span of all candidate
// timestamps; they stay zero when the span is empty.
func ProfitPotential(cands []domain.Opportunity, investment, transactionFee decimal.Decimal, s *Scheduler) Potential {
	var (
		hundred = decimal.NewFromInt(100)
		feePct  = transactionFee.Mul(decimal.NewFromInt(2)).Mul(hundred)
		p       = Potential{Investment: investment, Candidates: len(cands)}
	)

	var (
		profitable []domain.Opportunity
		first      int64
		last       int64
	)
	for i, c := range cands {
		if i == 0 || c.Timestamp < first {
			first = c.Timestamp
		}
		if i == 0 || c.Timestamp > last {
			last = c.Timestamp
		}
		if !c.SpreadPct.GreaterThan(feePct) {
			continue
		}
		net := c.SpreadPct.Sub(feePct)
		c.ProfitPct = net
		c.NetProfit = investment.Mul(net).Div(hundred)
		profitable = append(profitable, c)
	}
	p.Profitable = len(profitable)
	if len(profitable) == 0 {
		return p
	}

	p.Trades = s.Schedule(profitable)
	p.Executable = len(p.Trades)
	if p.Executable == 0 {
		return p
	}
	p.TotalProfit = TotalProfit(p.Trades)
	p.AverageProfit = p.TotalProfit.Div(decimal.NewFromInt(int64(p.Executable)))
	for _, t := range p.Trades {
		if t.Opportunity.NetProfit.GreaterThan(p.MaxProfit) {
			p.MaxProfit = t.Opportunity.NetProfit
		}
	}

	if last > first {
		p.SpanHours = decimal.NewFromInt(last - first).Div(decimal.NewFromInt(3600))
		p.HourlyProfit = p.TotalProfit.Div(p.SpanHours)
		p.DailyProfit = p.HourlyProfit.Mul(decimal.NewFromInt(24))
		if investment.IsPositive() {
			p.AnnualReturnPct = p.DailyProfit.Mul(decimal.NewFromInt(365)).Div(investment).Mul(hundred)
		}
	}
	return p
}
