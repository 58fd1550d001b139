// Package schedule selects non-overlapping trades from detected
// opportunities.
package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Scheduling algorithms.
const (
	AlgorithmGreedy  = "greedy"
	AlgorithmOptimal = "optimal"
)

// Scheduler packs opportunities into pairwise-disjoint execution intervals.
type Scheduler struct {
	algorithm string
	execution time.Duration
	logger    *slog.Logger
}

// New creates a scheduler. execution is the fixed time one trade occupies
// after its later leg.
func New(algorithm string, execution time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch algorithm {
	case "":
		algorithm = AlgorithmGreedy
	case AlgorithmGreedy, AlgorithmOptimal:
	default:
		return nil, fmt.Errorf("schedule: unknown algorithm %q", algorithm)
	}
	if execution < 0 {
		return nil, fmt.Errorf("schedule: negative execution time %s", execution)
	}
	return &Scheduler{
		algorithm: algorithm,
		execution: execution,
		logger:    logger.With(slog.String("component", "scheduler")),
	}, nil
}

// Algorithm returns the configured algorithm name.
func (s *Scheduler) Algorithm() string { return s.algorithm }

// Schedule selects trades with the configured algorithm. The result is
// ordered by start time and its intervals never overlap. Opportunities
// without a positive net profit are never scheduled.
func (s *Scheduler) Schedule(opps []domain.Opportunity) []domain.ScheduledTrade {
	var out []domain.ScheduledTrade
	if s.algorithm == AlgorithmOptimal {
		out = Optimal(opps, s.execution)
	} else {
		out = Greedy(opps, s.execution)
	}
	s.logger.Debug("schedule complete",
		slog.String("algorithm", s.algorithm),
		slog.Int("candidates", len(opps)),
		slog.Int("selected", len(out)),
		slog.String("total_profit", TotalProfit(out).StringFixed(2)),
	)
	return out
}

// Greedy sorts candidates by profit, highest first, and accepts each one
// whose interval is disjoint from everything already accepted. Rejections
// are final, so the total can fall short of Optimal.
func Greedy(opps []domain.Opportunity, execution time.Duration) []domain.ScheduledTrade {
	cands := candidates(opps, execution)
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Opportunity.NetProfit.GreaterThan(cands[j].Opportunity.NetProfit)
	})

	var accepted []domain.ScheduledTrade
	for _, c := range cands {
		overlaps := false
		for _, a := range accepted {
			if c.Overlaps(a) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}
	byStart(accepted)
	return accepted
}

// Optimal solves weighted interval scheduling over profit with dynamic
// programming on intervals sorted by end.
func Optimal(opps []domain.Opportunity, execution time.Duration) []domain.ScheduledTrade {
	cands := candidates(opps, execution)
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].End < cands[j].End })

	n := len(cands)
	// prev[j] is the number of candidates ending at or before cands[j].Start.
	prev := make([]int, n)
	for j, c := range cands {
		prev[j] = sort.Search(j, func(i int) bool { return cands[i].End > c.Start })
	}

	best := make([]decimal.Decimal, n+1)
	for j := 1; j <= n; j++ {
		take := cands[j-1].Opportunity.NetProfit.Add(best[prev[j-1]])
		best[j] = best[j-1]
		if take.GreaterThan(best[j]) {
			best[j] = take
		}
	}

	var out []domain.ScheduledTrade
	for j := n; j > 0; {
		take := cands[j-1].Opportunity.NetProfit.Add(best[prev[j-1]])
		if take.GreaterThan(best[j-1]) {
			out = append(out, cands[j-1])
			j = prev[j-1]
		} else {
			j--
		}
	}
	byStart(out)
	return out
}

// TotalProfit sums the net profit of trades.
func TotalProfit(trades []domain.ScheduledTrade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Opportunity.NetProfit)
	}
	return total
}

func candidates(opps []domain.Opportunity, execution time.Duration) []domain.ScheduledTrade {
	out := make([]domain.ScheduledTrade, 0, len(opps))
	for _, o := range opps {
		if !o.NetProfit.IsPositive() {
			continue
		}
		start, end := o.Interval(execution)
		out = append(out, domain.ScheduledTrade{Opportunity: o, Start: start, End: end})
	}
	return out
}

func byStart(trades []domain.ScheduledTrade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].Start != trades[j].Start {
			return trades[i].Start < trades[j].Start
		}
		return trades[i].End < trades[j].End
	})
}
