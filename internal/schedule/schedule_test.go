package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

func opp(key string, profit string, buyTS, sellTS int64) domain.Opportunity {
	return domain.Opportunity{
		Key:       key,
		Timestamp: buyTS,
		Buy:       domain.Leg{Timestamp: buyTS},
		Sell:      domain.Leg{Timestamp: sellTS},
		NetProfit: decimal.RequireFromString(profit),
	}
}

func keys(trades []domain.ScheduledTrade) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.Opportunity.Key
	}
	return out
}

func assertDisjoint(t *testing.T, trades []domain.ScheduledTrade) {
	t.Helper()
	for i := range trades {
		for j := i + 1; j < len(trades); j++ {
			if trades[i].Overlaps(trades[j]) {
				t.Fatalf("%s [%d,%d) overlaps %s [%d,%d)",
					trades[i].Opportunity.Key, trades[i].Start, trades[i].End,
					trades[j].Opportunity.Key, trades[j].Start, trades[j].End)
			}
		}
	}
}

// big spans both smaller trades, which are disjoint from each other.
func crossing() []domain.Opportunity {
	return []domain.Opportunity{
		opp("small-a", "40", 0, 10),
		opp("big", "50", 5, 60),
		opp("small-b", "30", 50, 80),
	}
}

func TestGreedyPrefersHighestProfit(t *testing.T) {
	got := Greedy(crossing(), 30*time.Second)
	if len(got) != 1 || got[0].Opportunity.Key != "big" {
		t.Fatalf("got %v, want [big]", keys(got))
	}
	if got[0].Start != 5 || got[0].End != 90 {
		t.Fatalf("interval = [%d,%d)", got[0].Start, got[0].End)
	}
}

func TestOptimalMaximizesTotal(t *testing.T) {
	got := Optimal(crossing(), 30*time.Second)
	if len(got) != 2 || got[0].Opportunity.Key != "small-a" || got[1].Opportunity.Key != "small-b" {
		t.Fatalf("got %v, want [small-a small-b]", keys(got))
	}
	if !TotalProfit(got).Equal(decimal.NewFromInt(70)) {
		t.Fatalf("total = %s", TotalProfit(got))
	}
}

func TestScheduleIntervalsDisjoint(t *testing.T) {
	var opps []domain.Opportunity
	for i := int64(0); i < 40; i++ {
		buy := (i * 37) % 200
		sell := buy + (i*13)%45
		if i%3 == 0 {
			buy, sell = sell, buy
		}
		opps = append(opps, opp(string(rune('A'+i)), decimal.NewFromInt((i*7)%23+1).String(), buy, sell))
	}
	for _, alg := range []string{AlgorithmGreedy, AlgorithmOptimal} {
		t.Run(alg, func(t *testing.T) {
			s, err := New(alg, 30*time.Second, nil)
			if err != nil {
				t.Fatal(err)
			}
			got := s.Schedule(opps)
			if len(got) == 0 {
				t.Fatal("nothing scheduled")
			}
			assertDisjoint(t, got)
		})
	}
	if TotalProfit(Optimal(opps, 30*time.Second)).LessThan(TotalProfit(Greedy(opps, 30*time.Second))) {
		t.Fatal("optimal total below greedy total")
	}
}

func TestScheduleEdges(t *testing.T) {
	// back-to-back half-open intervals do not overlap
	touching := []domain.Opportunity{opp("a", "1", 0, 10), opp("b", "1", 40, 50)}
	if got := Greedy(touching, 30*time.Second); len(got) != 2 {
		t.Fatalf("touching: got %v", keys(got))
	}
	losing := []domain.Opportunity{opp("loss", "-5", 0, 1), opp("zero", "0", 100, 101)}
	if got := Greedy(losing, time.Second); len(got) != 0 {
		t.Fatalf("losing: got %v", keys(got))
	}
	if got := Optimal(nil, time.Second); got != nil {
		t.Fatalf("empty: got %v", keys(got))
	}
	if _, err := New("random", time.Second, nil); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	s, err := New("", time.Second, nil)
	if err != nil || s.Algorithm() != AlgorithmGreedy {
		t.Fatalf("default algorithm = %v, %v", s, err)
	}
}

func TestProfitPotential(t *testing.T) {
	spread := func(key, pct string, ts int64) domain.Opportunity {
		o := opp(key, "0", ts, ts)
		o.SpreadPct = decimal.RequireFromString(pct)
		return o
	}
	cands := []domain.Opportunity{
		spread("thin", "0.3", 0),    // below the 0.5% round trip
		spread("a", "1.5", 100),     // net 1.0 -> 10
		spread("b", "2.5", 110),     // net 2.0 -> 20, overlaps a
		spread("c", "0.75", 3600),   // net 0.25 -> 2.5
		spread("edge", "0.5", 7200), // equal to the fee, dropped
	}
	s, _ := New(AlgorithmGreedy, 30*time.Second, nil)
	p := ProfitPotential(cands, decimal.NewFromInt(1000), decimal.RequireFromString("0.0025"), s)

	if p.Candidates != 5 || p.Profitable != 3 || p.Executable != 2 {
		t.Fatalf("counts = %d/%d/%d", p.Candidates, p.Profitable, p.Executable)
	}
	if !p.TotalProfit.Equal(decimal.RequireFromString("22.5")) || !p.MaxProfit.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total %s max %s", p.TotalProfit, p.MaxProfit)
	}
	if !p.SpanHours.Equal(decimal.NewFromInt(2)) || !p.HourlyProfit.Equal(decimal.RequireFromString("11.25")) {
		t.Fatalf("span %s hourly %s", p.SpanHours, p.HourlyProfit)
	}
	if !p.DailyProfit.Equal(decimal.NewFromInt(270)) || !p.AnnualReturnPct.Equal(decimal.NewFromInt(9855)) {
		t.Fatalf("daily %s annual %s", p.DailyProfit, p.AnnualReturnPct)
	}
}
