package arbitrage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amm(chain, token, price string, ts int64) domain.Observation {
	p := d(price)
	return domain.Observation{
		Venue: "uniswap_v3", Segment: chain, Token: token, Price: p, Timestamp: ts,
		Detail: domain.AMMQuote{Bid: p, Ask: p, FeeRate: d("0.003")},
	}
}

func cex(venue, token, price string, ts int64) domain.Observation {
	return domain.Observation{
		Venue: venue, Segment: domain.SegmentCentralized, Token: token, Price: d(price), Timestamp: ts,
		Detail: domain.CentralizedQuote{},
	}
}

func testCosts() CostModel {
	return CostModel{
		DEXFeeRate:          d("0.003"),
		CEXFeeRate:          d("0.001"),
		FuturesFeeRate:      d("0.0002"),
		MarginRate:          d("0.1"),
		FundingRateHourly:   d("0.0001"),
		HedgeGas:            d("3"),
		GasPerTx:            d("2"),
		WeeklyRebalanceCost: d("8"),
		TokenTransfer: map[string]decimal.Decimal{
			TransferKey("arbitrum", "optimism"):    d("12"),
			TransferKey("arbitrum", "centralized"): d("3"),
		},
		StableReturn: map[string]decimal.Decimal{
			TransferKey("optimism", "arbitrum"):    d("15"),
			TransferKey("centralized", "arbitrum"): d("8"),
		},
		MinTransfer:        map[string]decimal.Decimal{"WBTC": d("0.0001"), "HEAVY": d("100")},
		DefaultMinTransfer: d("0.1"),
	}
}

func TestSpreadReportsEveryPairOnce(t *testing.T) {
	s := NewSpread(SpreadConfig{
		WindowSeconds:  30,
		ThresholdPct:   d("0.05"),
		Investment:     d("1000"),
		TransactionFee: d("0.0025"),
	}, nil)
	series := []domain.Observation{
		cex("binance", "UNI", "100", 100),
		amm("arbitrum", "UNI", "100.06", 105),
		amm("base", "UNI", "103", 110),
	}

	got := s.Detect(context.Background(), "UNI", series)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(got), got)
	}
	keys := map[string]bool{}
	var found006 int
	for _, o := range got {
		if keys[o.Key] {
			t.Fatalf("duplicate key %s", o.Key)
		}
		keys[o.Key] = true
		if !o.Buy.Price.LessThan(o.Sell.Price) {
			t.Fatalf("buy %s not below sell %s", o.Buy.Price, o.Sell.Price)
		}
		if o.SpreadPct.Equal(d("0.06")) {
			found006++
		}
	}
	if found006 != 1 {
		t.Fatalf("0.06%% pair reported %d times", found006)
	}
	if !got[0].SpreadPct.Equal(d("0.06")) || !got[1].SpreadPct.Equal(d("3")) {
		t.Fatalf("unexpected order: %s %s", got[0].SpreadPct, got[1].SpreadPct)
	}
	// 0.06% is below the 0.5% round-trip fee; 3% nets 2.5% of 1000
	if got[0].NetProfit.IsPositive() || !got[1].NetProfit.Equal(d("25")) {
		t.Fatalf("net profits = %s, %s", got[0].NetProfit, got[1].NetProfit)
	}
}

func TestSpreadRespectsThresholdAndWindow(t *testing.T) {
	s := NewSpread(SpreadConfig{WindowSeconds: 30, ThresholdPct: d("0.05")}, nil)
	tests := []struct {
		name   string
		series []domain.Observation
		want   int
	}{
		{"below threshold", []domain.Observation{cex("binance", "X", "100", 1), cex("bybit", "X", "100.04", 2)}, 0},
		{"at threshold", []domain.Observation{cex("binance", "X", "100", 1), cex("bybit", "X", "100.05", 2)}, 1},
		{"outside window", []domain.Observation{cex("binance", "X", "100", 1), cex("bybit", "X", "110", 32)}, 0},
		{"window edge", []domain.Observation{cex("binance", "X", "100", 1), cex("bybit", "X", "110", 31)}, 1},
		{"same timestamp", []domain.Observation{cex("binance", "X", "100", 1), cex("bybit", "X", "101", 1), amm("base", "X", "102", 1)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Detect(context.Background(), "X", tt.series); len(got) != tt.want {
				t.Fatalf("got %d, want %d", len(got), tt.want)
			}
		})
	}
}

func newLeveraged() *Leveraged {
	return NewLeveraged(LeveragedConfig{
		WindowSeconds:        30,
		HedgeVenue:           "bybit",
		PairToleranceSeconds: 300,
		MinDiffPct:           d("0.05"),
		Investment:           d("1000"),
		Costs:                testCosts(),
	}, nil)
}

func TestLeveragedHedge(t *testing.T) {
	series := []domain.Observation{
		amm("arbitrum", "UNI", "97", 100),
		cex("bybit", "UNI", "100", 100),
		amm("base", "UNI", "98", 100),
	}
	got := newLeveraged().Detect(context.Background(), "UNI", series)
	if len(got) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(got))
	}
	o := got[0]
	if o.Buy.Segment != "arbitrum" || o.Buy.Venue != "uniswap_v3" || o.Sell.Venue != "bybit" {
		t.Fatalf("legs = %+v / %+v", o.Buy, o.Sell)
	}
	naive := pctDiff(d("97"), d("100")).Mul(d("1000")).Div(hundred)
	if !o.NetProfit.IsPositive() || !o.NetProfit.LessThan(naive) {
		t.Fatalf("profit %s, want in (0, %s)", o.NetProfit, naive)
	}
	if o.NetProfit.LessThan(d("17.2")) || o.NetProfit.GreaterThan(d("17.3")) {
		t.Fatalf("profit = %s, want about 17.26", o.NetProfit)
	}
	if !o.CapitalEfficiency.IsPositive() || !o.Costs.Margin.IsPositive() {
		t.Fatalf("efficiency %s margin %s", o.CapitalEfficiency, o.Costs.Margin)
	}
	if !o.Costs.Rebalance.Equal(d("8").Div(d("7"))) {
		t.Fatalf("rebalance = %s", o.Costs.Rebalance)
	}
}

func TestLeveragedRejects(t *testing.T) {
	tests := []struct {
		name   string
		series []domain.Observation
	}{
		// net is about -3.40 at 99/100; 1% does not cover fees, gas and rebalancing
		{"costs exceed spread", []domain.Observation{amm("arbitrum", "UNI", "99", 100), cex("bybit", "UNI", "100", 100)}},
		{"on-chain above hedge", []domain.Observation{amm("arbitrum", "UNI", "103", 100), cex("bybit", "UNI", "100", 100)}},
		{"no on-chain leg", []domain.Observation{cex("binance", "UNI", "90", 100), cex("bybit", "UNI", "100", 100)}},
		{"no hedge leg", []domain.Observation{amm("arbitrum", "UNI", "90", 100), cex("binance", "UNI", "100", 100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newLeveraged().Detect(context.Background(), "UNI", tt.series); len(got) != 0 {
				t.Fatalf("got %+v, want none", got)
			}
		})
	}
}

func newFullCycle() *FullCycle {
	return NewFullCycle(FullCycleConfig{
		WindowSeconds: 30,
		MinSpreadPct:  d("1"),
		Investment:    d("1000"),
		Costs:         testCosts(),
	}, nil)
}

func TestFullCycleSubtractsBothTransfers(t *testing.T) {
	series := []domain.Observation{
		amm("arbitrum", "UNI", "100", 100),
		amm("optimism", "UNI", "105", 110),
	}
	got := newFullCycle().Detect(context.Background(), "UNI", series)
	if len(got) != 1 {
		t.Fatalf("got %d cycles, want 1", len(got))
	}
	o := got[0]
	if !o.Costs.TokenTransfer.Equal(d("12")) || !o.Costs.StableReturn.Equal(d("15")) {
		t.Fatalf("transfer costs = %s / %s", o.Costs.TokenTransfer, o.Costs.StableReturn)
	}
	// tokens = 998 * 0.997 / 100; received = tokens*105*0.997 - 2; minus 27 and 1000
	if !o.NetProfit.Equal(d("12.6220311")) {
		t.Fatalf("profit = %s", o.NetProfit)
	}
	if o.Buy.Segment != "arbitrum" || o.Sell.Segment != "optimism" || o.Timestamp != 100 {
		t.Fatalf("cycle = %+v", o)
	}
}

func TestFullCycleRejects(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		series []domain.Observation
	}{
		{"2% spread cannot cover transfers", "UNI", []domain.Observation{amm("arbitrum", "UNI", "100", 100), amm("optimism", "UNI", "102", 110)}},
		{"spread at the 1% floor", "UNI", []domain.Observation{amm("arbitrum", "UNI", "100", 100), amm("optimism", "UNI", "101", 110)}},
		{"same venue", "UNI", []domain.Observation{amm("arbitrum", "UNI", "100", 100), amm("arbitrum", "UNI", "120", 110)}},
		{"below minimum transfer", "HEAVY", []domain.Observation{amm("arbitrum", "HEAVY", "100", 100), amm("optimism", "HEAVY", "150", 110)}},
		{"sell leg earlier than buy leg", "UNI", []domain.Observation{amm("optimism", "UNI", "150", 100), amm("arbitrum", "UNI", "100", 110)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newFullCycle().Detect(context.Background(), tt.token, tt.series); len(got) != 0 {
				t.Fatalf("got %+v, want none", got)
			}
		})
	}
}

func TestFullCycleCentralizedFee(t *testing.T) {
	series := []domain.Observation{
		amm("arbitrum", "WBTC", "60000", 100),
		cex("binance", "WBTC", "63000", 105),
	}
	got := newFullCycle().Detect(context.Background(), "WBTC", series)
	if len(got) != 1 {
		t.Fatalf("got %d cycles", len(got))
	}
	if !got[0].Costs.TokenTransfer.Equal(d("3")) || !got[0].Costs.StableReturn.Equal(d("8")) {
		t.Fatalf("costs = %+v", got[0].Costs)
	}
}

func TestDetectorDeterministic(t *testing.T) {
	clock := func() time.Time { return time.Unix(1_700_000_000, 0) }
	det := NewDetector(DetectorConfig{Strategy: newFullCycle(), Now: clock})
	obs := []domain.Observation{
		amm("optimism", "UNI", "105", 110),
		amm("arbitrum", "LINK", "10", 100),
		amm("arbitrum", "UNI", "100", 100),
		amm("optimism", "LINK", "11", 105),
	}
	first := det.Detect(context.Background(), obs)
	second := det.Detect(context.Background(), []domain.Observation{obs[3], obs[2], obs[1], obs[0]})
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("got %d and %d opportunities", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].ID == "" {
			t.Fatalf("ids differ: %s vs %s", first[i].ID, second[i].ID)
		}
		if !first[i].DetectedAt.Equal(clock()) {
			t.Fatalf("detected at %v", first[i].DetectedAt)
		}
	}
	if first[0].Token != "LINK" {
		t.Fatalf("order = %s, %s", first[0].Token, first[1].Token)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(newFullCycle())
	r.Register(newLeveraged())
	if got := r.List(); len(got) != 2 || got[0] != domain.StrategyComplete {
		t.Fatalf("list = %v", got)
	}
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if s, err := r.Get(domain.StrategyLeveraged); err != nil || s.Name() != domain.StrategyLeveraged {
		t.Fatalf("get = %v, %v", s, err)
	}

	r.Register(newFullCycle(), "full-cycle")
	for _, name := range []string{"Complete", " complete ", "full_cycle", "FULL-CYCLE"} {
		if s, err := r.Get(name); err != nil || s.Name() != domain.StrategyComplete {
			t.Errorf("get %q = %v, %v", name, s, err)
		}
	}
	if got := r.List(); len(got) != 2 {
		t.Fatalf("aliases must not be listed: %v", got)
	}
}
