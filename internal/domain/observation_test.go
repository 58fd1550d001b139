package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPriceInBounds(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"0", false},
		{"-1", false},
		{"0.00000000009", false},
		{"0.0000000001", true},
		{"3500.12", true},
		{"10000000000", true},
		{"10000000001", false},
	}
	for _, tt := range tests {
		if got := PriceInBounds(decimal.RequireFromString(tt.price)); got != tt.want {
			t.Errorf("PriceInBounds(%s) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestObservationFamilyAccessors(t *testing.T) {
	amm := Observation{
		Venue: "uniswap_v3", Segment: "arbitrum", Token: "WETH",
		Price: decimal.NewFromInt(3000),
		Detail: AMMQuote{
			Bid:     decimal.RequireFromString("2991"),
			Ask:     decimal.RequireFromString("3009"),
			FeeRate: decimal.RequireFromString("0.003"),
		},
	}
	if amm.Family() != FamilyAMM {
		t.Fatalf("family = %v", amm.Family())
	}
	if bid, ok := amm.Bid(); !ok || !bid.Equal(decimal.NewFromInt(2991)) {
		t.Fatalf("bid = %v, %v", bid, ok)
	}
	if fee, ok := amm.FeeRate(); !ok || fee.String() != "0.003" {
		t.Fatalf("fee = %v, %v", fee, ok)
	}
	if amm.VenueKey() != "uniswap_v3@arbitrum" {
		t.Fatalf("venue key = %q", amm.VenueKey())
	}

	cex := Observation{Venue: "binance", Segment: SegmentCentralized, Timestamp: 1700000000}
	if cex.Family() != FamilyCentralized {
		t.Fatalf("nil detail should read as centralized, got %v", cex.Family())
	}
	if _, ok := cex.Ask(); ok {
		t.Fatal("centralized observation has no ask")
	}
	if _, ok := cex.FeeRate(); ok {
		t.Fatal("centralized observation has no fee rate")
	}
	if !cex.Time().Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("time = %v", cex.Time())
	}

	perp := Observation{Detail: DerivativeQuote{FeeRate: decimal.RequireFromString("0.0002")}}
	if perp.Family() != FamilyDerivative || perp.Family().String() != "derivative" {
		t.Fatalf("family = %v", perp.Family())
	}
}

func TestOpportunityInterval(t *testing.T) {
	o := Opportunity{
		Buy:  Leg{Timestamp: 1010},
		Sell: Leg{Timestamp: 1000},
	}
	start, end := o.Interval(30 * time.Second)
	if start != 1000 || end != 1040 {
		t.Fatalf("interval = [%d, %d)", start, end)
	}

	a := ScheduledTrade{Start: 0, End: 30}
	b := ScheduledTrade{Start: 30, End: 60}
	c := ScheduledTrade{Start: 29, End: 40}
	if a.Overlaps(b) {
		t.Fatal("touching intervals must not overlap")
	}
	if !a.Overlaps(c) || !c.Overlaps(a) {
		t.Fatal("expected overlap")
	}
}
