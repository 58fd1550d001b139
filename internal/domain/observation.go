package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Segment tags used for non-chain observations. On-chain observations carry
// the chain name (e.g. "arbitrum") as their segment.
const (
	SegmentCentralized = "centralized"
	SegmentDerivative  = "derivative"
)

// VenueFamily identifies one of the three venue families.
type VenueFamily int

const (
	FamilyCentralized VenueFamily = iota
	FamilyAMM
	FamilyDerivative
)

// String returns the lowercase family name.
func (f VenueFamily) String() string {
	switch f {
	case FamilyCentralized:
		return "centralized"
	case FamilyAMM:
		return "amm"
	case FamilyDerivative:
		return "derivative"
	default:
		return "unknown"
	}
}

// VenueDetail is the closed set of family-specific payloads an observation
// can carry. Only the types in this file implement it.
type VenueDetail interface {
	Family() VenueFamily
	sealed()
}

// CentralizedQuote is a last-trade or ticker price from a spot exchange.
type CentralizedQuote struct{}

// AMMQuote is a pool-derived price with a synthetic bid/ask built from the
// pool's fee tier.
type AMMQuote struct {
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	FeeRate decimal.Decimal // fraction, 0.003 for a 0.30% pool
}

// DerivativeQuote is a perpetual mid or oracle price.
type DerivativeQuote struct {
	FeeRate decimal.Decimal
}

func (CentralizedQuote) Family() VenueFamily { return FamilyCentralized }
func (AMMQuote) Family() VenueFamily         { return FamilyAMM }
func (DerivativeQuote) Family() VenueFamily  { return FamilyDerivative }

func (CentralizedQuote) sealed() {}
func (AMMQuote) sealed()         {}
func (DerivativeQuote) sealed()  {}

// Observation is a single normalized USD price for a token at one venue.
// Observations are immutable once built by an adapter.
type Observation struct {
	Venue     string // source identifier, e.g. "binance", "uniswap_v3", "hyperliquid"
	Segment   string // "centralized", "derivative" or a chain name
	Token     string
	Price     decimal.Decimal
	Timestamp int64 // unix seconds
	Detail    VenueDetail
}

// Family reports the observation's venue family. Observations without a
// detail are treated as centralized.
func (o Observation) Family() VenueFamily {
	if o.Detail == nil {
		return FamilyCentralized
	}
	return o.Detail.Family()
}

// VenueKey identifies the venue instance an observation came from. Two
// observations with the same key need no transfer between them.
func (o Observation) VenueKey() string {
	return o.Venue + "@" + o.Segment
}

// Time returns the observation timestamp as a UTC time.
func (o Observation) Time() time.Time {
	return time.Unix(o.Timestamp, 0).UTC()
}

// Bid returns the AMM bid when present.
func (o Observation) Bid() (decimal.Decimal, bool) {
	if q, ok := o.Detail.(AMMQuote); ok {
		return q.Bid, true
	}
	return decimal.Decimal{}, false
}

// Ask returns the AMM ask when present.
func (o Observation) Ask() (decimal.Decimal, bool) {
	if q, ok := o.Detail.(AMMQuote); ok {
		return q.Ask, true
	}
	return decimal.Decimal{}, false
}

// FeeRate returns the family-specific fee rate when the family carries one.
func (o Observation) FeeRate() (decimal.Decimal, bool) {
	switch q := o.Detail.(type) {
	case AMMQuote:
		return q.FeeRate, true
	case DerivativeQuote:
		return q.FeeRate, true
	default:
		return decimal.Decimal{}, false
	}
}

// Price bounds applied before an observation enters the aggregator.
var (
	MinPriceUSD = decimal.New(1, -10)
	MaxPriceUSD = decimal.New(1, 10)
)

// PriceInBounds reports whether p is strictly positive and within
// [MinPriceUSD, MaxPriceUSD].
func PriceInBounds(p decimal.Decimal) bool {
	if !p.IsPositive() {
		return false
	}
	return p.GreaterThanOrEqual(MinPriceUSD) && p.LessThanOrEqual(MaxPriceUSD)
}
