package domain

import "github.com/ethereum/go-ethereum/common"

// TokenDescriptor describes a tracked token. Loaded once at startup.
type TokenDescriptor struct {
	Symbol   string
	Decimals int
	// Symbols maps a venue name to the venue's instrument symbol for this
	// token, e.g. "binance" -> "ETHUSDC", "dydx" -> "ETH-USD".
	Symbols map[string]string
}

// SymbolOn returns the token's instrument symbol on venue.
func (t TokenDescriptor) SymbolOn(venue string) (string, bool) {
	s, ok := t.Symbols[venue]
	return s, ok && s != ""
}

// VenueDescriptor describes an on-chain venue: one AMM deployment on one
// network.
type VenueDescriptor struct {
	Network        string
	RPCURL         string
	StableAddress  common.Address
	StableDecimals int
	FactoryAddress common.Address
	// Tokens maps token symbol to its contract address on this network.
	Tokens map[string]common.Address
	// DefaultFeeTier in hundredths of a basis point (3000 = 0.30%).
	DefaultFeeTier uint32
}

// TokenAddress returns the contract address of symbol on this network.
func (v VenueDescriptor) TokenAddress(symbol string) (common.Address, bool) {
	a, ok := v.Tokens[symbol]
	return a, ok && a != (common.Address{})
}

// PoolCacheEntry is the resolved pool for a (network, token) pair. Entries
// are written once and never overwritten.
type PoolCacheEntry struct {
	Network     string
	Token       string
	PoolAddress common.Address
	FeeTier     uint32
	// TokenIsToken0 is true when the token's address sorts before the stable
	// asset's address, i.e. the token occupies the pool's slot 0.
	TokenIsToken0 bool
}
