package pool

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/ethereum/go-ethereum"
)

// VenueName tags every observation the normalizer produces.
const VenueName = "uniswap_v3"

// Normalizer turns pool state on one network into USD observations.
type Normalizer struct {
	chain    domain.VenueDescriptor
	caller   ContractCaller
	resolver *Resolver
	cache    *Cache
	gate     *throttle.Gate
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer for chain. Every RPC call goes through
// gate.
func NewNormalizer(chain domain.VenueDescriptor, caller ContractCaller, cache *Cache, tiers []uint32, gate *throttle.Gate, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		chain:    chain,
		caller:   caller,
		resolver: NewResolver(&gatedCaller{caller: caller, gate: gate}, chain.FactoryAddress, chain.StableAddress, tiers),
		cache:    cache,
		gate:     gate,
		logger:   logger.With(slog.String("venue", VenueName), slog.String("network", chain.Network)),
	}
}

// Network returns the normalizer's network name.
func (n *Normalizer) Network() string { return n.chain.Network }

// Quote prices token on this network. It reports ok=false when the token is
// not deployed here, no pool exists, or the derived price is implausible.
// err is set only for RPC failures.
func (n *Normalizer) Quote(ctx context.Context, token domain.TokenDescriptor) (domain.Observation, bool, error) {
	addr, ok := n.chain.TokenAddress(token.Symbol)
	if !ok {
		return domain.Observation{}, false, nil
	}

	entry, ok, err := n.cache.Get(ctx, n.chain.Network, token.Symbol, func(ctx context.Context) (domain.PoolCacheEntry, bool, error) {
		return n.resolver.Resolve(ctx, n.chain.Network, token.Symbol, addr)
	})
	if err != nil || !ok {
		return domain.Observation{}, false, err
	}

	var sqrtPrice *big.Int
	err = n.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		sqrtPrice, err = ReadSqrtPrice(ctx, n.caller, entry.PoolAddress)
		return err
	})
	if err != nil {
		return domain.Observation{}, false, err
	}

	exact, ok := DerivePrice(sqrtPrice, entry.TokenIsToken0, token.Decimals, n.chain.StableDecimals)
	if !ok {
		return domain.Observation{}, false, nil
	}
	price, ok := ToDecimal(exact)
	if !ok {
		n.logger.DebugContext(ctx, "derived price out of bounds",
			slog.String("token", token.Symbol),
			slog.String("raw", exact.FloatString(12)),
		)
		return domain.Observation{}, false, nil
	}

	fee := FeeRate(entry.FeeTier)
	bid, ask := Spread(price, fee)
	return domain.Observation{
		Venue:     VenueName,
		Segment:   n.chain.Network,
		Token:     token.Symbol,
		Price:     price,
		Timestamp: venue.Now().Unix(),
		Detail:    domain.AMMQuote{Bid: bid, Ask: ask, FeeRate: fee},
	}, true, nil
}

// gatedCaller routes factory lookups through the network's gate.
type gatedCaller struct {
	caller ContractCaller
	gate   *throttle.Gate
}

func (g *gatedCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := g.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.caller.CallContract(ctx, call, blockNumber)
		return err
	})
	return out, err
}
