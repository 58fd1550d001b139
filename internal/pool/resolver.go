package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Resolver finds the pool pairing a token with a network's stable asset.
type Resolver struct {
	caller  ContractCaller
	factory common.Address
	stable  common.Address
	tiers   []uint32
}

// NewResolver creates a Resolver for one network. A nil or empty tiers slice
// uses FeeTiers.
func NewResolver(caller ContractCaller, factory, stable common.Address, tiers []uint32) *Resolver {
	if len(tiers) == 0 {
		tiers = FeeTiers
	}
	return &Resolver{caller: caller, factory: factory, stable: stable, tiers: tiers}
}

// Resolve tries each fee tier in order and returns the first non-zero pool.
// ok is false when no tier has a pool; err is set only when a factory call
// failed before any pool was found.
func (r *Resolver) Resolve(ctx context.Context, network, token string, tokenAddr common.Address) (entry domain.PoolCacheEntry, ok bool, err error) {
	for _, fee := range r.tiers {
		data, err := packGetPool(tokenAddr, r.stable, fee)
		if err != nil {
			return domain.PoolCacheEntry{}, false, err
		}
		out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.factory, Data: data}, nil)
		if err != nil {
			return domain.PoolCacheEntry{}, false, fmt.Errorf("pool: getPool %s/%s fee %d: %w", network, token, fee, err)
		}
		addr, err := unpackAddress(out)
		if err != nil || addr == (common.Address{}) {
			continue
		}
		return domain.PoolCacheEntry{
			Network:       network,
			Token:         token,
			PoolAddress:   addr,
			FeeTier:       fee,
			TokenIsToken0: IsToken0(tokenAddr, r.stable),
		}, true, nil
	}
	return domain.PoolCacheEntry{}, false, nil
}

// ReadSqrtPrice reads slot0().sqrtPriceX96 from a pool.
func ReadSqrtPrice(ctx context.Context, caller ContractCaller, poolAddr common.Address) (*big.Int, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &poolAddr, Data: append([]byte{}, slot0Selector...)}, nil)
	if err != nil {
		return nil, fmt.Errorf("pool: slot0 %s: %w", poolAddr.Hex(), err)
	}
	v, err := unpackSqrtPrice(out)
	if err != nil {
		return nil, fmt.Errorf("pool: slot0 %s: %w", poolAddr.Hex(), err)
	}
	return v, nil
}
