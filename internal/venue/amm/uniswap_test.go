package amm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/pool"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	usdc    = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	wbtc    = common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f")
	link    = common.HexToAddress("0xf97f4df75117a78c1A5a0DBb814Af92458539FB4")
	wbtcUSD = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

// stubChain has a WBTC pool at the 0.30% tier and no LINK pool.
type stubChain struct{ err error }

func (s stubChain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if *call.To == factory {
		token := common.BytesToAddress(call.Data[4:36])
		fee := new(big.Int).SetBytes(call.Data[68:100]).Uint64()
		if token == wbtc && fee == 3000 {
			return common.LeftPadBytes(wbtcUSD.Bytes(), 32), nil
		}
		return make([]byte, 32), nil
	}
	if *call.To == wbtcUSD {
		q96 := new(big.Int).Lsh(big.NewInt(1), 96)
		out := common.LeftPadBytes(new(big.Int).Mul(q96, big.NewInt(25)).Bytes(), 32)
		return append(out, make([]byte, 6*32)...), nil
	}
	return nil, errors.New("unexpected call")
}

func newAdapter(caller pool.ContractCaller) *Uniswap {
	chain := domain.VenueDescriptor{
		Network:        "arbitrum",
		StableAddress:  usdc,
		StableDecimals: 6,
		FactoryAddress: factory,
		Tokens:         map[string]common.Address{"WBTC": wbtc, "LINK": link},
	}
	tokens := []domain.TokenDescriptor{
		{Symbol: "WBTC", Decimals: 8},
		{Symbol: "LINK", Decimals: 18},
		{Symbol: "PEPE", Decimals: 18},
	}
	gate := throttle.NewGate("amm:arbitrum", 3, 0, nil, nil)
	norm := pool.NewNormalizer(chain, caller, pool.NewCache(nil, nil), nil, gate, nil)
	return NewUniswap(norm, chain, tokens, nil)
}

func TestUniswapFetchAll(t *testing.T) {
	u := newAdapter(stubChain{})
	if len(u.Tokens()) != 2 {
		t.Fatalf("tokens = %d, want 2 deployed", len(u.Tokens()))
	}
	if u.Name() != "uniswap_v3/arbitrum" {
		t.Fatalf("name = %q", u.Name())
	}
	got, err := u.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 || got[0].Token != "WBTC" || got[0].Price.String() != "62500" {
		t.Fatalf("got %+v", got)
	}
}

func TestUniswapRateLimited(t *testing.T) {
	u := newAdapter(stubChain{err: rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}})
	_, err := u.FetchAll(context.Background())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if _, _, err := u.FetchOne(context.Background(), domain.TokenDescriptor{Symbol: "WBTC", Decimals: 8}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("FetchOne err = %v", err)
	}
}
