package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ContractCaller is the read-only slice of an RPC client the normalizer
// needs. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Method signatures read from the factory and the pool.
const (
	getPoolSignature = "getPool(address,address,uint24)"
	slot0Signature   = "slot0()"
)

var (
	getPoolSelector = selector(getPoolSignature)
	slot0Selector   = selector(slot0Signature)

	addressType = mustType("address")
	uint24Type  = mustType("uint24")
	uint160Type = mustType("uint160")

	getPoolArgs   = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint24Type}}
	getPoolReturn = abi.Arguments{{Type: addressType}}
	slot0Head     = abi.Arguments{{Type: uint160Type}}
)

// selector returns the 4-byte method id: the first bytes of the legacy
// Keccak-256 hash of the canonical signature.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("pool: abi type %s: %v", t, err))
	}
	return typ
}

// packGetPool builds calldata for factory.getPool(tokenA, tokenB, fee).
func packGetPool(tokenA, tokenB common.Address, fee uint32) ([]byte, error) {
	args, err := getPoolArgs.Pack(tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return nil, fmt.Errorf("pack getPool: %w", err)
	}
	return append(append([]byte{}, getPoolSelector...), args...), nil
}

func unpackAddress(data []byte) (common.Address, error) {
	vals, err := getPoolReturn.Unpack(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getPool: %w", err)
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack getPool: unexpected type %T", vals[0])
	}
	return addr, nil
}

// unpackSqrtPrice reads sqrtPriceX96, the first word of slot0's return
// tuple. The remaining fields are ignored.
func unpackSqrtPrice(data []byte) (*big.Int, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("unpack slot0: short return data (%d bytes)", len(data))
	}
	vals, err := slot0Head.Unpack(data[:32])
	if err != nil {
		return nil, fmt.Errorf("unpack slot0: %w", err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack slot0: unexpected type %T", vals[0])
	}
	return v, nil
}
