// Package pool derives USD prices from concentrated-liquidity pool state:
// pool resolution through the factory, a resolve-once pool cache and the
// sqrtPriceX96 to price conversion.
package pool

import (
	"bytes"
	"math/big"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FeeTiers is the resolution order: 0.30%, 0.05%, 1.00%, 0.01%.
var FeeTiers = []uint32{3000, 500, 10000, 100}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// IsToken0 reports whether token sorts before stable, i.e. occupies the
// pool's first slot.
func IsToken0(token, stable common.Address) bool {
	return bytes.Compare(token.Bytes(), stable.Bytes()) < 0
}

// DerivePrice converts a pool's sqrtPriceX96 into USD per token, exactly.
//
// The pool ratio (sqrtPriceX96 / 2^96)^2 is always slot-1 units per slot-0
// unit. When the token is in slot 0 the ratio is already stable-per-token;
// otherwise it is inverted. Both cases are then rescaled by
// 10^(tokenDecimals - stableDecimals). It returns false for a zero or
// negative state value.
func DerivePrice(sqrtPriceX96 *big.Int, tokenIsToken0 bool, tokenDecimals, stableDecimals int) (*big.Rat, bool) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, false
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	ratio := new(big.Rat).SetFrac(sq, q192)
	if !tokenIsToken0 {
		ratio.Inv(ratio)
	}
	return ratio.Mul(ratio, pow10(tokenDecimals-stableDecimals)), true
}

// ToDecimal converts an exact price into a decimal, rejecting values outside
// the accepted USD range.
func ToDecimal(r *big.Rat) (decimal.Decimal, bool) {
	if r == nil || r.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(r.FloatString(24))
	if err != nil || !domain.PriceInBounds(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FeeRate converts a fee tier in hundredths of a basis point to a fraction.
func FeeRate(tier uint32) decimal.Decimal {
	return decimal.New(int64(tier), -6)
}

// Spread returns the synthetic bid and ask around price for a fee rate.
func Spread(price, fee decimal.Decimal) (bid, ask decimal.Decimal) {
	one := decimal.NewFromInt(1)
	return price.Mul(one.Sub(fee)), price.Mul(one.Add(fee))
}

func pow10(exp int) *big.Rat {
	if exp >= 0 {
		return new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	}
	return new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
}
