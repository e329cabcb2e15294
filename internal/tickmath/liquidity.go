package tickmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Q96 is the Q64.96 fixed-point unit.
var Q96 = uint256.MustFromHex("0x1000000000000000000000000")

// Liquidity errors.
var (
	ErrEmptyRange        = errors.New("tick range is empty")
	ErrLiquidityOverflow = errors.New("liquidity exceeds 256 bits")
)

// LiquidityForAmount converts a tick range and a single-sided token amount
// into an unsigned liquidity magnitude:
//
//	token0: L = amount * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA)
//	token1: L = amount * Q96 / (sqrtB - sqrtA)
//
// where sqrtA < sqrtB are the range's sqrt prices. The bounds may be given
// in either order.
func LiquidityForAmount(tickLower, tickUpper int32, amount *uint256.Int, amountIsToken0 bool) (*uint256.Int, error) {
	if tickLower == tickUpper {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrEmptyRange, tickLower, tickUpper)
	}
	sqrtA, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, err
	}
	sqrtB, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, err
	}
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)

	if amount == nil {
		amount = new(uint256.Int)
	}
	liq := new(uint256.Int)
	if amountIsToken0 {
		intermediate, overflow := new(uint256.Int).MulDivOverflow(sqrtA, sqrtB, Q96)
		if overflow {
			return nil, ErrLiquidityOverflow
		}
		if _, overflow = liq.MulDivOverflow(amount, intermediate, diff); overflow {
			return nil, ErrLiquidityOverflow
		}
	} else {
		if _, overflow := liq.MulDivOverflow(amount, Q96, diff); overflow {
			return nil, ErrLiquidityOverflow
		}
	}
	return liq, nil
}

// ComputeLiquidity is LiquidityForAmount with a signed result, positive for
// a deposit. Callers negate it to withdraw the same range.
func ComputeLiquidity(tickLower, tickUpper int32, amount *uint256.Int, amountIsToken0 bool) (*big.Int, error) {
	liq, err := LiquidityForAmount(tickLower, tickUpper, amount, amountIsToken0)
	if err != nil {
		return nil, err
	}
	return liq.ToBig(), nil
}
