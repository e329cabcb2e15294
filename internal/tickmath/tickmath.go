// Package tickmath converts between the venue's discrete price grid and
// Q64.96 square-root prices, and derives liquidity magnitudes for
// single-sided concentrated deposits.
package tickmath

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Tick bounds for which sqrt(1.0001^tick) fits the Q64.96 representation.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// ErrTickBounds is returned for ticks outside [MinTick, MaxTick].
var ErrTickBounds = errors.New("tick out of bounds")

var (
	two128 = uint256.MustFromHex("0x100000000000000000000000000000000")

	// Per-bit multipliers for sqrt(1.0001^-2^i) in Q128.128, i = 0..19.
	tickFactors = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point value.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickBounds, tick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(two128) // 1.0 in Q128.128
	if absTick&1 != 0 {
		ratio.Set(tickFactors[0])
	}
	for i := 1; i < len(tickFactors); i++ {
		if absTick&(1<<uint(i)) != 0 {
			mulShift128(ratio, tickFactors[i])
		}
	}

	if tick > 0 {
		max := new(uint256.Int).Not(new(uint256.Int)) // 2^256 - 1
		ratio.Div(max, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the two conversions of a price
	// round-trip onto the same tick.
	rem := new(uint256.Int).Mod(ratio, uint256.NewInt(1<<32))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// mulShift128 sets x = (x * y) >> 128 using a 512-bit intermediate.
func mulShift128(x, y *uint256.Int) {
	x.MulDivOverflow(x, y, two128)
}

// AlignToGrid floors tick to the nearest multiple of spacing, rounding
// toward negative infinity so negative ticks align consistently with
// positive ones. Spacing must be positive; non-positive spacing returns the
// tick unchanged.
func AlignToGrid(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}
