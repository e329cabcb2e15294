// Package stub provides in-memory implementations of the venue interfaces
// for tests and the simulator.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/tickmath"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
)

// ErrNegativeLiquidity is returned when a withdrawal exceeds the liquidity
// standing on a range.
var ErrNegativeLiquidity = errors.New("range liquidity would go negative")

// RangeKey identifies one liquidity range on a pool.
type RangeKey struct {
	Lower int32
	Upper int32
}

type poolBook struct {
	tick   int32
	ranges map[RangeKey]*big.Int
}

// Market is an in-memory venue.Market with per-range liquidity accounting,
// so tests can observe ranges being opened and drained to zero. Trades
// with a price limit move the pool tick to the limit; plain trades fill
// 1:1 and leave the tick unchanged.
type Market struct {
	mu    sync.Mutex
	pools map[string]*poolBook

	// Spacing is the tick grid spacing reported for every pool.
	Spacing int32

	// Owed seeds CollectOwed: what the venue owes the engine per pool and
	// asset. Collecting zeroes the entry.
	Owed map[string]map[domain.Asset]*uint256.Int

	// Trades records every ExecuteTrade call in order.
	Trades []TradeCall
}

// TradeCall is one recorded ExecuteTrade invocation.
type TradeCall struct {
	PoolID    string
	Direction domain.Direction
	AmountIn  *uint256.Int
	Limited   bool
}

// NewMarket creates a stub market with the given tick spacing.
func NewMarket(spacing int32) *Market {
	return &Market{
		pools:   make(map[string]*poolBook),
		Spacing: spacing,
		Owed:    make(map[string]map[domain.Asset]*uint256.Int),
	}
}

// Compile-time interface check.
var _ venue.Market = (*Market)(nil)

func (m *Market) pool(poolID string) *poolBook {
	b, ok := m.pools[poolID]
	if !ok {
		b = &poolBook{ranges: make(map[RangeKey]*big.Int)}
		m.pools[poolID] = b
	}
	return b
}

// SetTick positions a pool's current tick, for fixtures.
func (m *Market) SetTick(poolID string, tick int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool(poolID).tick = tick
}

// RangeLiquidity returns the liquidity standing on a range, zero if none.
func (m *Market) RangeLiquidity(poolID string, lower, upper int32) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if liq, ok := m.pool(poolID).ranges[RangeKey{lower, upper}]; ok {
		return new(big.Int).Set(liq)
	}
	return new(big.Int)
}

// OpenRanges returns the keys of all ranges with non-zero liquidity.
func (m *Market) OpenRanges(poolID string) []RangeKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []RangeKey
	for k, liq := range m.pool(poolID).ranges {
		if liq.Sign() != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// SetOwed seeds what CollectOwed will return for a pool and asset.
func (m *Market) SetOwed(poolID string, asset domain.Asset, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Owed[poolID] == nil {
		m.Owed[poolID] = make(map[domain.Asset]*uint256.Int)
	}
	m.Owed[poolID][asset] = new(uint256.Int).Set(amount)
}

// TickSpacing returns the configured grid spacing.
func (m *Market) TickSpacing(_ context.Context, _ string) (int32, error) {
	return m.Spacing, nil
}

// CurrentTick returns the pool's current tick.
func (m *Market) CurrentTick(_ context.Context, poolID string) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool(poolID).tick, nil
}

// PlaceRange changes liquidity on [lower, upper] by liquidityDelta.
func (m *Market) PlaceRange(_ context.Context, poolID string, lower, upper int32, liquidityDelta *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.pool(poolID)
	key := RangeKey{lower, upper}
	cur, ok := b.ranges[key]
	if !ok {
		cur = new(big.Int)
		b.ranges[key] = cur
	}
	next := new(big.Int).Add(cur, liquidityDelta)
	if next.Sign() < 0 {
		return fmt.Errorf("range [%d,%d]: %w", lower, upper, ErrNegativeLiquidity)
	}
	cur.Set(next)
	return nil
}

// ExecuteTrade consumes amountIn. With a price limit the pool tick moves to
// the limit tick and no input is consumed (the anchor case: there is no
// liquidity to trade through); without one the trade fills 1:1.
func (m *Market) ExecuteTrade(_ context.Context, poolID string, dir domain.Direction, amountIn, sqrtPriceLimit *uint256.Int) (venue.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.pool(poolID)
	m.Trades = append(m.Trades, TradeCall{
		PoolID:    poolID,
		Direction: dir,
		AmountIn:  new(uint256.Int).Set(amountIn),
		Limited:   sqrtPriceLimit != nil,
	})

	if sqrtPriceLimit != nil {
		tick, err := tickForSqrtRatio(sqrtPriceLimit)
		if err != nil {
			return venue.TradeResult{}, err
		}
		b.tick = tick
		return venue.TradeResult{
			AmountIn:  new(uint256.Int),
			AmountOut: new(uint256.Int),
			TickAfter: tick,
		}, nil
	}

	return venue.TradeResult{
		AmountIn:  new(uint256.Int).Set(amountIn),
		AmountOut: new(uint256.Int).Set(amountIn),
		TickAfter: b.tick,
	}, nil
}

// SettleOwed reports nothing owed by the engine.
func (m *Market) SettleOwed(_ context.Context, _ string, _ domain.Asset) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

// CollectOwed pays out and zeroes the seeded owed balance.
func (m *Market) CollectOwed(_ context.Context, poolID string, asset domain.Asset) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owed, ok := m.Owed[poolID][asset]
	if !ok || owed.IsZero() {
		return new(uint256.Int), nil
	}
	out := new(uint256.Int).Set(owed)
	owed.Clear()
	return out, nil
}

// tickForSqrtRatio inverts tickmath.SqrtRatioAtTick by binary search: the
// greatest tick whose sqrt ratio does not exceed target.
func tickForSqrtRatio(target *uint256.Int) (int32, error) {
	lo, hi := tickmath.MinTick, tickmath.MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := tickmath.SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Gt(target) {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return lo, nil
}
