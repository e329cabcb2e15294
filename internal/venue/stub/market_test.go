package stub

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/tickmath"
)

func TestPlaceRangeAccounting(t *testing.T) {
	ctx := context.Background()
	m := NewMarket(60)

	if err := m.PlaceRange(ctx, "pool-1", 0, 60, big.NewInt(1000)); err != nil {
		t.Fatalf("PlaceRange() error = %v", err)
	}
	if err := m.PlaceRange(ctx, "pool-1", 0, 60, big.NewInt(500)); err != nil {
		t.Fatalf("PlaceRange() error = %v", err)
	}
	if got := m.RangeLiquidity("pool-1", 0, 60); got.Cmp(big.NewInt(1500)) != 0 {
		t.Errorf("liquidity = %s, want 1500", got)
	}

	// Drain to zero closes the range.
	if err := m.PlaceRange(ctx, "pool-1", 0, 60, big.NewInt(-1500)); err != nil {
		t.Fatalf("PlaceRange() error = %v", err)
	}
	if got := m.OpenRanges("pool-1"); len(got) != 0 {
		t.Errorf("open ranges = %v, want none", got)
	}

	// Over-withdrawal is rejected.
	err := m.PlaceRange(ctx, "pool-1", 0, 60, big.NewInt(-1))
	if !errors.Is(err, ErrNegativeLiquidity) {
		t.Errorf("over-withdraw error = %v, want %v", err, ErrNegativeLiquidity)
	}
}

func TestExecuteTradeUnlimited(t *testing.T) {
	ctx := context.Background()
	m := NewMarket(60)
	m.SetTick("pool-1", 120)

	res, err := m.ExecuteTrade(ctx, "pool-1", domain.DirectionBuy, uint256.NewInt(777), nil)
	if err != nil {
		t.Fatalf("ExecuteTrade() error = %v", err)
	}
	if !res.AmountIn.Eq(uint256.NewInt(777)) || !res.AmountOut.Eq(uint256.NewInt(777)) {
		t.Errorf("fill = %s/%s, want 777/777", res.AmountIn.Dec(), res.AmountOut.Dec())
	}
	if res.TickAfter != 120 {
		t.Errorf("TickAfter = %d, want unchanged 120", res.TickAfter)
	}
	if len(m.Trades) != 1 || m.Trades[0].Limited {
		t.Errorf("Trades = %+v, want one unlimited call", m.Trades)
	}
}

func TestExecuteTradeLimitedMovesTickToLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMarket(60)
	m.SetTick("pool-1", 0)

	limit, err := tickmath.SqrtRatioAtTick(180)
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.ExecuteTrade(ctx, "pool-1", domain.DirectionBuy, new(uint256.Int).SetAllOne(), limit)
	if err != nil {
		t.Fatalf("ExecuteTrade() error = %v", err)
	}
	if res.TickAfter != 180 {
		t.Errorf("TickAfter = %d, want 180", res.TickAfter)
	}
	if !res.AmountIn.IsZero() {
		t.Errorf("AmountIn = %s, want 0 consumed", res.AmountIn.Dec())
	}
	tick, _ := m.CurrentTick(ctx, "pool-1")
	if tick != 180 {
		t.Errorf("CurrentTick = %d, want 180", tick)
	}
}

func TestCollectOwedZeroesBalance(t *testing.T) {
	ctx := context.Background()
	m := NewMarket(60)
	m.SetOwed("pool-1", domain.AssetSettlement, uint256.NewInt(900))

	got, err := m.CollectOwed(ctx, "pool-1", domain.AssetSettlement)
	if err != nil {
		t.Fatalf("CollectOwed() error = %v", err)
	}
	if !got.Eq(uint256.NewInt(900)) {
		t.Errorf("collected = %s, want 900", got.Dec())
	}

	again, err := m.CollectOwed(ctx, "pool-1", domain.AssetSettlement)
	if err != nil {
		t.Fatalf("CollectOwed() error = %v", err)
	}
	if !again.IsZero() {
		t.Errorf("second collect = %s, want 0", again.Dec())
	}
}
