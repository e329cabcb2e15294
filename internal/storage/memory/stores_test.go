package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

func TestCampaignStore(t *testing.T) {
	ctx := context.Background()
	store := NewCampaignStore()
	raw := []byte{0x4C, 0x49, 0x51, 0x50, 0x01}

	if err := store.Init(ctx, "pool-a", domain.VariantPublic, raw); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	variant, got, err := store.Get(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if variant != domain.VariantPublic {
		t.Errorf("variant = %q, want %q", variant, domain.VariantPublic)
	}
	if string(got) != string(raw) {
		t.Errorf("raw mismatch: %v != %v", got, raw)
	}

	// Write-once.
	if err := store.Init(ctx, "pool-a", domain.VariantPublic, raw); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("second Init() error = %v, want %v", err, storage.ErrDuplicateKey)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want %v", err, storage.ErrNotFound)
	}
	if err := store.Init(ctx, "", domain.VariantPublic, raw); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Init(empty id) error = %v, want %v", err, storage.ErrInvalidInput)
	}
}

func TestCampaignStoreCopiesBuffers(t *testing.T) {
	ctx := context.Background()
	store := NewCampaignStore()
	raw := []byte{1, 2, 3}

	if err := store.Init(ctx, "pool-a", domain.VariantPublic, raw); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	raw[0] = 99 // caller mutates its buffer afterwards

	_, got, err := store.Get(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got[0] != 1 {
		t.Errorf("stored config mutated through caller buffer: %v", got)
	}
	got[0] = 42 // reader mutates its copy
	_, again, _ := store.Get(ctx, "pool-a")
	if again[0] != 1 {
		t.Errorf("stored config mutated through reader copy: %v", again)
	}
}

func TestPoolStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewPoolStateStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want %v", err, storage.ErrNotFound)
	}

	st := domain.NewPoolState("pool-a", 2)
	st.Applied[1] = true
	st.Withdrawn[0] = true
	st.Pending = &domain.PendingTrade{
		Sender:    "trader",
		Direction: domain.DirectionBuy,
		AmountIn:  uint256.NewInt(500),
		Epoch:     1,
	}
	st.AccrueProceeds(domain.AssetSettlement, uint256.NewInt(42))
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Applied[1] || got.Applied[0] {
		t.Errorf("Applied = %v, want [false true]", got.Applied)
	}
	if !got.Withdrawn[0] || got.Withdrawn[1] {
		t.Errorf("Withdrawn = %v, want [true false]", got.Withdrawn)
	}
	if got.Pending == nil || !got.Pending.AmountIn.Eq(uint256.NewInt(500)) || got.Pending.Epoch != 1 {
		t.Errorf("Pending = %+v, want custodied 500 in epoch 1", got.Pending)
	}
	if !got.PendingProceeds[domain.AssetSettlement].Eq(uint256.NewInt(42)) {
		t.Errorf("PendingProceeds = %v, want 42", got.PendingProceeds)
	}

	// The store hands out deep copies: mutating a read does not leak back.
	got.Applied[0] = true
	got.Pending.AmountIn.SetUint64(9999)
	again, _ := store.Get(ctx, "pool-a")
	if again.Applied[0] {
		t.Error("Applied mutated through reader copy")
	}
	if !again.Pending.AmountIn.Eq(uint256.NewInt(500)) {
		t.Errorf("Pending amount mutated through reader copy: %s", again.Pending.AmountIn.Dec())
	}

	if err := store.Save(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Save(nil) error = %v, want %v", err, storage.ErrInvalidInput)
	}
}

func TestPoolEventStore(t *testing.T) {
	ctx := context.Background()
	store := NewPoolEventStore()

	events := []*domain.PoolEvent{
		{PoolID: "pool-a", Epoch: 0, Type: domain.EventEpochActivated, TimestampMs: 2000},
		{PoolID: "pool-a", Epoch: 0, Type: domain.EventTradeExecuted, AmountIn: uint256.NewInt(10), TimestampMs: 1000},
		{PoolID: "pool-b", Epoch: 0, Type: domain.EventTradeDeferred, TimestampMs: 1500},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk() error = %v", err)
	}

	got, err := store.GetByPoolID(ctx, "pool-a")
	if err != nil {
		t.Fatalf("GetByPoolID() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Ordered by timestamp ascending regardless of insert order.
	if got[0].TimestampMs != 1000 || got[1].TimestampMs != 2000 {
		t.Errorf("order = [%d, %d], want [1000, 2000]", got[0].TimestampMs, got[1].TimestampMs)
	}

	empty, err := store.GetByPoolID(ctx, "missing")
	if err != nil {
		t.Fatalf("GetByPoolID(missing) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}

	if err := store.InsertBulk(ctx, []*domain.PoolEvent{{}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("InsertBulk(no pool id) error = %v, want %v", err, storage.ErrInvalidInput)
	}
}
