package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

// PoolStateStore implements storage.PoolStateStore using PostgreSQL.
type PoolStateStore struct {
	pool *Pool
}

// NewPoolStateStore creates a new PoolStateStore.
func NewPoolStateStore(pool *Pool) *PoolStateStore {
	return &PoolStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStateStore = (*PoolStateStore)(nil)

// Get retrieves a pool's state. Returns ErrNotFound if not exists.
func (s *PoolStateStore) Get(ctx context.Context, poolID string) (*domain.PoolState, error) {
	query := `
		SELECT pool_id, applied, withdrawn, decrypt_requested,
		       pending_sender, pending_direction, pending_amount, pending_epoch,
		       pending_proceeds, updated_at
		FROM pool_states
		WHERE pool_id = $1
	`

	var (
		state            domain.PoolState
		pendingSender    *string
		pendingDirection *string
		pendingAmount    *string
		pendingEpoch     *int32
		proceedsJSON     []byte
	)
	err := s.pool.QueryRow(ctx, query, poolID).Scan(
		&state.PoolID,
		&state.Applied,
		&state.Withdrawn,
		&state.DecryptRequested,
		&pendingSender,
		&pendingDirection,
		&pendingAmount,
		&pendingEpoch,
		&proceedsJSON,
		&state.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool state: %w", err)
	}

	if pendingSender != nil && pendingDirection != nil && pendingAmount != nil && pendingEpoch != nil {
		amt, err := uint256.FromDecimal(*pendingAmount)
		if err != nil {
			return nil, fmt.Errorf("decode pending amount: %w", err)
		}
		state.Pending = &domain.PendingTrade{
			Sender:    *pendingSender,
			Direction: domain.Direction(*pendingDirection),
			AmountIn:  amt,
			Epoch:     uint16(*pendingEpoch),
		}
	}

	state.PendingProceeds = make(map[domain.Asset]*uint256.Int)
	if len(proceedsJSON) > 0 {
		var proceeds map[string]string
		if err := json.Unmarshal(proceedsJSON, &proceeds); err != nil {
			return nil, fmt.Errorf("decode pending proceeds: %w", err)
		}
		for asset, dec := range proceeds {
			amt, err := uint256.FromDecimal(dec)
			if err != nil {
				return nil, fmt.Errorf("decode pending proceeds %s: %w", asset, err)
			}
			state.PendingProceeds[domain.Asset(asset)] = amt
		}
	}
	return &state, nil
}

// Save upserts a pool's state.
func (s *PoolStateStore) Save(ctx context.Context, state *domain.PoolState) error {
	if state == nil || state.PoolID == "" {
		return storage.ErrInvalidInput
	}

	var (
		pendingSender    *string
		pendingDirection *string
		pendingAmount    *string
		pendingEpoch     *int32
	)
	if state.Pending != nil {
		dir := string(state.Pending.Direction)
		amt := state.Pending.AmountIn.Dec()
		epoch := int32(state.Pending.Epoch)
		pendingSender = &state.Pending.Sender
		pendingDirection = &dir
		pendingAmount = &amt
		pendingEpoch = &epoch
	}

	proceeds := make(map[string]string, len(state.PendingProceeds))
	for asset, amt := range state.PendingProceeds {
		proceeds[string(asset)] = amt.Dec()
	}
	proceedsJSON, err := json.Marshal(proceeds)
	if err != nil {
		return fmt.Errorf("encode pending proceeds: %w", err)
	}

	query := `
		INSERT INTO pool_states (
			pool_id, applied, withdrawn, decrypt_requested,
			pending_sender, pending_direction, pending_amount, pending_epoch,
			pending_proceeds, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pool_id) DO UPDATE SET
			applied = EXCLUDED.applied,
			withdrawn = EXCLUDED.withdrawn,
			decrypt_requested = EXCLUDED.decrypt_requested,
			pending_sender = EXCLUDED.pending_sender,
			pending_direction = EXCLUDED.pending_direction,
			pending_amount = EXCLUDED.pending_amount,
			pending_epoch = EXCLUDED.pending_epoch,
			pending_proceeds = EXCLUDED.pending_proceeds,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		state.PoolID,
		state.Applied,
		state.Withdrawn,
		state.DecryptRequested,
		pendingSender,
		pendingDirection,
		pendingAmount,
		pendingEpoch,
		proceedsJSON,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}
	return nil
}
