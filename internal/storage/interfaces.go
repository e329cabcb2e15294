package storage

import (
	"context"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// CampaignStore persists validated campaign config buffers. Configs are
// write-once: a campaign never changes after initialization.
type CampaignStore interface {
	// Init stores the raw config for a pool. Returns ErrDuplicateKey if
	// the pool is already initialized.
	Init(ctx context.Context, poolID string, variant domain.ConfigVariant, raw []byte) error

	// Get retrieves the stored config. Returns ErrNotFound if the pool
	// was never initialized.
	Get(ctx context.Context, poolID string) (domain.ConfigVariant, []byte, error)
}

// PoolStateStore persists the mutable per-pool engine state.
type PoolStateStore interface {
	// Get retrieves a pool's state. Returns ErrNotFound if not exists.
	Get(ctx context.Context, poolID string) (*domain.PoolState, error)

	// Save upserts a pool's state.
	Save(ctx context.Context, state *domain.PoolState) error
}

// PoolEventStore is the append-only history of engine activity.
type PoolEventStore interface {
	// InsertBulk appends events in order.
	InsertBulk(ctx context.Context, events []*domain.PoolEvent) error

	// GetByPoolID retrieves all events for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolEvent, error)
}
