package memory

import (
	"context"
	"sync"
	"time"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

// PoolStateStore is an in-memory implementation of storage.PoolStateStore.
type PoolStateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolState // keyed by pool_id
}

// NewPoolStateStore creates a new in-memory pool state store.
func NewPoolStateStore() *PoolStateStore {
	return &PoolStateStore{data: make(map[string]*domain.PoolState)}
}

// Compile-time interface check.
var _ storage.PoolStateStore = (*PoolStateStore)(nil)

// Get retrieves a pool's state. Returns ErrNotFound if not exists.
func (s *PoolStateStore) Get(_ context.Context, poolID string) (*domain.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.data[poolID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return state.Clone(), nil
}

// Save upserts a pool's state.
func (s *PoolStateStore) Save(_ context.Context, state *domain.PoolState) error {
	if state == nil || state.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := state.Clone()
	clone.UpdatedAt = time.Now().UnixMilli()
	s.data[state.PoolID] = clone
	return nil
}
