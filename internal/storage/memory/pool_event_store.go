package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

// PoolEventStore is an in-memory implementation of storage.PoolEventStore.
type PoolEventStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PoolEvent // keyed by pool_id
}

// NewPoolEventStore creates a new in-memory pool event store.
func NewPoolEventStore() *PoolEventStore {
	return &PoolEventStore{data: make(map[string][]*domain.PoolEvent)}
}

// Compile-time interface check.
var _ storage.PoolEventStore = (*PoolEventStore)(nil)

// InsertBulk appends events in order.
func (s *PoolEventStore) InsertBulk(_ context.Context, events []*domain.PoolEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil || e.PoolID == "" {
			return storage.ErrInvalidInput
		}
		copied := *e
		s.data[e.PoolID] = append(s.data[e.PoolID], &copied)
	}
	return nil
}

// GetByPoolID retrieves all events for a pool, ordered by timestamp ASC.
func (s *PoolEventStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.PoolEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.data[poolID]
	out := make([]*domain.PoolEvent, len(events))
	for i, e := range events {
		copied := *e
		out[i] = &copied
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}
