package memory

import (
	"context"
	"sync"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

type campaignRecord struct {
	variant domain.ConfigVariant
	raw     []byte
}

// CampaignStore is an in-memory implementation of storage.CampaignStore.
type CampaignStore struct {
	mu   sync.RWMutex
	data map[string]campaignRecord // keyed by pool_id
}

// NewCampaignStore creates a new in-memory campaign store.
func NewCampaignStore() *CampaignStore {
	return &CampaignStore{data: make(map[string]campaignRecord)}
}

// Compile-time interface check.
var _ storage.CampaignStore = (*CampaignStore)(nil)

// Init stores the raw config. Returns ErrDuplicateKey if the pool exists.
func (s *CampaignStore) Init(_ context.Context, poolID string, variant domain.ConfigVariant, raw []byte) error {
	if poolID == "" || len(raw) == 0 || !variant.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[poolID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[poolID] = campaignRecord{
		variant: variant,
		raw:     append([]byte(nil), raw...),
	}
	return nil
}

// Get retrieves the stored config. Returns ErrNotFound if not exists.
func (s *CampaignStore) Get(_ context.Context, poolID string) (domain.ConfigVariant, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[poolID]
	if !exists {
		return "", nil, storage.ErrNotFound
	}

	// Return a copy
	return rec.variant, append([]byte(nil), rec.raw...), nil
}
