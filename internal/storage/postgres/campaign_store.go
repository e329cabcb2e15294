package postgres

import (
	"context"
	"fmt"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

// CampaignStore implements storage.CampaignStore using PostgreSQL.
type CampaignStore struct {
	pool *Pool
}

// NewCampaignStore creates a new CampaignStore.
func NewCampaignStore(pool *Pool) *CampaignStore {
	return &CampaignStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CampaignStore = (*CampaignStore)(nil)

// Init stores the raw config. Returns ErrDuplicateKey if the pool exists.
func (s *CampaignStore) Init(ctx context.Context, poolID string, variant domain.ConfigVariant, raw []byte) error {
	if poolID == "" || len(raw) == 0 || !variant.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO campaigns (pool_id, variant, config)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, poolID, string(variant), raw)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// Get retrieves the stored config. Returns ErrNotFound if not exists.
func (s *CampaignStore) Get(ctx context.Context, poolID string) (domain.ConfigVariant, []byte, error) {
	query := `
		SELECT variant, config
		FROM campaigns
		WHERE pool_id = $1
	`

	var variant string
	var raw []byte
	err := s.pool.QueryRow(ctx, query, poolID).Scan(&variant, &raw)
	if err != nil {
		if isNotFoundError(err) {
			return "", nil, storage.ErrNotFound
		}
		return "", nil, fmt.Errorf("get campaign: %w", err)
	}
	return domain.ConfigVariant(variant), raw, nil
}
