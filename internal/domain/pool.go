package domain

import (
	"github.com/holiman/uint256"
)

// ConfigVariant distinguishes the two packed-config encodings.
type ConfigVariant string

const (
	VariantPublic    ConfigVariant = "PUBLIC"
	VariantEncrypted ConfigVariant = "ENCRYPTED"
)

// IsValid checks if the variant is a known value.
func (v ConfigVariant) IsValid() bool {
	return v == VariantPublic || v == VariantEncrypted
}

// PoolState is the mutable per-pool record driven by trade attempts. It is
// exclusively owned by its pool; the host serializes all calls touching it.
type PoolState struct {
	PoolID string

	// Applied flags one entry per epoch: positions placed on the venue.
	Applied []bool
	// Withdrawn flags one entry per epoch: an applied epoch's ranges have
	// been taken back off the venue. Persisted as soon as the withdrawal
	// completes, so an activation that fails later resumes instead of
	// withdrawing the same ranges twice.
	Withdrawn []bool
	// DecryptRequested flags one entry per epoch (encrypted variant):
	// decryption of the epoch's fields has been requested.
	DecryptRequested []bool

	// Pending is the at-most-one deferred trade (encrypted variant).
	Pending *PendingTrade

	// PendingProceeds holds per-asset proceeds accrued during epoch
	// transitions but not yet flushed to the yield venue. Accrual and the
	// external deposit are two separate phases so a failed deposit never
	// loses accounting.
	PendingProceeds map[Asset]*uint256.Int

	// UpdatedAt is the record's last mutation time, Unix milliseconds.
	UpdatedAt int64
}

// NewPoolState returns a fresh state sized for numEpochs epochs.
func NewPoolState(poolID string, numEpochs uint16) *PoolState {
	return &PoolState{
		PoolID:           poolID,
		Applied:          make([]bool, numEpochs),
		Withdrawn:        make([]bool, numEpochs),
		DecryptRequested: make([]bool, numEpochs),
		PendingProceeds:  make(map[Asset]*uint256.Int),
	}
}

// Clone returns a deep copy, used by stores to prevent external mutation.
func (s *PoolState) Clone() *PoolState {
	if s == nil {
		return nil
	}
	out := &PoolState{
		PoolID:           s.PoolID,
		Applied:          append([]bool(nil), s.Applied...),
		Withdrawn:        append([]bool(nil), s.Withdrawn...),
		DecryptRequested: append([]bool(nil), s.DecryptRequested...),
		PendingProceeds:  make(map[Asset]*uint256.Int, len(s.PendingProceeds)),
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Pending != nil {
		p := *s.Pending
		if s.Pending.AmountIn != nil {
			p.AmountIn = new(uint256.Int).Set(s.Pending.AmountIn)
		}
		out.Pending = &p
	}
	for asset, amt := range s.PendingProceeds {
		out.PendingProceeds[asset] = new(uint256.Int).Set(amt)
	}
	return out
}

// AccrueProceeds adds amt to the pending-proceeds balance for asset.
func (s *PoolState) AccrueProceeds(asset Asset, amt *uint256.Int) {
	if amt == nil || amt.IsZero() {
		return
	}
	if s.PendingProceeds == nil {
		s.PendingProceeds = make(map[Asset]*uint256.Int)
	}
	cur, ok := s.PendingProceeds[asset]
	if !ok {
		cur = new(uint256.Int)
		s.PendingProceeds[asset] = cur
	}
	cur.Add(cur, amt)
}
