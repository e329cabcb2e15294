package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
)

// ErrYieldUnavailable is returned while FailDeposits is set.
var ErrYieldUnavailable = errors.New("yield venue unavailable")

// Yield is a recording yield venue.
type Yield struct {
	mu sync.Mutex

	// Deposits accumulates deposited amounts per campaign and asset.
	Deposits map[string]map[domain.Asset]*uint256.Int

	// FailDeposits makes Deposit fail, for exercising the two-phase
	// accrue-then-flush path.
	FailDeposits bool
}

// NewYield creates an empty yield venue.
func NewYield() *Yield {
	return &Yield{Deposits: make(map[string]map[domain.Asset]*uint256.Int)}
}

// Compile-time interface check.
var _ venue.YieldVenue = (*Yield)(nil)

// Deposit records the amount against the campaign.
func (y *Yield) Deposit(_ context.Context, campaignID string, asset domain.Asset, amount *uint256.Int) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.FailDeposits {
		return ErrYieldUnavailable
	}
	if y.Deposits[campaignID] == nil {
		y.Deposits[campaignID] = make(map[domain.Asset]*uint256.Int)
	}
	cur, ok := y.Deposits[campaignID][asset]
	if !ok {
		cur = new(uint256.Int)
		y.Deposits[campaignID][asset] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// WithdrawPrincipal returns and zeroes the deposited balance.
func (y *Yield) WithdrawPrincipal(_ context.Context, campaignID string, asset domain.Asset) (*uint256.Int, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	cur, ok := y.Deposits[campaignID][asset]
	if !ok {
		return new(uint256.Int), nil
	}
	out := new(uint256.Int).Set(cur)
	cur.Clear()
	return out, nil
}

// Deposited returns the balance recorded for a campaign and asset.
func (y *Yield) Deposited(campaignID string, asset domain.Asset) *uint256.Int {
	y.mu.Lock()
	defer y.mu.Unlock()
	if cur, ok := y.Deposits[campaignID][asset]; ok {
		return new(uint256.Int).Set(cur)
	}
	return new(uint256.Int)
}

// Validator is a patent-backing validator whose verdict tests control.
type Validator struct {
	// Err is returned by Validate; nil means the backing is valid.
	Err error
}

// Compile-time interface check.
var _ venue.BackingValidator = (*Validator)(nil)

// Validate returns the configured verdict.
func (v *Validator) Validate(_ context.Context, _ string) error {
	return v.Err
}
