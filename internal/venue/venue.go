// Package venue defines the external collaborators of the engine: the
// market-making venue, the decryption oracle, the yield venue and the
// patent-backing validator. All are consumed through narrow interfaces so
// tests run against the stub package and production against live clients.
package venue

import (
	"context"
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// ErrNotResolved is returned by ReadResolved before IsResolved observes
// readiness.
var ErrNotResolved = errors.New("ciphertext not resolved")

// TradeResult reports what a venue trade execution did.
type TradeResult struct {
	AmountIn  *uint256.Int // input actually consumed
	AmountOut *uint256.Int // output delivered
	TickAfter int32        // pool tick after the trade
}

// Market is the two-asset concentrated-liquidity pool the engine places
// ranges on. Implementations serialize calls per pool.
type Market interface {
	// TickSpacing returns the pool's tick grid spacing.
	TickSpacing(ctx context.Context, poolID string) (int32, error)

	// CurrentTick returns the pool's current price tick.
	CurrentTick(ctx context.Context, poolID string) (int32, error)

	// PlaceRange changes liquidity on [lower, upper] by liquidityDelta
	// (negative withdraws).
	PlaceRange(ctx context.Context, poolID string, lower, upper int32, liquidityDelta *big.Int) error

	// ExecuteTrade swaps exact-input amountIn in the given direction,
	// stopping at sqrtPriceLimit if it is non-nil.
	ExecuteTrade(ctx context.Context, poolID string, dir domain.Direction, amountIn *uint256.Int, sqrtPriceLimit *uint256.Int) (TradeResult, error)

	// SettleOwed pays the venue what the engine owes in asset and
	// returns the settled amount.
	SettleOwed(ctx context.Context, poolID string, asset domain.Asset) (*uint256.Int, error)

	// CollectOwed pulls what the venue owes the engine in asset and
	// returns the collected amount.
	CollectOwed(ctx context.Context, poolID string, asset domain.Asset) (*uint256.Int, error)
}

// DecryptionOracle resolves ciphertext handles asynchronously. Request is
// fire-and-forget and idempotent; ReadResolved is valid only after
// IsResolved reports true. Latency is unbounded and requests cannot be
// cancelled.
type DecryptionOracle interface {
	RequestDecryption(ctx context.Context, handle string) error
	IsResolved(ctx context.Context, handle string) (bool, error)
	ReadResolved(ctx context.Context, handle string) ([]byte, error)
}

// YieldVenue receives settlement proceeds between epochs.
type YieldVenue interface {
	Deposit(ctx context.Context, campaignID string, asset domain.Asset, amount *uint256.Int) error
	WithdrawPrincipal(ctx context.Context, campaignID string, asset domain.Asset) (*uint256.Int, error)
}

// BackingValidator re-checks that the license token's patent backing is
// still valid. It runs before every epoch activation.
type BackingValidator interface {
	Validate(ctx context.Context, campaignID string) error
}
