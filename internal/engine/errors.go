package engine

import (
	"errors"

	"github.com/YaTut1901/liquid-ip-sub001/internal/schedule"
)

// Timing guards, re-exported from the scheduler so callers match on one
// package.
var (
	ErrCampaignNotStarted = schedule.ErrNotStarted
	ErrCampaignEnded      = schedule.ErrEnded
)

// Engine errors.
var (
	// ErrNotInitialized is returned for trades on a pool with no stored
	// campaign.
	ErrNotInitialized = errors.New("pool not initialized")

	// ErrAlreadyInitialized is returned when initializing a pool twice.
	ErrAlreadyInitialized = errors.New("pool already initialized")

	// ErrRedeemNotAllowed is returned for redeem-direction trades:
	// campaigns are one-directional.
	ErrRedeemNotAllowed = errors.New("redeem direction not allowed")

	// ErrExactOutputUnsupported is returned for exact-output intents;
	// deferred settlement only supports exact-input.
	ErrExactOutputUnsupported = errors.New("exact-output trades not supported")

	// ErrZeroAmount is returned for trades with no input amount.
	ErrZeroAmount = errors.New("trade amount is zero")

	// ErrBackingInvalid is returned when the license token's patent
	// backing fails validation during epoch activation.
	ErrBackingInvalid = errors.New("patent backing invalid")

	// ErrTradePending is returned when a trade arrives while another is
	// already deferred for the pool. The single pending slot is never
	// silently overwritten.
	ErrTradePending = errors.New("a deferred trade is already pending")

	// ErrVariantMismatch is returned when a hook is driven with a config
	// of the other variant.
	ErrVariantMismatch = errors.New("campaign config variant mismatch")

	// ErrBadPlaintext is returned when a resolved ciphertext does not
	// decode to its declared type.
	ErrBadPlaintext = errors.New("resolved plaintext malformed")
)
