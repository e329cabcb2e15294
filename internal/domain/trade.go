package domain

import (
	"github.com/holiman/uint256"
)

// Direction is the side of a trade against the campaign pool.
type Direction string

const (
	// DirectionBuy spends the settlement asset for the license token.
	// This is the only direction a campaign pool accepts.
	DirectionBuy Direction = "BUY"
	// DirectionRedeem would sell the license token back; campaigns are
	// one-directional and always reject it.
	DirectionRedeem Direction = "REDEEM"
)

// IsValid checks if the direction is a known value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionRedeem
}

// TradeKind distinguishes exact-input from exact-output intents.
type TradeKind string

const (
	TradeKindExactInput  TradeKind = "EXACT_INPUT"
	TradeKindExactOutput TradeKind = "EXACT_OUTPUT"
)

// TradeIntent is one trade attempt entering the engine. Timestamp is
// supplied by the caller (the host environment's clock), keeping epoch
// resolution a pure function of the intent.
type TradeIntent struct {
	Sender    string       // trader identifier
	Direction Direction    // BUY | REDEEM
	Kind      TradeKind    // exact-input only is supported
	AmountIn  *uint256.Int // input amount of the settlement asset
	Timestamp int64        // Unix seconds at which the attempt executes
}

// TradeOutcome reports what the engine did with a trade attempt.
type TradeOutcome struct {
	// Deferred is true when the input was custodied and the trade stored
	// for replay after decryption resolves. AmountOut is zero in that case.
	Deferred bool
	// Replayed reports how many previously deferred trades were settled
	// before this attempt was evaluated (0 or 1).
	Replayed int
	// EpochActivated is set when this attempt triggered an epoch
	// transition, and carries the activated epoch index.
	EpochActivated *uint16
	// AmountIn is the input consumed from the sender.
	AmountIn *uint256.Int
	// AmountOut is the license-token output delivered to the sender.
	AmountOut *uint256.Int
}

// PendingTrade is the single deferred trade a pool may hold while an
// epoch's decryption is outstanding. The input amount has already been
// taken into custody.
type PendingTrade struct {
	Sender    string
	Direction Direction
	AmountIn  *uint256.Int
	// Epoch is the epoch the trade was deferred in; the replay waits for
	// that epoch's plaintexts, not the current one's.
	Epoch uint16
}
