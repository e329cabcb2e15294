package domain

import (
	"github.com/holiman/uint256"
)

// PoolEventType classifies entries in the pool history.
type PoolEventType string

const (
	EventEpochActivated PoolEventType = "EPOCH_ACTIVATED"
	EventTradeExecuted  PoolEventType = "TRADE_EXECUTED"
	EventTradeDeferred  PoolEventType = "TRADE_DEFERRED"
	EventTradeReplayed  PoolEventType = "TRADE_REPLAYED"
	EventProceedsFlush  PoolEventType = "PROCEEDS_FLUSHED"
)

// PoolEvent is one append-only history record of engine activity on a pool.
type PoolEvent struct {
	PoolID      string
	Epoch       uint16
	Type        PoolEventType
	Sender      string       // trader, empty for engine-internal events
	AmountIn    *uint256.Int // nil when not applicable
	AmountOut   *uint256.Int // nil when not applicable
	Tick        int32        // pool tick after the event
	TimestampMs int64        // event time, Unix milliseconds
}
