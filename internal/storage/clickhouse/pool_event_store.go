package clickhouse

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
)

// PoolEventStore implements storage.PoolEventStore using ClickHouse.
// Amounts are stored as UInt256-safe decimal strings.
type PoolEventStore struct {
	conn *Conn
}

// NewPoolEventStore creates a new PoolEventStore.
func NewPoolEventStore(conn *Conn) *PoolEventStore {
	return &PoolEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolEventStore = (*PoolEventStore)(nil)

// InsertBulk appends events in order.
func (s *PoolEventStore) InsertBulk(ctx context.Context, events []*domain.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.PoolID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_events (
			pool_id, epoch, event_type, sender, amount_in, amount_out, tick, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.PoolID, uint16(e.Epoch), string(e.Type), e.Sender,
			decOrEmpty(e.AmountIn), decOrEmpty(e.AmountOut),
			e.Tick, uint64(e.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPoolID retrieves all events for a pool, ordered by timestamp ASC.
func (s *PoolEventStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PoolEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT pool_id, epoch, event_type, sender, amount_in, amount_out, tick, timestamp_ms
		FROM pool_events
		WHERE pool_id = ?
		ORDER BY timestamp_ms ASC
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("query pool events: %w", err)
	}
	defer rows.Close()

	var out []*domain.PoolEvent
	for rows.Next() {
		var (
			e           domain.PoolEvent
			eventType   string
			amountIn    string
			amountOut   string
			timestampMs uint64
		)
		if err := rows.Scan(&e.PoolID, &e.Epoch, &eventType, &e.Sender, &amountIn, &amountOut, &e.Tick, &timestampMs); err != nil {
			return nil, fmt.Errorf("scan pool event: %w", err)
		}
		e.Type = domain.PoolEventType(eventType)
		e.TimestampMs = int64(timestampMs)
		if e.AmountIn, err = parseDec(amountIn); err != nil {
			return nil, fmt.Errorf("decode amount_in: %w", err)
		}
		if e.AmountOut, err = parseDec(amountOut); err != nil {
			return nil, fmt.Errorf("decode amount_out: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool events: %w", err)
	}
	return out, nil
}

func decOrEmpty(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return uint256.FromDecimal(s)
}
