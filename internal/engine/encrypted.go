package engine

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/sigcheck"
	"github.com/YaTut1901/liquid-ip-sub001/internal/tickmath"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
)

// EncryptedHook is the encrypted-variant engine. Position fields live
// behind ciphertext handles; the hook requests their decryption from the
// oracle and defers at most one trade per pool while an epoch's plaintexts
// are outstanding.
type EncryptedHook struct {
	*Hook

	oracle venue.DecryptionOracle

	// verifier, when set, checks record authorization signatures before
	// any decryption request leaves the engine.
	verifier *sigcheck.Verifier
}

// NewEncryptedHook creates an encrypted-variant engine. verifier may be nil
// to skip signature checks (tests, trusted configs).
func NewEncryptedHook(opts Options, oracle venue.DecryptionOracle, verifier *sigcheck.Verifier) *EncryptedHook {
	h := &EncryptedHook{
		Hook:     newHook(opts),
		oracle:   oracle,
		verifier: verifier,
	}
	h.positionSource = h.readPositions
	return h
}

// InitializeState validates and stores an encrypted campaign config, then
// immediately requests decryption of epoch 0 so its plaintexts can resolve
// before the campaign opens.
func (h *EncryptedHook) InitializeState(ctx context.Context, poolID string, raw []byte) error {
	if err := h.initialize(ctx, poolID, raw, domain.VariantEncrypted); err != nil {
		return err
	}

	cfg, err := h.config(ctx, poolID, domain.VariantEncrypted)
	if err != nil {
		return err
	}
	st, err := h.states.Get(ctx, poolID)
	if err != nil {
		return fmt.Errorf("load pool state: %w", err)
	}
	if err := h.requestEpochDecryption(ctx, poolID, cfg, st, 0); err != nil {
		return err
	}
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}
	return nil
}

// Trade evaluates one trade attempt. A previously deferred trade is always
// replayed before the new attempt is considered; while the current epoch's
// plaintexts are outstanding the attempt is deferred instead of executed,
// and a second attempt in that window is rejected.
func (h *EncryptedHook) Trade(ctx context.Context, poolID string, intent domain.TradeIntent) (domain.TradeOutcome, error) {
	unlock, passthrough := h.lockPool(poolID)
	defer unlock()
	if passthrough {
		return domain.TradeOutcome{AmountIn: intent.AmountIn}, nil
	}

	if h.metrics != nil {
		h.metrics.TradesProcessed.Inc()
	}

	cfg, err := h.config(ctx, poolID, domain.VariantEncrypted)
	if err != nil {
		return domain.TradeOutcome{}, err
	}
	e, err := h.guard(cfg, intent)
	if err != nil {
		return domain.TradeOutcome{}, err
	}

	st, err := h.states.Get(ctx, poolID)
	if err != nil {
		return domain.TradeOutcome{}, fmt.Errorf("load pool state: %w", err)
	}

	// A stored deferred trade settles as soon as its own epoch's
	// plaintexts resolve, even when the new attempt targets a later epoch.
	outcome := domain.TradeOutcome{}
	if st.Pending != nil {
		if err := h.replayPending(ctx, poolID, cfg, st, intent.Timestamp, &outcome); err != nil {
			return domain.TradeOutcome{}, err
		}
	}

	if !st.DecryptRequested[e] {
		if err := h.requestEpochDecryption(ctx, poolID, cfg, st, e); err != nil {
			return domain.TradeOutcome{}, err
		}
		st.UpdatedAt = nowMs()
		if err := h.states.Save(ctx, st); err != nil {
			return domain.TradeOutcome{}, fmt.Errorf("save pool state: %w", err)
		}
	}

	ready, err := h.epochReady(ctx, cfg, e)
	if err != nil {
		return domain.TradeOutcome{}, fmt.Errorf("probe decryption: %w", err)
	}
	if !ready {
		deferred, err := h.deferTrade(ctx, poolID, st, e, intent)
		if err != nil {
			return domain.TradeOutcome{}, err
		}
		deferred.Replayed = outcome.Replayed
		deferred.EpochActivated = outcome.EpochActivated
		return deferred, nil
	}

	if !st.Applied[e] {
		positions, err := h.readPositions(ctx, poolID, e)
		if err != nil {
			return domain.TradeOutcome{}, err
		}
		if err := h.activateEpoch(ctx, poolID, cfg, st, e, positions, intent.Timestamp); err != nil {
			return domain.TradeOutcome{}, err
		}
		epoch := e
		outcome.EpochActivated = &epoch
	}

	return h.execute(ctx, poolID, e, intent, outcome)
}

// replayPending settles the stored deferred trade once its own epoch's
// plaintexts have resolved, activating that epoch first if needed. A
// pending trade whose epoch is still unresolved stays in the slot.
func (h *EncryptedHook) replayPending(ctx context.Context, poolID string, cfg *campaignbin.Config, st *domain.PoolState, now int64, outcome *domain.TradeOutcome) error {
	pe := st.Pending.Epoch
	ready, err := h.epochReady(ctx, cfg, pe)
	if err != nil {
		return fmt.Errorf("probe decryption: %w", err)
	}
	if !ready {
		return nil
	}

	if !st.Applied[pe] {
		positions, err := h.readPositions(ctx, poolID, pe)
		if err != nil {
			return err
		}
		if err := h.activateEpoch(ctx, poolID, cfg, st, pe, positions, now); err != nil {
			return err
		}
		epoch := pe
		outcome.EpochActivated = &epoch
	}

	if err := h.replay(ctx, poolID, st, pe, now); err != nil {
		return err
	}
	outcome.Replayed = 1
	return nil
}

// deferTrade custodies the attempt's input and stores it as the pool's
// single pending trade.
func (h *EncryptedHook) deferTrade(ctx context.Context, poolID string, st *domain.PoolState, e uint16, intent domain.TradeIntent) (domain.TradeOutcome, error) {
	if st.Pending != nil {
		h.reject(ErrTradePending)
		return domain.TradeOutcome{}, ErrTradePending
	}

	st.Pending = &domain.PendingTrade{
		Sender:    intent.Sender,
		Direction: intent.Direction,
		AmountIn:  new(uint256.Int).Set(intent.AmountIn),
		Epoch:     e,
	}
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return domain.TradeOutcome{}, fmt.Errorf("save pool state: %w", err)
	}

	if h.metrics != nil {
		h.metrics.TradesDeferred.Inc()
	}
	h.record(ctx, &domain.PoolEvent{
		PoolID:      poolID,
		Epoch:       e,
		Type:        domain.EventTradeDeferred,
		Sender:      intent.Sender,
		AmountIn:    intent.AmountIn,
		TimestampMs: intent.Timestamp * 1000,
	})
	h.logf("pool %s: trade from %s deferred awaiting epoch %d plaintexts", poolID, intent.Sender, e)

	return domain.TradeOutcome{
		Deferred: true,
		AmountIn: intent.AmountIn,
	}, nil
}

// replay settles the pool's pending trade against the now-live ranges. The
// pending slot is cleared only after the state save succeeds.
func (h *EncryptedHook) replay(ctx context.Context, poolID string, st *domain.PoolState, e uint16, now int64) error {
	pending := st.Pending
	res, err := h.market.ExecuteTrade(ctx, poolID, pending.Direction, pending.AmountIn, nil)
	if err != nil {
		return fmt.Errorf("replay deferred trade: %w", err)
	}

	st.Pending = nil
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}

	if h.metrics != nil {
		h.metrics.TradesReplayed.Inc()
	}
	h.record(ctx, &domain.PoolEvent{
		PoolID:      poolID,
		Epoch:       e,
		Type:        domain.EventTradeReplayed,
		Sender:      pending.Sender,
		AmountIn:    res.AmountIn,
		AmountOut:   res.AmountOut,
		Tick:        res.TickAfter,
		TimestampMs: now * 1000,
	})
	h.logf("pool %s: deferred trade from %s replayed", poolID, pending.Sender)
	return nil
}

// requestEpochDecryption issues fire-and-forget decryption requests for
// every field of every position in epoch e. Requests are idempotent on the
// oracle side, so re-running after a partial failure is safe.
func (h *EncryptedHook) requestEpochDecryption(ctx context.Context, poolID string, cfg *campaignbin.Config, st *domain.PoolState, e uint16) error {
	count, err := cfg.NumPositions(e)
	if err != nil {
		return err
	}
	for p := uint8(0); p < count; p++ {
		for f := domain.PositionField(0); f < domain.NumPositionFields; f++ {
			rec, err := cfg.Ciphertext(e, p, f)
			if err != nil {
				return err
			}
			if h.verifier != nil {
				if err := h.verifier.VerifyRecord(rec); err != nil {
					return fmt.Errorf("epoch %d position %d field %d: %w", e, p, f, err)
				}
			}
			if err := h.oracle.RequestDecryption(ctx, rec.Handle()); err != nil {
				return fmt.Errorf("request decryption: %w", err)
			}
			if h.metrics != nil {
				h.metrics.DecryptionRequests.Inc()
			}
		}
	}
	st.DecryptRequested[e] = true
	h.logf("pool %s: epoch %d decryption requested (%d handles)", poolID, e, int(count)*domain.NumPositionFields)
	return nil
}

// epochReady probes whether epoch e's plaintexts have resolved. The oracle
// resolves a request batch together, so probing the batch's last handle
// (the amount field of the last position) covers the whole epoch.
func (h *EncryptedHook) epochReady(ctx context.Context, cfg *campaignbin.Config, e uint16) (bool, error) {
	count, err := cfg.NumPositions(e)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return true, nil
	}
	rec, err := cfg.Ciphertext(e, count-1, domain.FieldAmount)
	if err != nil {
		return false, err
	}
	return h.oracle.IsResolved(ctx, rec.Handle())
}

// readPositions decodes epoch e's resolved plaintexts into positions.
func (h *EncryptedHook) readPositions(ctx context.Context, poolID string, e uint16) ([]domain.Position, error) {
	cfg, err := h.config(ctx, poolID, domain.VariantEncrypted)
	if err != nil {
		return nil, err
	}
	count, err := cfg.NumPositions(e)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, count)
	for p := uint8(0); p < count; p++ {
		lower, err := h.readTick(ctx, cfg, e, p, domain.FieldTickLower)
		if err != nil {
			return nil, err
		}
		upper, err := h.readTick(ctx, cfg, e, p, domain.FieldTickUpper)
		if err != nil {
			return nil, err
		}
		amt, err := h.readAmount(ctx, cfg, e, p)
		if err != nil {
			return nil, err
		}
		positions = append(positions, domain.Position{TickLower: lower, TickUpper: upper, Amount: amt})
	}
	return positions, nil
}

func (h *EncryptedHook) readTick(ctx context.Context, cfg *campaignbin.Config, e uint16, p uint8, f domain.PositionField) (int32, error) {
	plain, err := h.readField(ctx, cfg, e, p, f)
	if err != nil {
		return 0, err
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("%w: tick plaintext is %d bytes", ErrBadPlaintext, len(plain))
	}
	v := int64(binary.BigEndian.Uint64(plain))
	if v < int64(tickmath.MinTick) || v > int64(tickmath.MaxTick) {
		return 0, fmt.Errorf("%w: tick %d out of bounds", ErrBadPlaintext, v)
	}
	return int32(v), nil
}

func (h *EncryptedHook) readAmount(ctx context.Context, cfg *campaignbin.Config, e uint16, p uint8) (*uint256.Int, error) {
	plain, err := h.readField(ctx, cfg, e, p, domain.FieldAmount)
	if err != nil {
		return nil, err
	}
	if len(plain) != 16 {
		return nil, fmt.Errorf("%w: amount plaintext is %d bytes", ErrBadPlaintext, len(plain))
	}
	return new(uint256.Int).SetBytes(plain), nil
}

func (h *EncryptedHook) readField(ctx context.Context, cfg *campaignbin.Config, e uint16, p uint8, f domain.PositionField) ([]byte, error) {
	rec, err := cfg.Ciphertext(e, p, f)
	if err != nil {
		return nil, err
	}
	plain, err := h.oracle.ReadResolved(ctx, rec.Handle())
	if err != nil {
		return nil, fmt.Errorf("read resolved %s: %w", rec.Handle(), err)
	}
	return plain, nil
}
