package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/tickmath"
)

// unitLiquidity is the throwaway magnitude placed around the target tick
// during the anchor maneuver.
var unitLiquidity = big.NewInt(1)

// activateEpoch runs the full epoch transition for epoch e. The transition
// checkpoints after each irreversible venue effect (prior ranges withdrawn,
// owed proceeds collected), so a failure in a later step leaves a resumable
// state: the next trade attempt re-enters the transition and skips the
// steps already done instead of repeating them against the venue. A failed
// yield deposit is tolerated outright, leaving the proceeds pending.
//
// Order: backing check, withdraw the previous epoch's ranges, collect and
// accrue proceeds, flush proceeds to yield, anchor the price, place the new
// ranges, mark applied.
func (h *Hook) activateEpoch(ctx context.Context, poolID string, cfg *campaignbin.Config, st *domain.PoolState, e uint16, positions []domain.Position, now int64) error {
	if err := h.backing.Validate(ctx, poolID); err != nil {
		return fmt.Errorf("%w: %v", ErrBackingInvalid, err)
	}

	if err := h.withdrawPrior(ctx, poolID, st, e); err != nil {
		return err
	}

	accrued := false
	for _, asset := range []domain.Asset{domain.AssetSettlement, domain.AssetLicense} {
		collected, err := h.market.CollectOwed(ctx, poolID, asset)
		if err != nil {
			return fmt.Errorf("collect %s proceeds: %w", asset, err)
		}
		if !collected.IsZero() {
			st.AccrueProceeds(asset, collected)
			accrued = true
		}
	}
	if accrued {
		// Collecting zeroed the venue's owed balance; the accrual must
		// survive a failure in the steps below.
		st.UpdatedAt = nowMs()
		if err := h.states.Save(ctx, st); err != nil {
			return fmt.Errorf("save pool state: %w", err)
		}
	}

	if err := h.flushProceeds(ctx, poolID, st, e, now); err != nil {
		return err
	}

	// An epoch with no positions still transitions: prior ranges come out
	// and proceeds move, but there is nothing to anchor to or place.
	if len(positions) > 0 {
		if err := h.anchor(ctx, poolID, positions, e); err != nil {
			return err
		}
		if err := h.applyPositions(ctx, poolID, positions); err != nil {
			return err
		}
	}

	st.Applied[e] = true
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}

	if h.metrics != nil {
		h.metrics.EpochActivations.Inc()
	}
	tick, _ := h.market.CurrentTick(ctx, poolID)
	h.record(ctx, &domain.PoolEvent{
		PoolID:      poolID,
		Epoch:       e,
		Type:        domain.EventEpochActivated,
		Tick:        tick,
		TimestampMs: now * 1000,
	})
	h.logf("pool %s: epoch %d activated, %d positions", poolID, e, len(positions))
	return nil
}

// withdrawPrior removes the previous epoch's ranges from the venue. At most
// one epoch's ranges are live at a time, so only the most recent applied
// and not-yet-withdrawn epoch before e needs withdrawing. Old positions
// are re-read through the same path that produced them, and the withdrawn
// flag is persisted immediately so an activation that fails later never
// withdraws the same ranges twice.
func (h *Hook) withdrawPrior(ctx context.Context, poolID string, st *domain.PoolState, e uint16) error {
	prior := -1
	for i := 0; i < int(e) && i < len(st.Applied); i++ {
		if st.Applied[i] && !st.Withdrawn[i] {
			prior = i
		}
	}
	if prior < 0 {
		return nil
	}

	old, err := h.positionSource(ctx, poolID, uint16(prior))
	if err != nil {
		return fmt.Errorf("read epoch %d positions: %w", prior, err)
	}
	for _, pos := range old {
		liq, err := tickmath.ComputeLiquidity(pos.TickLower, pos.TickUpper, pos.Amount, true)
		if err != nil {
			return fmt.Errorf("epoch %d liquidity: %w", prior, err)
		}
		if err := h.market.PlaceRange(ctx, poolID, pos.TickLower, pos.TickUpper, new(big.Int).Neg(liq)); err != nil {
			return fmt.Errorf("withdraw range [%d, %d]: %w", pos.TickLower, pos.TickUpper, err)
		}
		if h.metrics != nil {
			h.metrics.PositionsWithdrawn.Inc()
		}
	}

	st.Withdrawn[prior] = true
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}
	return nil
}

// flushProceeds pushes accrued settlement proceeds to the yield venue.
// Deposits are recorded by removing the pending entry only after the venue
// accepts, so a failure keeps the balance for the next transition. Any
// entries the venue did accept are persisted before returning, otherwise a
// later activation failure would deposit the same balance again.
func (h *Hook) flushProceeds(ctx context.Context, poolID string, st *domain.PoolState, e uint16, now int64) error {
	flushed := false
	for asset, amt := range st.PendingProceeds {
		if amt.IsZero() {
			delete(st.PendingProceeds, asset)
			continue
		}
		if err := h.yield.Deposit(ctx, poolID, asset, amt); err != nil {
			if h.metrics != nil {
				h.metrics.YieldDepositErrors.Inc()
			}
			h.logf("pool %s: yield deposit %s %s failed, kept pending: %v", poolID, amt, asset, err)
			continue
		}
		delete(st.PendingProceeds, asset)
		flushed = true
		if h.metrics != nil {
			h.metrics.YieldDeposits.Inc()
		}
		h.record(ctx, &domain.PoolEvent{
			PoolID:      poolID,
			Epoch:       e,
			Type:        domain.EventProceedsFlush,
			AmountIn:    new(uint256.Int).Set(amt),
			TimestampMs: now * 1000,
		})
	}
	if !flushed {
		return nil
	}
	st.UpdatedAt = nowMs()
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save pool state: %w", err)
	}
	return nil
}

// anchor moves the pool price onto the epoch's starting tick: a 1-unit
// range spanning the target absorbs the price-limited trade, then comes
// straight back out. The trade re-enters the engine through the venue, so
// the in-anchor flag makes that nested attempt a pass-through.
func (h *Hook) anchor(ctx context.Context, poolID string, positions []domain.Position, e uint16) error {
	target := positions[0].TickLower

	current, err := h.market.CurrentTick(ctx, poolID)
	if err != nil {
		return fmt.Errorf("current tick: %w", err)
	}
	if current == target {
		return nil
	}

	spacing, err := h.market.TickSpacing(ctx, poolID)
	if err != nil {
		return fmt.Errorf("tick spacing: %w", err)
	}
	lower := tickmath.AlignToGrid(target, spacing)
	upper := lower + spacing

	if err := h.market.PlaceRange(ctx, poolID, lower, upper, unitLiquidity); err != nil {
		return fmt.Errorf("place anchor range: %w", err)
	}

	limit, err := tickmath.SqrtRatioAtTick(target)
	if err != nil {
		return err
	}
	dir := domain.DirectionBuy // buying token0 raises the price
	if target < current {
		dir = domain.DirectionRedeem
	}

	h.setAnchor(poolID, true)
	_, tradeErr := h.market.ExecuteTrade(ctx, poolID, dir, new(uint256.Int).SetAllOne(), limit)
	h.setAnchor(poolID, false)
	if tradeErr != nil {
		return fmt.Errorf("anchor trade: %w", tradeErr)
	}

	if err := h.market.PlaceRange(ctx, poolID, lower, upper, new(big.Int).Neg(unitLiquidity)); err != nil {
		return fmt.Errorf("withdraw anchor range: %w", err)
	}
	if h.metrics != nil {
		h.metrics.AnchorManeuvers.Inc()
	}
	return nil
}

// applyPositions places the epoch's configured ranges. Allocations are in
// the license token, the pool's token0.
func (h *Hook) applyPositions(ctx context.Context, poolID string, positions []domain.Position) error {
	for _, pos := range positions {
		liq, err := tickmath.ComputeLiquidity(pos.TickLower, pos.TickUpper, pos.Amount, true)
		if err != nil {
			return fmt.Errorf("position liquidity: %w", err)
		}
		if err := h.market.PlaceRange(ctx, poolID, pos.TickLower, pos.TickUpper, liq); err != nil {
			return fmt.Errorf("place range [%d, %d]: %w", pos.TickLower, pos.TickUpper, err)
		}
		if h.metrics != nil {
			h.metrics.PositionsApplied.Inc()
		}
	}
	return nil
}
