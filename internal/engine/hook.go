// Package engine implements the epoch-liquidity state machine: the
// position lifecycle manager that decides, on every trade attempt, whether
// to rebalance, defer, or reject, and the deferred-trade manager of the
// encrypted variant.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/observability"
	"github.com/YaTut1901/liquid-ip-sub001/internal/schedule"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
)

// Options wires a hook's collaborators.
type Options struct {
	// Required stores
	Campaigns storage.CampaignStore
	States    storage.PoolStateStore

	// Optional append-only history; nil disables recording.
	Events storage.PoolEventStore

	// External collaborators
	Market  venue.Market
	Yield   venue.YieldVenue
	Backing venue.BackingValidator

	// Options
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// Hook is the public-variant engine: one instance serves many pools, each
// pool's state machine driven by externally-serialized trade attempts.
type Hook struct {
	campaigns storage.CampaignStore
	states    storage.PoolStateStore
	events    storage.PoolEventStore

	market  venue.Market
	yield   venue.YieldVenue
	backing venue.BackingValidator

	metrics *observability.Metrics
	logger  *log.Logger

	// configs caches parsed configs; they are immutable once validated.
	configs   map[string]*campaignbin.Config
	configsMu sync.Mutex

	// locks serializes calls per pool; inAnchor marks pools whose anchor
	// maneuver is mid-flight so nested attempts pass through.
	locks    map[string]*sync.Mutex
	inAnchor map[string]bool
	locksMu  sync.Mutex

	// positionSource reads an epoch's configured ranges. The encrypted
	// hook replaces it with the decrypted view.
	positionSource func(ctx context.Context, poolID string, e uint16) ([]domain.Position, error)
}

// NewHook creates a public-variant engine.
func NewHook(opts Options) *Hook {
	h := newHook(opts)
	h.positionSource = func(ctx context.Context, poolID string, e uint16) ([]domain.Position, error) {
		cfg, err := h.config(ctx, poolID, domain.VariantPublic)
		if err != nil {
			return nil, err
		}
		return plaintextPositions(cfg, e)
	}
	return h
}

func newHook(opts Options) *Hook {
	return &Hook{
		campaigns: opts.Campaigns,
		states:    opts.States,
		events:    opts.Events,
		market:    opts.Market,
		yield:     opts.Yield,
		backing:   opts.Backing,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		configs:   make(map[string]*campaignbin.Config),
		locks:     make(map[string]*sync.Mutex),
		inAnchor:  make(map[string]bool),
	}
}

// InitializeState validates and stores a campaign config for a pool.
// Validation runs exactly once, here; a malformed config fails the call
// with nothing persisted.
func (h *Hook) InitializeState(ctx context.Context, poolID string, raw []byte) error {
	return h.initialize(ctx, poolID, raw, domain.VariantPublic)
}

func (h *Hook) initialize(ctx context.Context, poolID string, raw []byte, variant domain.ConfigVariant) error {
	cfg, err := campaignbin.Parse(raw, variant)
	if err != nil {
		return fmt.Errorf("validate campaign config: %w", err)
	}

	if err := h.campaigns.Init(ctx, poolID, variant, raw); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("pool %s: %w", poolID, ErrAlreadyInitialized)
		}
		return fmt.Errorf("store campaign config: %w", err)
	}

	st := domain.NewPoolState(poolID, cfg.NumEpochs())
	if err := h.states.Save(ctx, st); err != nil {
		return fmt.Errorf("store pool state: %w", err)
	}

	h.configsMu.Lock()
	h.configs[poolID] = cfg
	h.configsMu.Unlock()

	h.logf("pool %s initialized: %d epochs starting at %d", poolID, cfg.NumEpochs(), cfg.StartingTime())
	return nil
}

// Trade evaluates one trade attempt against a pool, activating the current
// epoch first if needed.
func (h *Hook) Trade(ctx context.Context, poolID string, intent domain.TradeIntent) (domain.TradeOutcome, error) {
	unlock, passthrough := h.lockPool(poolID)
	defer unlock()
	if passthrough {
		// Mid-anchor nested attempt: no-op to avoid recursion.
		return domain.TradeOutcome{AmountIn: intent.AmountIn}, nil
	}

	if h.metrics != nil {
		h.metrics.TradesProcessed.Inc()
	}

	cfg, err := h.config(ctx, poolID, domain.VariantPublic)
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

	outcome := domain.TradeOutcome{}
	if !st.Applied[e] {
		positions, err := plaintextPositions(cfg, e)
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

// execute forwards the (now unmodified) trade to the venue and records it.
func (h *Hook) execute(ctx context.Context, poolID string, e uint16, intent domain.TradeIntent, outcome domain.TradeOutcome) (domain.TradeOutcome, error) {
	res, err := h.market.ExecuteTrade(ctx, poolID, intent.Direction, intent.AmountIn, nil)
	if err != nil {
		return domain.TradeOutcome{}, fmt.Errorf("execute trade: %w", err)
	}
	outcome.AmountIn = res.AmountIn
	outcome.AmountOut = res.AmountOut

	h.record(ctx, &domain.PoolEvent{
		PoolID:      poolID,
		Epoch:       e,
		Type:        domain.EventTradeExecuted,
		Sender:      intent.Sender,
		AmountIn:    res.AmountIn,
		AmountOut:   res.AmountOut,
		Tick:        res.TickAfter,
		TimestampMs: intent.Timestamp * 1000,
	})
	return outcome, nil
}

// State returns a copy of a pool's current engine state.
func (h *Hook) State(ctx context.Context, poolID string) (*domain.PoolState, error) {
	st, err := h.states.Get(ctx, poolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("pool %s: %w", poolID, ErrNotInitialized)
		}
		return nil, fmt.Errorf("load pool state: %w", err)
	}
	return st, nil
}

// Events returns a pool's recorded history, oldest first. Returns an empty
// slice when no event store is configured.
func (h *Hook) Events(ctx context.Context, poolID string) ([]*domain.PoolEvent, error) {
	if h.events == nil {
		return nil, nil
	}
	return h.events.GetByPoolID(ctx, poolID)
}

// guard applies the per-trade rejections: timing window, direction, kind
// and amount. Returns the current epoch index on success.
func (h *Hook) guard(cfg *campaignbin.Config, intent domain.TradeIntent) (uint16, error) {
	e, err := schedule.EpochAt(cfg, intent.Timestamp)
	if err != nil {
		h.reject(err)
		return 0, err
	}
	if intent.Direction != domain.DirectionBuy {
		h.reject(ErrRedeemNotAllowed)
		return 0, ErrRedeemNotAllowed
	}
	if intent.Kind == domain.TradeKindExactOutput {
		h.reject(ErrExactOutputUnsupported)
		return 0, ErrExactOutputUnsupported
	}
	if intent.AmountIn == nil || intent.AmountIn.IsZero() {
		h.reject(ErrZeroAmount)
		return 0, ErrZeroAmount
	}
	return e, nil
}

func (h *Hook) reject(err error) {
	if h.metrics != nil {
		h.metrics.TradesRejected.WithLabelValues(err.Error()).Inc()
	}
}

// config returns the parsed campaign for a pool, loading and re-validating
// from storage on first use.
func (h *Hook) config(ctx context.Context, poolID string, want domain.ConfigVariant) (*campaignbin.Config, error) {
	h.configsMu.Lock()
	cfg, ok := h.configs[poolID]
	h.configsMu.Unlock()
	if ok {
		if cfg.Variant() != want {
			return nil, ErrVariantMismatch
		}
		return cfg, nil
	}

	variant, raw, err := h.campaigns.Get(ctx, poolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("pool %s: %w", poolID, ErrNotInitialized)
		}
		return nil, fmt.Errorf("load campaign config: %w", err)
	}
	if variant != want {
		return nil, ErrVariantMismatch
	}
	cfg, err = campaignbin.Parse(raw, variant)
	if err != nil {
		return nil, fmt.Errorf("stored campaign config: %w", err)
	}

	h.configsMu.Lock()
	h.configs[poolID] = cfg
	h.configsMu.Unlock()
	return cfg, nil
}

// plaintextPositions reads epoch e's configured positions.
func plaintextPositions(cfg *campaignbin.Config, e uint16) ([]domain.Position, error) {
	count, err := cfg.NumPositions(e)
	if err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, count)
	for p := uint8(0); p < count; p++ {
		lower, err := cfg.TickLower(e, p)
		if err != nil {
			return nil, err
		}
		upper, err := cfg.TickUpper(e, p)
		if err != nil {
			return nil, err
		}
		amt, err := cfg.AmountAllocated(e, p)
		if err != nil {
			return nil, err
		}
		positions = append(positions, domain.Position{TickLower: lower, TickUpper: upper, Amount: amt})
	}
	return positions, nil
}

// lockPool serializes a pool's state machine. The second return is true
// when the pool is mid-anchor, in which case the caller must pass through
// without holding the lock.
func (h *Hook) lockPool(poolID string) (unlock func(), passthrough bool) {
	h.locksMu.Lock()
	if h.inAnchor[poolID] {
		h.locksMu.Unlock()
		return func() {}, true
	}
	mu, ok := h.locks[poolID]
	if !ok {
		mu = &sync.Mutex{}
		h.locks[poolID] = mu
	}
	h.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock, false
}

func (h *Hook) setAnchor(poolID string, v bool) {
	h.locksMu.Lock()
	h.inAnchor[poolID] = v
	h.locksMu.Unlock()
}

// record appends to the pool history, best effort: a history failure never
// fails the trade that produced it.
func (h *Hook) record(ctx context.Context, events ...*domain.PoolEvent) {
	if h.events == nil {
		return
	}
	if err := h.events.InsertBulk(ctx, events); err != nil {
		if h.metrics != nil {
			h.metrics.StorageErrors.WithLabelValues("pool_events").Inc()
		}
		h.logf("record pool events: %v", err)
	}
}

func (h *Hook) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
