package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds a single message read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// ErrClientClosed is returned for calls after Close.
var ErrClientClosed = errors.New("venue ws client closed")

type wsRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type wsResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wsError        `json:"error"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("venue rpc error %d: %s", e.Code, e.Message)
}

// WSMarket implements Market over a JSON-RPC websocket to the venue node.
type WSMarket struct {
	endpoint string
	config   WSConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel its response is delivered on.
	pending   map[uint64]chan *wsResponse
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// Compile-time interface check.
var _ Market = (*WSMarket)(nil)

// NewWSMarket connects to the venue endpoint and starts the read and ping
// loops.
func NewWSMarket(ctx context.Context, endpoint string, config *WSConfig) (*WSMarket, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	m := &WSMarket{
		endpoint: endpoint,
		config:   cfg,
		pending:  make(map[uint64]chan *wsResponse),
		done:     make(chan struct{}),
	}
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	m.wg.Add(2)
	go m.readLoop()
	go m.pingLoop()
	return m, nil
}

func (m *WSMarket) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial venue %s: %w", m.endpoint, err)
	}
	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()
	return nil
}

// Close shuts down the client. In-flight calls fail.
func (m *WSMarket) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(m.done)
	m.connMu.Lock()
	err := m.conn.Close()
	m.connMu.Unlock()
	m.wg.Wait()
	m.failPending(ErrClientClosed)
	return err
}

func (m *WSMarket) readLoop() {
	defer m.wg.Done()
	delay := m.config.ReconnectDelay
	for {
		m.connMu.Lock()
		conn := m.conn
		m.connMu.Unlock()

		_ = conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.closed.Load() {
				return
			}
			// Responses to requests written on the old connection are
			// gone; fail them and reconnect with capped backoff.
			m.failPending(fmt.Errorf("venue connection lost: %w", err))
			select {
			case <-m.done:
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > m.config.MaxReconnectDelay {
				delay = m.config.MaxReconnectDelay
			}
			if err := m.connect(context.Background()); err != nil {
				continue
			}
			delay = m.config.ReconnectDelay
			continue
		}

		var resp wsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		m.pendingMu.Lock()
		ch, ok := m.pending[resp.ID]
		if ok {
			delete(m.pending, resp.ID)
		}
		m.pendingMu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (m *WSMarket) pingLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.connMu.Lock()
			_ = m.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.config.WriteTimeout))
			m.connMu.Unlock()
		}
	}
}

func (m *WSMarket) failPending(err error) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for id, ch := range m.pending {
		delete(m.pending, id)
		ch <- &wsResponse{Error: &wsError{Message: err.Error()}}
	}
}

// call sends one JSON-RPC request and waits for its response.
func (m *WSMarket) call(ctx context.Context, method string, params, result any) error {
	if m.closed.Load() {
		return ErrClientClosed
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	id := m.requestID.Add(1)
	req := wsRequest{ID: id, Method: method, Params: raw}

	ch := make(chan *wsResponse, 1)
	m.pendingMu.Lock()
	m.pending[id] = ch
	m.pendingMu.Unlock()

	m.connMu.Lock()
	_ = m.conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
	err = m.conn.WriteJSON(req)
	m.connMu.Unlock()
	if err != nil {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
		return ctx.Err()
	case <-m.done:
		return ErrClientClosed
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

// Wire shapes. Amounts travel as decimal strings to avoid JSON number
// precision loss.

type poolParams struct {
	PoolID string `json:"pool_id"`
	Asset  string `json:"asset,omitempty"`
}

type placeRangeParams struct {
	PoolID         string `json:"pool_id"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	LiquidityDelta string `json:"liquidity_delta"`
}

type executeTradeParams struct {
	PoolID         string `json:"pool_id"`
	Direction      string `json:"direction"`
	AmountIn       string `json:"amount_in"`
	SqrtPriceLimit string `json:"sqrt_price_limit,omitempty"`
}

type tickResult struct {
	Tick int32 `json:"tick"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type tradeResultWire struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	TickAfter int32  `json:"tick_after"`
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// TickSpacing returns the pool's tick grid spacing.
func (m *WSMarket) TickSpacing(ctx context.Context, poolID string) (int32, error) {
	var res tickResult
	if err := m.call(ctx, "venue_tickSpacing", poolParams{PoolID: poolID}, &res); err != nil {
		return 0, err
	}
	return res.Tick, nil
}

// CurrentTick returns the pool's current price tick.
func (m *WSMarket) CurrentTick(ctx context.Context, poolID string) (int32, error) {
	var res tickResult
	if err := m.call(ctx, "venue_currentTick", poolParams{PoolID: poolID}, &res); err != nil {
		return 0, err
	}
	return res.Tick, nil
}

// PlaceRange changes liquidity on [lower, upper] by liquidityDelta.
func (m *WSMarket) PlaceRange(ctx context.Context, poolID string, lower, upper int32, liquidityDelta *big.Int) error {
	return m.call(ctx, "venue_placeRange", placeRangeParams{
		PoolID:         poolID,
		TickLower:      lower,
		TickUpper:      upper,
		LiquidityDelta: liquidityDelta.String(),
	}, nil)
}

// ExecuteTrade swaps exact-input amountIn, stopping at sqrtPriceLimit.
func (m *WSMarket) ExecuteTrade(ctx context.Context, poolID string, dir domain.Direction, amountIn, sqrtPriceLimit *uint256.Int) (TradeResult, error) {
	params := executeTradeParams{
		PoolID:    poolID,
		Direction: string(dir),
		AmountIn:  amountIn.Dec(),
	}
	if sqrtPriceLimit != nil {
		params.SqrtPriceLimit = sqrtPriceLimit.Dec()
	}
	var wire tradeResultWire
	if err := m.call(ctx, "venue_executeTrade", params, &wire); err != nil {
		return TradeResult{}, err
	}
	in, err := parseAmount(wire.AmountIn)
	if err != nil {
		return TradeResult{}, fmt.Errorf("decode amount_in: %w", err)
	}
	out, err := parseAmount(wire.AmountOut)
	if err != nil {
		return TradeResult{}, fmt.Errorf("decode amount_out: %w", err)
	}
	return TradeResult{AmountIn: in, AmountOut: out, TickAfter: wire.TickAfter}, nil
}

// SettleOwed pays the venue what the engine owes in asset.
func (m *WSMarket) SettleOwed(ctx context.Context, poolID string, asset domain.Asset) (*uint256.Int, error) {
	var res amountResult
	if err := m.call(ctx, "venue_settleOwed", poolParams{PoolID: poolID, Asset: string(asset)}, &res); err != nil {
		return nil, err
	}
	return parseAmount(res.Amount)
}

// CollectOwed pulls what the venue owes the engine in asset.
func (m *WSMarket) CollectOwed(ctx context.Context, poolID string, asset domain.Asset) (*uint256.Int, error) {
	var res amountResult
	if err := m.call(ctx, "venue_collectOwed", poolParams{PoolID: poolID, Asset: string(asset)}, &res); err != nil {
		return nil, err
	}
	return parseAmount(res.Amount)
}
