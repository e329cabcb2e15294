// Package main runs the liquidity-provisioning service:
// - Engine: campaign initialization and trade evaluation per pool
// - Oracle callback: authenticated endpoint feeding resolved plaintexts
// - History: append-only pool events in ClickHouse
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/engine"
	"github.com/YaTut1901/liquid-ip-sub001/internal/observability"
	"github.com/YaTut1901/liquid-ip-sub001/internal/sigcheck"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage"
	chstore "github.com/YaTut1901/liquid-ip-sub001/internal/storage/clickhouse"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage/memory"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage/migrations"
	pgstore "github.com/YaTut1901/liquid-ip-sub001/internal/storage/postgres"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue/stub"
)

// Server holds the HTTP surface and both engine variants.
type Server struct {
	campaigns storage.CampaignStore

	public    *engine.Hook
	encrypted *engine.EncryptedHook
	oracle    *stub.Oracle
	verifier  *sigcheck.Verifier

	logger  *log.Logger
	started time.Time

	mu          sync.Mutex
	initialized int
	trades      int
}

func main() {
	loadEnvFile()

	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	venueEndpoint := flag.String("venue-ws-endpoint", os.Getenv("VENUE_WS_ENDPOINT"), "Venue WebSocket JSON-RPC endpoint (empty runs the built-in stub venue)")
	tickSpacing := flag.Int("stub-tick-spacing", 60, "Tick spacing of the built-in stub venue")
	authorityKey := flag.String("authority-key", os.Getenv("ORACLE_AUTHORITY_KEY"), "Hex ed25519 public key of the decryption oracle authority")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaigns, states, events, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	market, err := createMarket(ctx, *venueEndpoint, int32(*tickSpacing))
	if err != nil {
		logger.Fatalf("Failed to create venue client: %v", err)
	}

	var verifier *sigcheck.Verifier
	if *authorityKey != "" {
		raw, err := hex.DecodeString(*authorityKey)
		if err != nil {
			logger.Fatalf("Invalid --authority-key: %v", err)
		}
		verifier, err = sigcheck.NewVerifier(raw)
		if err != nil {
			logger.Fatalf("Invalid --authority-key: %v", err)
		}
	}

	metrics := observability.NewMetrics("")
	oracle := stub.NewOracle()
	yield := stub.NewYield()
	backing := &stub.Validator{}

	opts := engine.Options{
		Campaigns: campaigns,
		States:    states,
		Events:    events,
		Market:    market,
		Yield:     yield,
		Backing:   backing,
		Metrics:   metrics,
		Logger:    logger,
	}

	server := &Server{
		campaigns: campaigns,
		public:    engine.NewHook(opts),
		encrypted: engine.NewEncryptedHook(opts, oracle, verifier),
		oracle:    oracle,
		verifier:  verifier,
		logger:    logger,
		started:   time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires either the in-memory or the PostgreSQL/ClickHouse
// storage stack, running migrations on the latter.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.CampaignStore, storage.PoolStateStore, storage.PoolEventStore, func(), error) {
	if useMemory {
		return memory.NewCampaignStore(), memory.NewPoolStateStore(), memory.NewPoolEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewCampaignStore(pool), pgstore.NewPoolStateStore(pool), chstore.NewPoolEventStore(chConn), cleanup, nil
}

func createMarket(ctx context.Context, endpoint string, spacing int32) (venue.Market, error) {
	if endpoint == "" {
		return stub.NewMarket(spacing), nil
	}
	return venue.NewWSMarket(ctx, endpoint, nil)
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("POST /v1/pools/{pool}/initialize", s.handleInitialize)
	mux.HandleFunc("POST /v1/pools/{pool}/trade", s.handleTrade)
	mux.HandleFunc("GET /v1/pools/{pool}/state", s.handleState)
	mux.HandleFunc("GET /v1/pools/{pool}/events", s.handleEvents)
	mux.HandleFunc("POST /v1/oracle/resolve", s.handleOracleResolve)

	return mux
}

// InitializeRequest is the JSON body of the initialize endpoint.
type InitializeRequest struct {
	Variant domain.ConfigVariant `json:"variant"`
	Config  string               `json:"config"` // base64 packed config
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool")

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode config: %w", err))
		return
	}

	switch req.Variant {
	case domain.VariantPublic:
		err = s.public.InitializeState(r.Context(), poolID, raw)
	case domain.VariantEncrypted:
		err = s.encrypted.InitializeState(r.Context(), poolID, raw)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown variant %q", req.Variant))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	s.initialized++
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"pool_id": poolID})
}

// TradeRequest is the JSON body of the trade endpoint.
type TradeRequest struct {
	Sender    string `json:"sender"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	AmountIn  string `json:"amount_in"` // decimal
	Timestamp int64  `json:"timestamp"` // Unix seconds
}

// TradeResponse reports the engine's outcome for a trade attempt.
type TradeResponse struct {
	Deferred       bool    `json:"deferred"`
	Replayed       int     `json:"replayed"`
	EpochActivated *uint16 `json:"epoch_activated,omitempty"`
	AmountIn       string  `json:"amount_in"`
	AmountOut      string  `json:"amount_out"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	amount := new(uint256.Int)
	if req.AmountIn != "" {
		if err := amount.SetFromDecimal(req.AmountIn); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode amount_in: %w", err))
			return
		}
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	intent := domain.TradeIntent{
		Sender:    req.Sender,
		Direction: domain.Direction(req.Direction),
		Kind:      domain.TradeKind(req.Kind),
		AmountIn:  amount,
		Timestamp: ts,
	}
	if intent.Kind == "" {
		intent.Kind = domain.TradeKindExactInput
	}

	variant, _, err := s.campaigns.Get(r.Context(), poolID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var outcome domain.TradeOutcome
	if variant == domain.VariantEncrypted {
		outcome, err = s.encrypted.Trade(r.Context(), poolID, intent)
	} else {
		outcome, err = s.public.Trade(r.Context(), poolID, intent)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	s.trades++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, TradeResponse{
		Deferred:       outcome.Deferred,
		Replayed:       outcome.Replayed,
		EpochActivated: outcome.EpochActivated,
		AmountIn:       decimalOrZero(outcome.AmountIn),
		AmountOut:      decimalOrZero(outcome.AmountOut),
	})
}

// StateResponse is the JSON rendering of a pool's engine state.
type StateResponse struct {
	PoolID           string            `json:"pool_id"`
	Applied          []bool            `json:"applied"`
	DecryptRequested []bool            `json:"decrypt_requested"`
	PendingTrade     *PendingTradeJSON `json:"pending_trade,omitempty"`
	PendingProceeds  map[string]string `json:"pending_proceeds"`
	UpdatedAtMs      int64             `json:"updated_at_ms"`
}

// PendingTradeJSON renders the deferred trade slot.
type PendingTradeJSON struct {
	Sender    string `json:"sender"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool")

	st, err := s.public.State(r.Context(), poolID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := StateResponse{
		PoolID:           st.PoolID,
		Applied:          st.Applied,
		DecryptRequested: st.DecryptRequested,
		PendingProceeds:  make(map[string]string, len(st.PendingProceeds)),
		UpdatedAtMs:      st.UpdatedAt,
	}
	if st.Pending != nil {
		resp.PendingTrade = &PendingTradeJSON{
			Sender:    st.Pending.Sender,
			Direction: string(st.Pending.Direction),
			AmountIn:  decimalOrZero(st.Pending.AmountIn),
		}
	}
	for asset, amt := range st.PendingProceeds {
		resp.PendingProceeds[asset.String()] = amt.Dec()
	}
	writeJSON(w, http.StatusOK, resp)
}

// EventJSON is one pool history record.
type EventJSON struct {
	Epoch       uint16 `json:"epoch"`
	Type        string `json:"type"`
	Sender      string `json:"sender,omitempty"`
	AmountIn    string `json:"amount_in,omitempty"`
	AmountOut   string `json:"amount_out,omitempty"`
	Tick        int32  `json:"tick"`
	TimestampMs int64  `json:"timestamp_ms"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool")

	events, err := s.public.Events(r.Context(), poolID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	out := make([]EventJSON, 0, len(events))
	for _, ev := range events {
		item := EventJSON{
			Epoch:       ev.Epoch,
			Type:        string(ev.Type),
			Sender:      ev.Sender,
			Tick:        ev.Tick,
			TimestampMs: ev.TimestampMs,
		}
		if ev.AmountIn != nil {
			item.AmountIn = ev.AmountIn.Dec()
		}
		if ev.AmountOut != nil {
			item.AmountOut = ev.AmountOut.Dec()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// OracleResolveRequest is the callback the external decryption oracle posts
// when a handle resolves.
type OracleResolveRequest struct {
	CallerKey string `json:"caller_key"` // hex ed25519 public key
	Handle    string `json:"handle"`     // hex content hash
	Plaintext string `json:"plaintext"`  // base64 resolved bytes
}

func (s *Server) handleOracleResolve(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		writeError(w, http.StatusForbidden, errors.New("oracle callback disabled: no authority key configured"))
		return
	}

	var req OracleResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	caller, err := hex.DecodeString(req.CallerKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode caller_key: %w", err))
		return
	}
	if err := s.verifier.TrustedCaller(caller); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode plaintext: %w", err))
		return
	}

	s.oracle.Resolve(req.Handle, plaintext)
	s.logger.Printf("oracle resolved handle %s (%d bytes)", req.Handle, len(plaintext))
	writeJSON(w, http.StatusOK, map[string]string{"handle": req.Handle})
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Initialized int    `json:"pools_initialized"`
	Trades      int    `json:"trades_processed"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).String(),
		Initialized: s.initialized,
		Trades:      s.trades,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusFor maps engine and storage errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, engine.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, engine.ErrCampaignNotStarted),
		errors.Is(err, engine.ErrCampaignEnded),
		errors.Is(err, engine.ErrRedeemNotAllowed),
		errors.Is(err, engine.ErrExactOutputUnsupported),
		errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrTradePending):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrVariantMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decimalOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// loadEnvFile loads environment variables from .env if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
