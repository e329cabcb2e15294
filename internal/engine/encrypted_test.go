package engine

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/sigcheck"
	"github.com/YaTut1901/liquid-ip-sub001/internal/storage/memory"
	"github.com/YaTut1901/liquid-ip-sub001/internal/venue/stub"
)

// hiddenPosition is the plaintext behind one encrypted position, with the
// serialized forms the oracle will hand back.
type hiddenPosition struct {
	lower, upper int32
	amount       uint64
}

func (p hiddenPosition) plaintexts() [domain.NumPositionFields][]byte {
	var out [domain.NumPositionFields][]byte
	lower := make([]byte, 8)
	binary.BigEndian.PutUint64(lower, uint64(int64(p.lower)))
	upper := make([]byte, 8)
	binary.BigEndian.PutUint64(upper, uint64(int64(p.upper)))
	amount := make([]byte, 16)
	binary.BigEndian.PutUint64(amount[8:], p.amount)
	out[domain.FieldTickLower] = lower
	out[domain.FieldTickUpper] = upper
	out[domain.FieldAmount] = amount
	return out
}

// encryptedFixture builds an encrypted campaign whose record hashes commit
// to the hidden plaintexts, plus the resolution map for the stub oracle.
func encryptedFixture(t *testing.T, priv ed25519.PrivateKey, epochs [][]hiddenPosition) ([]byte, map[string][]byte) {
	t.Helper()

	resolutions := make(map[string][]byte)
	cfg := &domain.EncryptedCampaignConfig{
		StartingTime: testStart,
		TotalSupply:  uint256.NewInt(100_000_000),
	}
	// Distinct fields may carry equal plaintexts, so each hash is salted
	// with its index to keep handles unique, as a real cipher would.
	salt := byte(0)
	for _, positions := range epochs {
		epoch := domain.EncryptedEpoch{DurationSeconds: uint32(testSpan)}
		for _, hp := range positions {
			plains := hp.plaintexts()
			types := [domain.NumPositionFields]uint8{
				domain.CiphertextTypeInt64,
				domain.CiphertextTypeInt64,
				domain.CiphertextTypeUint128,
			}
			var recs [domain.NumPositionFields]domain.CiphertextRecord
			for f := 0; f < domain.NumPositionFields; f++ {
				salt++
				rec := domain.CiphertextRecord{
					Hash:         sha256.Sum256(append([]byte{salt}, plains[f]...)),
					SecurityZone: 1,
					Type:         types[f],
				}
				if priv != nil {
					rec.Signature = sigcheck.Sign(priv, rec)
				} else {
					rec.Signature = make([]byte, ed25519.SignatureSize)
				}
				resolutions[rec.Handle()] = plains[f]
				recs[f] = rec
			}
			epoch.Positions = append(epoch.Positions, domain.EncryptedPosition{
				TickLower: recs[domain.FieldTickLower],
				TickUpper: recs[domain.FieldTickUpper],
				Amount:    recs[domain.FieldAmount],
			})
		}
		cfg.Epochs = append(cfg.Epochs, epoch)
	}

	raw, err := campaignbin.EncodeEncrypted(cfg)
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}
	return raw, resolutions
}

// encryptedRig is a testRig plus the encrypted hook and its oracle.
type encryptedRig struct {
	*testRig
	hook   *EncryptedHook
	oracle *stub.Oracle
}

func newEncryptedRig(t *testing.T, verifier *sigcheck.Verifier) *encryptedRig {
	t.Helper()
	base := &testRig{
		market:  stub.NewMarket(60),
		yield:   stub.NewYield(),
		backing: &stub.Validator{},
		states:  memory.NewPoolStateStore(),
		events:  memory.NewPoolEventStore(),
	}
	oracle := stub.NewOracle()
	hook := NewEncryptedHook(Options{
		Campaigns: memory.NewCampaignStore(),
		States:    base.states,
		Events:    base.events,
		Market:    base.market,
		Yield:     base.yield,
		Backing:   base.backing,
	}, oracle, verifier)
	return &encryptedRig{testRig: base, hook: hook, oracle: oracle}
}

func twoEpochFixture() [][]hiddenPosition {
	return [][]hiddenPosition{
		{{lower: 0, upper: 60, amount: 5_000_000}, {lower: 60, upper: 120, amount: 3_000_000}},
		{{lower: 60, upper: 120, amount: 4_000_000}},
	}
}

func TestEncryptedInitializeRequestsEpochZero(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()
	raw, _ := encryptedFixture(t, nil, twoEpochFixture())

	if err := rig.hook.InitializeState(ctx, testPool, raw); err != nil {
		t.Fatalf("InitializeState() error = %v", err)
	}

	// Three fields per position, two positions in epoch 0.
	if len(rig.oracle.Requested) != 6 {
		t.Errorf("requested handles = %d, want 6", len(rig.oracle.Requested))
	}
	st, err := rig.states.Get(ctx, testPool)
	if err != nil {
		t.Fatalf("Get state error = %v", err)
	}
	if !st.DecryptRequested[0] || st.DecryptRequested[1] {
		t.Errorf("DecryptRequested = %v, want [true false]", st.DecryptRequested)
	}
}

// While the epoch's plaintexts are outstanding the first trade is deferred
// with its input custodied, a second trade is rejected, and after resolution
// the deferred trade replays before the new one executes.
func TestEncryptedDeferAndReplay(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()
	raw, resolutions := encryptedFixture(t, nil, twoEpochFixture())
	if err := rig.hook.InitializeState(ctx, testPool, raw); err != nil {
		t.Fatalf("InitializeState() error = %v", err)
	}

	outcome, err := rig.hook.Trade(ctx, testPool, buyIntent(1000, testStart+60))
	if err != nil {
		t.Fatalf("Trade() error = %v", err)
	}
	if !outcome.Deferred {
		t.Fatal("first trade not deferred")
	}
	if !outcome.AmountIn.Eq(uint256.NewInt(1000)) {
		t.Errorf("deferred AmountIn = %s, want 1000", outcome.AmountIn.Dec())
	}
	if len(rig.market.Trades) != 0 {
		t.Errorf("venue saw %d trades before resolution, want 0", len(rig.market.Trades))
	}

	st, err := rig.states.Get(ctx, testPool)
	if err != nil {
		t.Fatalf("Get state error = %v", err)
	}
	if st.Pending == nil || !st.Pending.AmountIn.Eq(uint256.NewInt(1000)) {
		t.Fatalf("pending trade = %+v, want custodied 1000", st.Pending)
	}

	// The single pending slot is never overwritten.
	if _, err := rig.hook.Trade(ctx, testPool, buyIntent(2000, testStart+120)); !errors.Is(err, ErrTradePending) {
		t.Fatalf("second Trade() error = %v, want %v", err, ErrTradePending)
	}

	for handle, plain := range resolutions {
		rig.oracle.Resolve(handle, plain)
	}

	outcome, err = rig.hook.Trade(ctx, testPool, buyIntent(3000, testStart+180))
	if err != nil {
		t.Fatalf("Trade() after resolution error = %v", err)
	}
	if outcome.Deferred {
		t.Error("trade after resolution was deferred")
	}
	if outcome.Replayed != 1 {
		t.Errorf("Replayed = %d, want 1", outcome.Replayed)
	}
	if outcome.EpochActivated == nil || *outcome.EpochActivated != 0 {
		t.Errorf("EpochActivated = %v, want 0", outcome.EpochActivated)
	}

	// Replayed trade first, then the live one.
	if len(rig.market.Trades) != 2 {
		t.Fatalf("venue saw %d trades, want 2", len(rig.market.Trades))
	}
	if !rig.market.Trades[0].AmountIn.Eq(uint256.NewInt(1000)) {
		t.Errorf("replayed amount = %s, want 1000", rig.market.Trades[0].AmountIn.Dec())
	}
	if !rig.market.Trades[1].AmountIn.Eq(uint256.NewInt(3000)) {
		t.Errorf("live amount = %s, want 3000", rig.market.Trades[1].AmountIn.Dec())
	}

	st, err = rig.states.Get(ctx, testPool)
	if err != nil {
		t.Fatalf("Get state error = %v", err)
	}
	if st.Pending != nil {
		t.Error("pending trade not cleared after replay")
	}

	// Decrypted ranges are live.
	if got := rig.market.RangeLiquidity(testPool, 0, 60); got.Sign() == 0 {
		t.Error("decrypted range [0,60] has no liquidity")
	}
}

// A trade deferred in one epoch replays as soon as that epoch's plaintexts
// resolve, even when the replay is triggered by an attempt in a later epoch
// that is itself still unresolved.
func TestEncryptedReplaysEarlierEpochPending(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()
	raw, resolutions := encryptedFixture(t, nil, twoEpochFixture())
	if err := rig.hook.InitializeState(ctx, testPool, raw); err != nil {
		t.Fatalf("InitializeState() error = %v", err)
	}

	outcome, err := rig.hook.Trade(ctx, testPool, buyIntent(1000, testStart+60))
	if err != nil {
		t.Fatalf("Trade() error = %v", err)
	}
	if !outcome.Deferred {
		t.Fatal("epoch 0 trade not deferred")
	}

	// Only epoch 0's plaintexts come back; epoch 1 stays dark.
	cfg, err := campaignbin.Parse(raw, domain.VariantEncrypted)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	count, err := cfg.NumPositions(0)
	if err != nil {
		t.Fatalf("NumPositions(0) error = %v", err)
	}
	for p := uint8(0); p < count; p++ {
		for f := domain.PositionField(0); f < domain.NumPositionFields; f++ {
			rec, err := cfg.Ciphertext(0, p, f)
			if err != nil {
				t.Fatalf("Ciphertext() error = %v", err)
			}
			rig.oracle.Resolve(rec.Handle(), resolutions[rec.Handle()])
		}
	}

	outcome, err = rig.hook.Trade(ctx, testPool, buyIntent(2000, testStart+testSpan+60))
	if err != nil {
		t.Fatalf("epoch 1 Trade() error = %v", err)
	}
	if !outcome.Deferred {
		t.Error("epoch 1 trade not deferred")
	}
	if outcome.Replayed != 1 {
		t.Errorf("Replayed = %d, want 1", outcome.Replayed)
	}
	if outcome.EpochActivated == nil || *outcome.EpochActivated != 0 {
		t.Errorf("EpochActivated = %v, want 0", outcome.EpochActivated)
	}

	// The old trade hit the venue and the new attempt took over the slot.
	if len(rig.market.Trades) != 1 {
		t.Fatalf("venue saw %d trades, want the single replay", len(rig.market.Trades))
	}
	if !rig.market.Trades[0].AmountIn.Eq(uint256.NewInt(1000)) {
		t.Errorf("replayed amount = %s, want 1000", rig.market.Trades[0].AmountIn.Dec())
	}
	st, err := rig.states.Get(ctx, testPool)
	if err != nil {
		t.Fatalf("Get state error = %v", err)
	}
	if st.Pending == nil || st.Pending.Epoch != 1 || !st.Pending.AmountIn.Eq(uint256.NewInt(2000)) {
		t.Fatalf("pending = %+v, want custodied 2000 in epoch 1", st.Pending)
	}
}

func TestEncryptedSecondEpochRequestsOnDemand(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()
	raw, resolutions := encryptedFixture(t, nil, twoEpochFixture())
	if err := rig.hook.InitializeState(ctx, testPool, raw); err != nil {
		t.Fatalf("InitializeState() error = %v", err)
	}
	for handle, plain := range resolutions {
		rig.oracle.Resolve(handle, plain)
	}
	if _, err := rig.hook.Trade(ctx, testPool, buyIntent(1000, testStart+60)); err != nil {
		t.Fatalf("epoch 0 Trade() error = %v", err)
	}

	// Epoch 1: requests go out on the first attempt inside the window, and
	// since everything is already resolved the trade proceeds.
	outcome, err := rig.hook.Trade(ctx, testPool, buyIntent(1000, testStart+testSpan+60))
	if err != nil {
		t.Fatalf("epoch 1 Trade() error = %v", err)
	}
	if outcome.EpochActivated == nil || *outcome.EpochActivated != 1 {
		t.Fatalf("EpochActivated = %v, want 1", outcome.EpochActivated)
	}

	st, err := rig.states.Get(ctx, testPool)
	if err != nil {
		t.Fatalf("Get state error = %v", err)
	}
	if !st.DecryptRequested[1] {
		t.Error("epoch 1 decryption not requested")
	}
	// 6 epoch-0 handles at init, 3 epoch-1 handles on demand.
	if len(rig.oracle.Requested) != 9 {
		t.Errorf("requested handles = %d, want 9", len(rig.oracle.Requested))
	}

	// Epoch 0 ranges drained, epoch 1's single range live.
	if got := rig.market.RangeLiquidity(testPool, 0, 60); got.Sign() != 0 {
		t.Errorf("epoch 0 range [0,60] still holds %s", got)
	}
	if len(rig.market.OpenRanges(testPool)) != 1 {
		t.Errorf("open ranges = %v, want epoch 1's single range", rig.market.OpenRanges(testPool))
	}
}

func TestEncryptedRejectsMalformedPlaintext(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()
	raw, resolutions := encryptedFixture(t, nil, twoEpochFixture())
	if err := rig.hook.InitializeState(ctx, testPool, raw); err != nil {
		t.Fatalf("InitializeState() error = %v", err)
	}

	// Resolve everything, but truncate one tick plaintext.
	cfg, err := campaignbin.Parse(raw, domain.VariantEncrypted)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rec, err := cfg.Ciphertext(0, 0, domain.FieldTickLower)
	if err != nil {
		t.Fatalf("Ciphertext() error = %v", err)
	}
	for handle, plain := range resolutions {
		if handle == rec.Handle() {
			plain = plain[:4]
		}
		rig.oracle.Resolve(handle, plain)
	}

	if _, err := rig.hook.Trade(ctx, testPool, buyIntent(1000, testStart+60)); !errors.Is(err, ErrBadPlaintext) {
		t.Fatalf("Trade() error = %v, want %v", err, ErrBadPlaintext)
	}
}

func TestEncryptedVerifierGatesRequests(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	verifier, err := sigcheck.NewVerifier(pub)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	t.Run("signed records pass", func(t *testing.T) {
		rig := newEncryptedRig(t, verifier)
		raw, _ := encryptedFixture(t, priv, twoEpochFixture())
		if err := rig.hook.InitializeState(context.Background(), testPool, raw); err != nil {
			t.Fatalf("InitializeState() error = %v", err)
		}
	})

	t.Run("unsigned records rejected", func(t *testing.T) {
		rig := newEncryptedRig(t, verifier)
		raw, _ := encryptedFixture(t, nil, twoEpochFixture()) // zero signatures
		err := rig.hook.InitializeState(context.Background(), testPool, raw)
		if !errors.Is(err, sigcheck.ErrBadSignature) {
			t.Fatalf("InitializeState() error = %v, want %v", err, sigcheck.ErrBadSignature)
		}
		if len(rig.oracle.Requested) != 0 {
			t.Errorf("oracle saw %d requests from unverified records, want 0", len(rig.oracle.Requested))
		}
	})
}

func TestEncryptedVariantMismatch(t *testing.T) {
	rig := newEncryptedRig(t, nil)
	ctx := context.Background()

	// A public buffer through the encrypted hook fails validation up front.
	if err := rig.hook.InitializeState(ctx, testPool, testCampaign(t)); err == nil {
		t.Fatal("InitializeState() accepted a public buffer")
	}
}
