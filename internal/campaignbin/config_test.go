package campaignbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

func fixtureCampaign() *domain.CampaignConfig {
	return &domain.CampaignConfig{
		StartingTime: 1_700_000_000,
		Epochs: []domain.Epoch{
			{
				DurationSeconds: 3600,
				Positions: []domain.Position{
					{TickLower: -120, TickUpper: 60, Amount: uint256.NewInt(1_000_000)},
					{TickLower: 60, TickUpper: 180, Amount: uint256.NewInt(500_000)},
				},
			},
			{
				DurationSeconds: 7200,
				Positions: []domain.Position{
					{TickLower: 0, TickUpper: 240, Amount: uint256.NewInt(750_000)},
				},
			},
		},
	}
}

func mustEncode(t *testing.T, cfg *domain.CampaignConfig) []byte {
	t.Helper()
	raw, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return raw
}

func fixtureEncrypted(sigLen int) *domain.EncryptedCampaignConfig {
	rec := func(seed byte, typ uint8) domain.CiphertextRecord {
		r := domain.CiphertextRecord{SecurityZone: 1, Type: typ, Signature: make([]byte, sigLen)}
		for i := range r.Hash {
			r.Hash[i] = seed
		}
		for i := range r.Signature {
			r.Signature[i] = seed ^ 0xFF
		}
		return r
	}
	return &domain.EncryptedCampaignConfig{
		StartingTime: 1_700_000_000,
		TotalSupply:  uint256.NewInt(10_000_000),
		Epochs: []domain.EncryptedEpoch{
			{
				DurationSeconds: 3600,
				Positions: []domain.EncryptedPosition{
					{
						TickLower: rec(0x01, domain.CiphertextTypeInt64),
						TickUpper: rec(0x02, domain.CiphertextTypeInt64),
						Amount:    rec(0x03, domain.CiphertextTypeUint128),
					},
					{
						TickLower: rec(0x04, domain.CiphertextTypeInt64),
						TickUpper: rec(0x05, domain.CiphertextTypeInt64),
						Amount:    rec(0x06, domain.CiphertextTypeUint128),
					},
				},
			},
		},
	}
}

func TestParsePublicRoundTrip(t *testing.T) {
	want := fixtureCampaign()
	raw := mustEncode(t, want)

	cfg, err := Parse(raw, domain.VariantPublic)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.StartingTime() != want.StartingTime {
		t.Errorf("StartingTime() = %d, want %d", cfg.StartingTime(), want.StartingTime)
	}
	if cfg.NumEpochs() != uint16(len(want.Epochs)) {
		t.Fatalf("NumEpochs() = %d, want %d", cfg.NumEpochs(), len(want.Epochs))
	}

	got, err := Decode(cfg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	// Re-encoding the decoded config must reproduce the wire bytes exactly.
	if !bytes.Equal(mustEncode(t, got), raw) {
		t.Error("re-encoded config differs from original bytes")
	}
	if got.StartingTime != want.StartingTime {
		t.Errorf("decoded StartingTime = %d, want %d", got.StartingTime, want.StartingTime)
	}
	for e, ep := range want.Epochs {
		if got.Epochs[e].DurationSeconds != ep.DurationSeconds {
			t.Errorf("epoch %d duration = %d, want %d", e, got.Epochs[e].DurationSeconds, ep.DurationSeconds)
		}
		for p, pos := range ep.Positions {
			gp := got.Epochs[e].Positions[p]
			if gp.TickLower != pos.TickLower || gp.TickUpper != pos.TickUpper {
				t.Errorf("epoch %d position %d ticks = [%d, %d], want [%d, %d]",
					e, p, gp.TickLower, gp.TickUpper, pos.TickLower, pos.TickUpper)
			}
			if !gp.Amount.Eq(pos.Amount) {
				t.Errorf("epoch %d position %d amount = %s, want %s", e, p, gp.Amount.Dec(), pos.Amount.Dec())
			}
		}
	}

	// Derived readers.
	startTick, err := cfg.EpochStartingTick(0)
	if err != nil {
		t.Fatalf("EpochStartingTick(0) error = %v", err)
	}
	if startTick != -120 {
		t.Errorf("EpochStartingTick(0) = %d, want -120", startTick)
	}
	end, err := cfg.EndingTime()
	if err != nil {
		t.Fatalf("EndingTime() error = %v", err)
	}
	if end != want.EndingTime() {
		t.Errorf("EndingTime() = %d, want %d", end, want.EndingTime())
	}
	total, err := cfg.TotalTokensToSell()
	if err != nil {
		t.Fatalf("TotalTokensToSell() error = %v", err)
	}
	if !total.Eq(want.TotalTokensToSell()) {
		t.Errorf("TotalTokensToSell() = %s, want %s", total.Dec(), want.TotalTokensToSell().Dec())
	}
}

func TestParseRejectsMalformedHeaders(t *testing.T) {
	valid := mustEncode(t, fixtureCampaign())

	tests := []struct {
		name    string
		mutate  func(raw []byte) []byte
		wantErr error
	}{
		{
			name:    "truncated header",
			mutate:  func(raw []byte) []byte { return raw[:10] },
			wantErr: ErrTruncated,
		},
		{
			name: "bad magic",
			mutate: func(raw []byte) []byte {
				raw[0] ^= 0xFF
				return raw
			},
			wantErr: ErrBadMagic,
		},
		{
			name: "unsupported version",
			mutate: func(raw []byte) []byte {
				raw[4] = 9
				return raw
			},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name: "zero epochs",
			mutate: func(raw []byte) []byte {
				binary.BigEndian.PutUint16(raw[offNumEpochs:], 0)
				return raw
			},
			wantErr: ErrNoEpochs,
		},
		{
			name: "truncated offset table",
			mutate: func(raw []byte) []byte {
				binary.BigEndian.PutUint16(raw[offNumEpochs:], 200)
				return raw
			},
			wantErr: ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.mutate(append([]byte(nil), valid...))
			_, err := Parse(raw, domain.VariantPublic)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRejectsBrokenOffsetTable(t *testing.T) {
	valid := mustEncode(t, fixtureCampaign())

	t.Run("epoch 0 not tight against table", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		off := readU32(raw, headerLenPublic)
		binary.BigEndian.PutUint32(raw[headerLenPublic:], off+1)
		_, err := Parse(raw, domain.VariantPublic)
		if !errors.Is(err, ErrLoosePacking) {
			t.Errorf("Parse() error = %v, want %v", err, ErrLoosePacking)
		}
	})

	t.Run("offsets not strictly increasing", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		off0 := readU32(raw, headerLenPublic)
		binary.BigEndian.PutUint32(raw[headerLenPublic+4:], off0)
		_, err := Parse(raw, domain.VariantPublic)
		if !errors.Is(err, ErrOffsetOrder) {
			t.Errorf("Parse() error = %v, want %v", err, ErrOffsetOrder)
		}
	})

	t.Run("offset past buffer end", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		binary.BigEndian.PutUint32(raw[headerLenPublic+4:], uint32(len(raw)))
		_, err := Parse(raw, domain.VariantPublic)
		if !errors.Is(err, ErrOffsetBounds) {
			t.Errorf("Parse() error = %v, want %v", err, ErrOffsetBounds)
		}
	})
}

func TestParseRejectsBrokenEpochs(t *testing.T) {
	valid := mustEncode(t, fixtureCampaign())
	epoch0 := int(readU32(valid, headerLenPublic))

	t.Run("zero positions", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		raw[epoch0+4] = 0
		_, err := Parse(raw, domain.VariantPublic)
		if !errors.Is(err, ErrNoPositions) {
			t.Errorf("Parse() error = %v, want %v", err, ErrNoPositions)
		}
	})

	t.Run("window larger than positions", func(t *testing.T) {
		raw := append([]byte(nil), valid...)
		raw[epoch0+4]-- // one fewer position than the window holds
		_, err := Parse(raw, domain.VariantPublic)
		if !errors.Is(err, ErrLoosePacking) {
			t.Errorf("Parse() error = %v, want %v", err, ErrLoosePacking)
		}
	})
}

func TestParseEncryptedRoundTrip(t *testing.T) {
	want := fixtureEncrypted(64)
	raw, err := EncodeEncrypted(want)
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}

	cfg, err := Parse(raw, domain.VariantEncrypted)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	supply, err := cfg.TotalTokensToSell()
	if err != nil {
		t.Fatalf("TotalTokensToSell() error = %v", err)
	}
	if !supply.Eq(want.TotalSupply) {
		t.Errorf("TotalTokensToSell() = %s, want %s", supply.Dec(), want.TotalSupply.Dec())
	}

	got, err := DecodeEncrypted(cfg)
	if err != nil {
		t.Fatalf("DecodeEncrypted() error = %v", err)
	}
	reenc, err := EncodeEncrypted(got)
	if err != nil {
		t.Fatalf("EncodeEncrypted() after decode error = %v", err)
	}
	if !bytes.Equal(reenc, raw) {
		t.Error("re-encoded config differs from original bytes")
	}
	for e, ep := range want.Epochs {
		for p, pos := range ep.Positions {
			gp := got.Epochs[e].Positions[p]
			if gp.TickLower.Handle() != pos.TickLower.Handle() {
				t.Errorf("epoch %d position %d tickLower handle mismatch", e, p)
			}
			if gp.Amount.Type != domain.CiphertextTypeUint128 {
				t.Errorf("epoch %d position %d amount type = 0x%02X", e, p, gp.Amount.Type)
			}
			if len(gp.Amount.Signature) != 64 {
				t.Errorf("epoch %d position %d signature length = %d, want 64", e, p, len(gp.Amount.Signature))
			}
		}
	}
}

// Records whose signature lengths make them overlap the next record must
// fail as a packing fault, never as an out-of-bounds read.
func TestParseEncryptedRejectsOverlappingRecords(t *testing.T) {
	raw, err := EncodeEncrypted(fixtureEncrypted(64))
	if err != nil {
		t.Fatalf("EncodeEncrypted() error = %v", err)
	}

	// First record of position 0: epoch window starts after the epoch
	// table, position 0 after the position table (2 positions).
	epoch0 := int(readU32(raw, headerLenEncrypted))
	pos0 := int(readU32(raw, epoch0+epochHeaderLen))
	sigLenOff := pos0 + recordFixedLen - 2

	for _, inflated := range []uint16{65, 1000, 0xFFFF} {
		mutated := append([]byte(nil), raw...)
		binary.BigEndian.PutUint16(mutated[sigLenOff:], inflated)
		_, err := Parse(mutated, domain.VariantEncrypted)
		if !errors.Is(err, ErrLoosePacking) {
			t.Errorf("Parse() with sigLen %d: error = %v, want %v", inflated, err, ErrLoosePacking)
		}
	}
}

func TestParseVariantHandling(t *testing.T) {
	pub := mustEncode(t, fixtureCampaign())

	if _, err := Parse(pub, "SECRET"); !errors.Is(err, ErrWrongVariant) {
		t.Errorf("Parse() with unknown variant: error = %v, want %v", err, ErrWrongVariant)
	}

	// A public buffer parsed as encrypted must fail validation, not panic.
	if _, err := Parse(pub, domain.VariantEncrypted); err == nil {
		t.Error("Parse() public bytes as encrypted: expected error")
	}
}

func TestAccessorBounds(t *testing.T) {
	cfg, err := Parse(mustEncode(t, fixtureCampaign()), domain.VariantPublic)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := cfg.DurationSeconds(99); !errors.Is(err, ErrEpochOutOfRange) {
		t.Errorf("DurationSeconds(99) error = %v, want %v", err, ErrEpochOutOfRange)
	}
	if _, err := cfg.TickLower(0, 99); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("TickLower(0, 99) error = %v, want %v", err, ErrPositionOutOfRange)
	}
	if _, err := cfg.Ciphertext(0, 0, domain.FieldAmount); !errors.Is(err, ErrWrongVariant) {
		t.Errorf("Ciphertext() on public config error = %v, want %v", err, ErrWrongVariant)
	}
}

func TestEncodeRejectsOutOfRangeFields(t *testing.T) {
	cfg := fixtureCampaign()
	cfg.Epochs[0].Positions[0].TickLower = maxTick24 + 1
	if _, err := Encode(cfg); !errors.Is(err, ErrTickRange) {
		t.Errorf("Encode() error = %v, want %v", err, ErrTickRange)
	}

	cfg = fixtureCampaign()
	cfg.Epochs[0].Positions[0].Amount = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	if _, err := Encode(cfg); !errors.Is(err, ErrAmountRange) {
		t.Errorf("Encode() error = %v, want %v", err, ErrAmountRange)
	}

	if _, err := Encode(&domain.CampaignConfig{StartingTime: 1}); !errors.Is(err, ErrNoEpochs) {
		t.Errorf("Encode() error = %v, want %v", err, ErrNoEpochs)
	}
}
