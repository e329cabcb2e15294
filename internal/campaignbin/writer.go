package campaignbin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// Encoding errors.
var (
	ErrTooManyEpochs    = errors.New("epoch count exceeds 16 bits")
	ErrTooManyPositions = errors.New("position count exceeds one byte")
	ErrTickRange        = errors.New("tick does not fit 24 bits")
	ErrAmountRange      = errors.New("amount does not fit 128 bits")
	ErrSignatureLength  = errors.New("signature length exceeds 16 bits")
	ErrConfigSize       = errors.New("encoded config exceeds 32-bit offsets")
)

// Encode packs a plaintext campaign into the public binary layout. The
// output round-trips byte-exactly through Parse.
func Encode(cfg *domain.CampaignConfig) ([]byte, error) {
	if len(cfg.Epochs) == 0 {
		return nil, ErrNoEpochs
	}
	if len(cfg.Epochs) > math.MaxUint16 {
		return nil, ErrTooManyEpochs
	}

	size := headerLenPublic + 4*len(cfg.Epochs)
	for e, ep := range cfg.Epochs {
		if len(ep.Positions) == 0 {
			return nil, fmt.Errorf("epoch %d: %w", e, ErrNoPositions)
		}
		if len(ep.Positions) > math.MaxUint8 {
			return nil, fmt.Errorf("epoch %d: %w", e, ErrTooManyPositions)
		}
		size += epochHeaderLen + positionStride*len(ep.Positions)
	}
	if size > math.MaxUint32 {
		return nil, ErrConfigSize
	}

	out := make([]byte, 0, size)
	out = appendHeader(out, cfg.StartingTime, uint16(len(cfg.Epochs)))

	// Epoch offset table.
	off := headerLenPublic + 4*len(cfg.Epochs)
	for _, ep := range cfg.Epochs {
		out = binary.BigEndian.AppendUint32(out, uint32(off))
		off += epochHeaderLen + positionStride*len(ep.Positions)
	}

	for e, ep := range cfg.Epochs {
		out = binary.BigEndian.AppendUint32(out, ep.DurationSeconds)
		out = append(out, uint8(len(ep.Positions)))
		for p, pos := range ep.Positions {
			enc, err := appendPosition(out, pos)
			if err != nil {
				return nil, fmt.Errorf("epoch %d position %d: %w", e, p, err)
			}
			out = enc
		}
	}
	return out, nil
}

// EncodeEncrypted packs an encrypted campaign: widened header plus
// per-epoch position offset tables and adjacent ciphertext records.
func EncodeEncrypted(cfg *domain.EncryptedCampaignConfig) ([]byte, error) {
	if len(cfg.Epochs) == 0 {
		return nil, ErrNoEpochs
	}
	if len(cfg.Epochs) > math.MaxUint16 {
		return nil, ErrTooManyEpochs
	}

	out := appendHeader(make([]byte, 0, headerLenEncrypted), cfg.StartingTime, uint16(len(cfg.Epochs)))
	supply := cfg.TotalSupply
	if supply == nil {
		supply = new(uint256.Int)
	}
	b32 := supply.Bytes32()
	out = append(out, b32[:]...)

	// Epoch sizes are needed up front to emit the offset table.
	sizes := make([]int, len(cfg.Epochs))
	for e, ep := range cfg.Epochs {
		if len(ep.Positions) == 0 {
			return nil, fmt.Errorf("epoch %d: %w", e, ErrNoPositions)
		}
		if len(ep.Positions) > math.MaxUint8 {
			return nil, fmt.Errorf("epoch %d: %w", e, ErrTooManyPositions)
		}
		size := epochHeaderLen + 4*len(ep.Positions)
		for p, pos := range ep.Positions {
			for _, rec := range [...]domain.CiphertextRecord{pos.TickLower, pos.TickUpper, pos.Amount} {
				if len(rec.Signature) > math.MaxUint16 {
					return nil, fmt.Errorf("epoch %d position %d: %w", e, p, ErrSignatureLength)
				}
				size += recordFixedLen + len(rec.Signature)
			}
		}
		sizes[e] = size
	}

	off := headerLenEncrypted + 4*len(cfg.Epochs)
	for e := range cfg.Epochs {
		out = binary.BigEndian.AppendUint32(out, uint32(off))
		off += sizes[e]
	}
	if off > math.MaxUint32 {
		return nil, ErrConfigSize
	}

	for _, ep := range cfg.Epochs {
		out = binary.BigEndian.AppendUint32(out, ep.DurationSeconds)
		out = append(out, uint8(len(ep.Positions)))

		// Position offset table, absolute like the epoch table.
		posOff := len(out) + 4*len(ep.Positions)
		for _, pos := range ep.Positions {
			out = binary.BigEndian.AppendUint32(out, uint32(posOff))
			posOff += positionEncodedLen(pos)
		}
		for _, pos := range ep.Positions {
			out = appendRecord(out, pos.TickLower)
			out = appendRecord(out, pos.TickUpper)
			out = appendRecord(out, pos.Amount)
		}
	}
	return out, nil
}

func appendHeader(out []byte, startingTime int64, numEpochs uint16) []byte {
	out = binary.BigEndian.AppendUint32(out, Magic)
	out = append(out, Version)
	out = binary.BigEndian.AppendUint64(out, uint64(startingTime))
	return binary.BigEndian.AppendUint16(out, numEpochs)
}

func appendPosition(out []byte, pos domain.Position) ([]byte, error) {
	if pos.TickLower < minTick24 || pos.TickLower > maxTick24 ||
		pos.TickUpper < minTick24 || pos.TickUpper > maxTick24 {
		return nil, ErrTickRange
	}
	amt := pos.Amount
	if amt == nil {
		amt = new(uint256.Int)
	}
	if amt.BitLen() > 128 {
		return nil, ErrAmountRange
	}

	var ticks [6]byte
	putI24(ticks[0:3], pos.TickLower)
	putI24(ticks[3:6], pos.TickUpper)
	out = append(out, ticks[:]...)

	b32 := amt.Bytes32()
	return append(out, b32[16:]...), nil
}

func positionEncodedLen(pos domain.EncryptedPosition) int {
	return 3*recordFixedLen +
		len(pos.TickLower.Signature) + len(pos.TickUpper.Signature) + len(pos.Amount.Signature)
}

func appendRecord(out []byte, rec domain.CiphertextRecord) []byte {
	out = append(out, rec.Hash[:]...)
	out = append(out, rec.SecurityZone, rec.Type)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rec.Signature)))
	return append(out, rec.Signature...)
}
