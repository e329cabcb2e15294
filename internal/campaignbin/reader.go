package campaignbin

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// StartingTime returns the campaign start, Unix seconds.
func (c *Config) StartingTime() int64 {
	return readI64(c.raw, offStartingTime)
}

// NumEpochs returns the declared epoch count.
func (c *Config) NumEpochs() uint16 {
	return readU16(c.raw, offNumEpochs)
}

// epochWindow re-derives epoch e's byte window from the offset table,
// re-checking every bound so a bad offset surfaces as an error instead of
// an out-of-range read.
func (c *Config) epochWindow(e uint16) (start, end int, err error) {
	n := c.NumEpochs()
	if e >= n {
		return 0, 0, fmt.Errorf("epoch %d of %d: %w", e, n, ErrEpochOutOfRange)
	}
	hdr := c.headerLen()
	tableEnd := hdr + 4*int(n)
	if len(c.raw) < tableEnd {
		return 0, 0, fmt.Errorf("epoch offset table: %w", ErrTruncated)
	}
	start = int(readU32(c.raw, hdr+4*int(e)))
	end = len(c.raw)
	if int(e)+1 < int(n) {
		end = int(readU32(c.raw, hdr+4*(int(e)+1)))
	}
	if start < tableEnd || end > len(c.raw) || start+epochHeaderLen > end {
		return 0, 0, fmt.Errorf("epoch %d window [%d,%d): %w", e, start, end, ErrOffsetBounds)
	}
	return start, end, nil
}

// DurationSeconds returns epoch e's length in seconds.
func (c *Config) DurationSeconds(e uint16) (uint32, error) {
	start, _, err := c.epochWindow(e)
	if err != nil {
		return 0, err
	}
	return readU32(c.raw, start), nil
}

// NumPositions returns epoch e's position count.
func (c *Config) NumPositions(e uint16) (uint8, error) {
	start, _, err := c.epochWindow(e)
	if err != nil {
		return 0, err
	}
	return c.raw[start+4], nil
}

// positionBase returns the byte offset of public position p of epoch e.
func (c *Config) positionBase(e uint16, p uint8) (int, error) {
	if c.variant != domain.VariantPublic {
		return 0, ErrWrongVariant
	}
	start, end, err := c.epochWindow(e)
	if err != nil {
		return 0, err
	}
	count := c.raw[start+4]
	if p >= count {
		return 0, fmt.Errorf("position %d of %d: %w", p, count, ErrPositionOutOfRange)
	}
	base := start + epochHeaderLen + positionStride*int(p)
	if base+positionStride > end {
		return 0, fmt.Errorf("epoch %d position %d: %w", e, p, ErrOffsetBounds)
	}
	return base, nil
}

// TickLower returns the lower tick of public position (e, p).
func (c *Config) TickLower(e uint16, p uint8) (int32, error) {
	base, err := c.positionBase(e, p)
	if err != nil {
		return 0, err
	}
	return readI24(c.raw, base), nil
}

// TickUpper returns the upper tick of public position (e, p).
func (c *Config) TickUpper(e uint16, p uint8) (int32, error) {
	base, err := c.positionBase(e, p)
	if err != nil {
		return 0, err
	}
	return readI24(c.raw, base+3), nil
}

// AmountAllocated returns the license-token amount of public position (e, p).
func (c *Config) AmountAllocated(e uint16, p uint8) (*uint256.Int, error) {
	base, err := c.positionBase(e, p)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(c.raw[base+6 : base+6+16]), nil
}

// EpochStartingTick is the tick the market is anchored to when epoch e
// activates: the lower tick of the epoch's first position.
func (c *Config) EpochStartingTick(e uint16) (int32, error) {
	return c.TickLower(e, 0)
}

// Ciphertext returns one encrypted field record of position (e, p).
func (c *Config) Ciphertext(e uint16, p uint8, field domain.PositionField) (domain.CiphertextRecord, error) {
	var rec domain.CiphertextRecord
	if c.variant != domain.VariantEncrypted {
		return rec, ErrWrongVariant
	}
	if field >= domain.NumPositionFields {
		return rec, fmt.Errorf("field %d: %w", field, ErrPositionOutOfRange)
	}
	start, end, err := c.epochWindow(e)
	if err != nil {
		return rec, err
	}
	count := c.raw[start+4]
	if p >= count {
		return rec, fmt.Errorf("position %d of %d: %w", p, count, ErrPositionOutOfRange)
	}

	tableStart := start + epochHeaderLen
	tableEnd := tableStart + 4*int(count)
	if tableEnd > end {
		return rec, fmt.Errorf("epoch %d position table: %w", e, ErrTruncated)
	}
	pStart := int(readU32(c.raw, tableStart+4*int(p)))
	pEnd := end
	if int(p)+1 < int(count) {
		pEnd = int(readU32(c.raw, tableStart+4*(int(p)+1)))
	}
	if pStart < tableEnd || pEnd > end || pStart >= pEnd {
		return rec, fmt.Errorf("epoch %d position %d window: %w", e, p, ErrOffsetBounds)
	}

	cur := pStart
	for f := domain.PositionField(0); f < field; f++ {
		next, err := recordEnd(c.raw, cur, pEnd)
		if err != nil {
			return rec, fmt.Errorf("epoch %d position %d field %d: %w", e, p, f, err)
		}
		cur = next
	}
	if _, err := recordEnd(c.raw, cur, pEnd); err != nil {
		return rec, fmt.Errorf("epoch %d position %d field %d: %w", e, p, field, err)
	}

	copy(rec.Hash[:], c.raw[cur:cur+domain.HashSize])
	rec.SecurityZone = c.raw[cur+domain.HashSize]
	rec.Type = c.raw[cur+domain.HashSize+1]
	sigLen := int(readU16(c.raw, cur+recordFixedLen-2))
	rec.Signature = append([]byte(nil), c.raw[cur+recordFixedLen:cur+recordFixedLen+sigLen]...)
	return rec, nil
}

// EpochStartingTime returns the wall-clock start of epoch e: campaign start
// plus the durations of all earlier epochs.
func (c *Config) EpochStartingTime(e uint16) (int64, error) {
	if e >= c.NumEpochs() {
		return 0, fmt.Errorf("epoch %d of %d: %w", e, c.NumEpochs(), ErrEpochOutOfRange)
	}
	t := c.StartingTime()
	for i := uint16(0); i < e; i++ {
		d, err := c.DurationSeconds(i)
		if err != nil {
			return 0, err
		}
		t += int64(d)
	}
	return t, nil
}

// EndingTime returns the campaign end (exclusive): start plus the sum of
// all epoch durations.
func (c *Config) EndingTime() (int64, error) {
	t := c.StartingTime()
	for e := uint16(0); e < c.NumEpochs(); e++ {
		d, err := c.DurationSeconds(e)
		if err != nil {
			return 0, err
		}
		t += int64(d)
	}
	return t, nil
}

// TotalTokensToSell returns the campaign's total supply: the encrypted
// variant carries it in the header, the public variant derives it by
// summing position amounts.
func (c *Config) TotalTokensToSell() (*uint256.Int, error) {
	if c.variant == domain.VariantEncrypted {
		if len(c.raw) < headerLenEncrypted {
			return nil, fmt.Errorf("total-supply field: %w", ErrTruncated)
		}
		return new(uint256.Int).SetBytes(c.raw[offTotalSupply : offTotalSupply+32]), nil
	}
	total := new(uint256.Int)
	for e := uint16(0); e < c.NumEpochs(); e++ {
		count, err := c.NumPositions(e)
		if err != nil {
			return nil, err
		}
		for p := uint8(0); p < count; p++ {
			amt, err := c.AmountAllocated(e, p)
			if err != nil {
				return nil, err
			}
			total.Add(total, amt)
		}
	}
	return total, nil
}
