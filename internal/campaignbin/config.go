package campaignbin

import (
	"fmt"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// Config is a validated view over a packed campaign buffer. The raw bytes
// are referenced, never copied or mutated; Parse is the single validation
// pass that makes every subsequent accessor memory-safe. Accessors still
// re-run the bounds arithmetic and fail closed, guarding against buffers
// validated under a different version or tampered with afterwards.
type Config struct {
	raw     []byte
	variant domain.ConfigVariant
}

// Parse validates raw under the given variant and returns a reader over it.
// Validation runs exactly once per config; any violated invariant fails
// with its named error, wrapped with the epoch/position it broke at.
func Parse(raw []byte, variant domain.ConfigVariant) (*Config, error) {
	if !variant.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrWrongVariant, variant)
	}
	c := &Config{raw: raw, variant: variant}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Variant reports which encoding the config was validated under.
func (c *Config) Variant() domain.ConfigVariant { return c.variant }

// Raw returns the underlying buffer. Callers must not mutate it.
func (c *Config) Raw() []byte { return c.raw }

func (c *Config) headerLen() int {
	if c.variant == domain.VariantEncrypted {
		return headerLenEncrypted
	}
	return headerLenPublic
}

// validate walks header, epoch offset table, every epoch and every
// position, confirming bounds, ordering and tight packing.
func (c *Config) validate() error {
	hdr := c.headerLen()
	if len(c.raw) < hdr {
		return fmt.Errorf("header needs %d bytes, have %d: %w", hdr, len(c.raw), ErrTruncated)
	}
	if readU32(c.raw, 0) != Magic {
		return fmt.Errorf("%w: 0x%08X", ErrBadMagic, readU32(c.raw, 0))
	}
	if c.raw[4] != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.raw[4])
	}

	n := int(readU16(c.raw, offNumEpochs))
	if n == 0 {
		return ErrNoEpochs
	}

	tableEnd := hdr + 4*n
	if len(c.raw) < tableEnd {
		return fmt.Errorf("epoch offset table needs %d bytes, have %d: %w", tableEnd, len(c.raw), ErrTruncated)
	}

	// Epoch offsets: strictly increasing, in bounds, epoch 0 tight
	// against the table.
	prev := -1
	for e := 0; e < n; e++ {
		off := int(readU32(c.raw, hdr+4*e))
		if e == 0 && off != tableEnd {
			return fmt.Errorf("epoch 0 offset %d, table ends at %d: %w", off, tableEnd, ErrLoosePacking)
		}
		if off <= prev {
			return fmt.Errorf("epoch %d offset %d after %d: %w", e, off, prev, ErrOffsetOrder)
		}
		if off+epochHeaderLen > len(c.raw) {
			return fmt.Errorf("epoch %d offset %d: %w", e, off, ErrOffsetBounds)
		}
		prev = off
	}

	for e := 0; e < n; e++ {
		start := int(readU32(c.raw, hdr+4*e))
		end := len(c.raw)
		if e+1 < n {
			end = int(readU32(c.raw, hdr+4*(e+1)))
		}
		if err := c.validateEpoch(e, start, end); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateEpoch(e, start, end int) error {
	if end-start < epochHeaderLen {
		return fmt.Errorf("epoch %d window %d bytes: %w", e, end-start, ErrTruncated)
	}
	count := int(c.raw[start+4])
	if count == 0 {
		return fmt.Errorf("epoch %d: %w", e, ErrNoPositions)
	}
	if c.variant == domain.VariantPublic {
		want := epochHeaderLen + positionStride*count
		if end-start != want {
			return fmt.Errorf("epoch %d window %d bytes, %d positions need %d: %w",
				e, end-start, count, want, ErrLoosePacking)
		}
		return nil
	}
	return c.validateEncryptedEpoch(e, start, end, count)
}

// validateEncryptedEpoch checks the per-position offset table and walks the
// three ciphertext records of every position, requiring exact tiling.
func (c *Config) validateEncryptedEpoch(e, start, end, count int) error {
	tableStart := start + epochHeaderLen
	tableEnd := tableStart + 4*count
	if tableEnd > end {
		return fmt.Errorf("epoch %d position table: %w", e, ErrTruncated)
	}

	prev := -1
	for p := 0; p < count; p++ {
		off := int(readU32(c.raw, tableStart+4*p))
		if p == 0 && off != tableEnd {
			return fmt.Errorf("epoch %d position 0 offset %d, table ends at %d: %w",
				e, off, tableEnd, ErrLoosePacking)
		}
		if off <= prev {
			return fmt.Errorf("epoch %d position %d offset %d after %d: %w", e, p, off, prev, ErrOffsetOrder)
		}
		if off < tableEnd || off >= end {
			return fmt.Errorf("epoch %d position %d offset %d: %w", e, p, off, ErrOffsetBounds)
		}
		prev = off
	}

	for p := 0; p < count; p++ {
		pStart := int(readU32(c.raw, tableStart+4*p))
		pEnd := end
		if p+1 < count {
			pEnd = int(readU32(c.raw, tableStart+4*(p+1)))
		}
		cur := pStart
		for f := 0; f < domain.NumPositionFields; f++ {
			next, err := recordEnd(c.raw, cur, pEnd)
			if err != nil {
				return fmt.Errorf("epoch %d position %d field %d: %w", e, p, f, err)
			}
			cur = next
		}
		if cur != pEnd {
			return fmt.Errorf("epoch %d position %d ends at %d, window ends at %d: %w",
				e, p, cur, pEnd, ErrLoosePacking)
		}
	}
	return nil
}

// recordEnd returns the offset just past the ciphertext record starting at
// off. A record spilling past limit is a packing fault, not a bounds read:
// the walk never dereferences beyond limit.
func recordEnd(raw []byte, off, limit int) (int, error) {
	if off+recordFixedLen > limit {
		return 0, ErrLoosePacking
	}
	sigLen := int(readU16(raw, off+recordFixedLen-2))
	end := off + recordFixedLen + sigLen
	if end > limit {
		return 0, ErrLoosePacking
	}
	return end, nil
}
