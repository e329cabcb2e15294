package campaignbin

import "errors"

// Validation errors. Each names exactly one violated format invariant so
// callers (and tests) can tell a truncated buffer from a packing fault.
var (
	// ErrTruncated is returned when the buffer ends before a declared
	// structure (header, offset table, epoch header, record header).
	ErrTruncated = errors.New("config truncated")

	// ErrBadMagic is returned when the signature bytes do not match.
	ErrBadMagic = errors.New("bad magic signature")

	// ErrUnsupportedVersion is returned for any format version other than
	// the one this codec writes.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrNoEpochs is returned for a zero epoch count.
	ErrNoEpochs = errors.New("config declares zero epochs")

	// ErrNoPositions is returned for an epoch with a zero position count.
	ErrNoPositions = errors.New("epoch declares zero positions")

	// ErrOffsetOrder is returned when an offset table is not strictly
	// increasing.
	ErrOffsetOrder = errors.New("offsets not strictly increasing")

	// ErrOffsetBounds is returned when an offset points outside the
	// buffer or outside its enclosing window.
	ErrOffsetBounds = errors.New("offset out of bounds")

	// ErrLoosePacking is returned when consecutive records leave a gap,
	// overlap, or do not end exactly at their window boundary.
	ErrLoosePacking = errors.New("records not tightly packed")
)

// Accessor errors. Field readers fail closed rather than truncating.
var (
	// ErrEpochOutOfRange is returned for an epoch index >= NumEpochs.
	ErrEpochOutOfRange = errors.New("epoch index out of range")

	// ErrPositionOutOfRange is returned for a position index >= the
	// epoch's position count.
	ErrPositionOutOfRange = errors.New("position index out of range")

	// ErrWrongVariant is returned when a plaintext accessor is used on an
	// encrypted config or vice versa.
	ErrWrongVariant = errors.New("accessor does not match config variant")
)
