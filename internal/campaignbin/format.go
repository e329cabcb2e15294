// Package campaignbin implements the packed campaign config format: a
// compact, self-describing big-endian binary layout shared by the public
// (plaintext) and encrypted variants.
//
// Public layout:
//
//	header    magic u32 | version u8 | startingTime i64 | numEpochs u16
//	table     numEpochs × u32 absolute epoch offsets, strictly increasing;
//	          epoch 0 starts immediately after the table (no slack)
//	epoch     duration u32 | numPositions u8 | positions at a fixed
//	          22-byte stride: tickLower i24 | tickUpper i24 | amount u128
//
// The encrypted variant widens the header with a u256 total-supply field
// and replaces the fixed position stride with a per-epoch u32 position
// offset table followed by three adjacent variable-length ciphertext
// records per position (hash [32] | securityZone u8 | type u8 |
// sigLen u16 | signature). Every variable-length region must tile its
// window exactly: no gaps, no overlaps, no trailing slack.
package campaignbin

import "encoding/binary"

const (
	// Magic is the format signature, "LIQP" big-endian.
	Magic uint32 = 0x4C495150

	// Version is the only format version this codec reads or writes.
	Version uint8 = 1
)

const (
	headerLenPublic    = 4 + 1 + 8 + 2      // magic, version, startingTime, numEpochs
	headerLenEncrypted = headerLenPublic + 32 // + totalSupply u256

	offStartingTime = 5
	offNumEpochs    = 13
	offTotalSupply  = 15 // encrypted variant only

	epochHeaderLen = 4 + 1 // duration, position count

	// positionStride is the packed size of one public position:
	// i24 lower, i24 upper, u128 amount.
	positionStride = 3 + 3 + 16

	// recordFixedLen is the fixed prefix of one ciphertext record:
	// 32-byte hash, security zone, type, signature length.
	recordFixedLen = 32 + 1 + 1 + 2
)

// tick bounds representable in a signed 24-bit field.
const (
	minTick24 = -1 << 23
	maxTick24 = 1<<23 - 1
)

func readU16(raw []byte, off int) uint16 {
	return binary.BigEndian.Uint16(raw[off : off+2])
}

func readU32(raw []byte, off int) uint32 {
	return binary.BigEndian.Uint32(raw[off : off+4])
}

func readI64(raw []byte, off int) int64 {
	return int64(binary.BigEndian.Uint64(raw[off : off+8]))
}

// readI24 reads a 3-byte big-endian two's-complement tick.
func readI24(raw []byte, off int) int32 {
	v := int32(raw[off])<<16 | int32(raw[off+1])<<8 | int32(raw[off+2])
	if v&(1<<23) != 0 {
		v -= 1 << 24
	}
	return v
}

func putI24(dst []byte, v int32) {
	u := uint32(v) & 0xFFFFFF
	dst[0] = byte(u >> 16)
	dst[1] = byte(u >> 8)
	dst[2] = byte(u)
}
