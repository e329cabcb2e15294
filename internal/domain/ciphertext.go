package domain

import "encoding/hex"

// HashSize is the length of a ciphertext content hash in bytes.
const HashSize = 32

// PositionField identifies one of the three encrypted fields of a position.
type PositionField uint8

const (
	FieldTickLower PositionField = iota
	FieldTickUpper
	FieldAmount

	// NumPositionFields is the number of encrypted fields per position.
	NumPositionFields = 3
)

// Ciphertext type ids carried in the record's type byte. They describe the
// plaintext width the oracle resolves the handle to.
const (
	CiphertextTypeInt64   uint8 = 0x08 // ticks: 8-byte big-endian two's complement
	CiphertextTypeUint128 uint8 = 0x10 // amounts: 16-byte big-endian unsigned
)

// CiphertextRecord is an opaque handle to an encrypted position field plus
// the authorization signature the decryption oracle requires.
type CiphertextRecord struct {
	Hash         [HashSize]byte // content hash, doubles as the oracle handle
	SecurityZone uint8          // oracle key-domain id
	Type         uint8          // plaintext type id, see CiphertextType*
	Signature    []byte         // variable-length authorization signature
}

// Handle returns the hex form of the content hash, used as the oracle
// request key and as a storage/log identifier.
func (r CiphertextRecord) Handle() string {
	return hex.EncodeToString(r.Hash[:])
}
