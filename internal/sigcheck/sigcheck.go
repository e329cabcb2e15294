// Package sigcheck verifies the authorization signatures carried by
// ciphertext records before the engine forwards decryption requests, and
// gates the oracle callback entry point to a single trusted caller.
package sigcheck

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"

	"filippo.io/edwards25519"

	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// Verification errors.
var (
	ErrBadAuthorityKey  = errors.New("authority key is not a valid ed25519 public key")
	ErrBadSignature     = errors.New("authorization signature invalid")
	ErrUntrustedCaller  = errors.New("caller is not the oracle callback authority")
	ErrMissingSignature = errors.New("authorization signature missing")
)

// Verifier checks record signatures against one oracle authority key.
type Verifier struct {
	authority ed25519.PublicKey
}

// NewVerifier validates the authority key and returns a verifier. The key
// must be a canonical point on the curve: a key that decompresses to a
// non-canonical encoding is rejected up front rather than at verify time.
func NewVerifier(authority []byte) (*Verifier, error) {
	if len(authority) != ed25519.PublicKeySize {
		return nil, ErrBadAuthorityKey
	}
	point, err := new(edwards25519.Point).SetBytes(authority)
	if err != nil {
		return nil, ErrBadAuthorityKey
	}
	if subtle.ConstantTimeCompare(point.Bytes(), authority) != 1 {
		return nil, ErrBadAuthorityKey
	}
	return &Verifier{authority: ed25519.PublicKey(authority)}, nil
}

// VerifyRecord checks the record's signature over its hash, security zone
// and type bytes.
func (v *Verifier) VerifyRecord(rec domain.CiphertextRecord) error {
	if len(rec.Signature) != ed25519.SignatureSize {
		return ErrMissingSignature
	}
	msg := signedMessage(rec)
	if !ed25519.Verify(v.authority, msg, rec.Signature) {
		return ErrBadSignature
	}
	return nil
}

// TrustedCaller reports whether the caller key matches the authority. This
// is the single capability check on the oracle callback entry point.
func (v *Verifier) TrustedCaller(caller []byte) error {
	if subtle.ConstantTimeCompare(caller, v.authority) != 1 {
		return ErrUntrustedCaller
	}
	return nil
}

// Sign produces a record's authorization signature with the authority's
// private key. Used by campaign tooling and tests.
func Sign(priv ed25519.PrivateKey, rec domain.CiphertextRecord) []byte {
	return ed25519.Sign(priv, signedMessage(rec))
}

func signedMessage(rec domain.CiphertextRecord) []byte {
	msg := make([]byte, 0, domain.HashSize+2)
	msg = append(msg, rec.Hash[:]...)
	return append(msg, rec.SecurityZone, rec.Type)
}
