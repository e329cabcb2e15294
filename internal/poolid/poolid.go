// Package poolid derives deterministic pool identifiers.
package poolid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// Compute derives a deterministic pool_id using SHA256.
// Formula: SHA256(licenseAsset|settlementAsset|startingTime|totalSupply)
// Returns hex-encoded hash (64 characters).
func Compute(licenseAsset, settlementAsset string, startingTime int64, totalSupply string) string {
	data := fmt.Sprintf("%s|%s|%d|%s", licenseAsset, settlementAsset, startingTime, totalSupply)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Short returns a compact base58 rendering of a hex pool_id for logs. An
// id that is not valid hex is returned unchanged.
func Short(poolID string) string {
	raw, err := hex.DecodeString(poolID)
	if err != nil || len(raw) < 8 {
		return poolID
	}
	return base58.Encode(raw[:8])
}
