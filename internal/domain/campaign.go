package domain

import (
	"github.com/holiman/uint256"
)

// CampaignConfig describes a full sale campaign: a fixed token supply split
// across sequential epochs of liquidity ranges. It is immutable once the
// packed form has been validated; a new campaign requires a new config.
type CampaignConfig struct {
	StartingTime int64   // campaign start, Unix seconds
	Epochs       []Epoch // ordered, contiguous from StartingTime
}

// Epoch is one contiguous time window with a fixed set of liquidity ranges.
type Epoch struct {
	DurationSeconds uint32     // epoch length
	Positions       []Position // 1..255 per epoch, count fits one byte
}

// Position describes one concentrated-liquidity deposit: a tick range plus
// the amount of the license token allocated to it.
type Position struct {
	TickLower int32        // must lie on the venue tick grid
	TickUpper int32        // must lie on the venue tick grid
	Amount    *uint256.Int // license-token amount, fits 128 bits
}

// EncryptedCampaignConfig mirrors CampaignConfig with every position field
// replaced by a ciphertext handle. Total supply cannot be derived by summing
// position amounts, so it is carried explicitly.
type EncryptedCampaignConfig struct {
	StartingTime int64
	TotalSupply  *uint256.Int
	Epochs       []EncryptedEpoch
}

// EncryptedEpoch is the encrypted-variant counterpart of Epoch.
type EncryptedEpoch struct {
	DurationSeconds uint32
	Positions       []EncryptedPosition
}

// EncryptedPosition carries one ciphertext record per position field.
type EncryptedPosition struct {
	TickLower CiphertextRecord
	TickUpper CiphertextRecord
	Amount    CiphertextRecord
}

// EndingTime returns the campaign end: start plus the sum of all epoch
// durations. The end itself is exclusive.
func (c *CampaignConfig) EndingTime() int64 {
	end := c.StartingTime
	for _, e := range c.Epochs {
		end += int64(e.DurationSeconds)
	}
	return end
}

// TotalTokensToSell sums all position amounts across all epochs.
func (c *CampaignConfig) TotalTokensToSell() *uint256.Int {
	total := new(uint256.Int)
	for _, e := range c.Epochs {
		for _, p := range e.Positions {
			if p.Amount != nil {
				total.Add(total, p.Amount)
			}
		}
	}
	return total
}
