package campaignbin

import (
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
)

// Decode materializes a validated public config into domain structs.
func Decode(c *Config) (*domain.CampaignConfig, error) {
	if c.variant != domain.VariantPublic {
		return nil, ErrWrongVariant
	}
	out := &domain.CampaignConfig{StartingTime: c.StartingTime()}
	for e := uint16(0); e < c.NumEpochs(); e++ {
		dur, err := c.DurationSeconds(e)
		if err != nil {
			return nil, err
		}
		count, err := c.NumPositions(e)
		if err != nil {
			return nil, err
		}
		ep := domain.Epoch{DurationSeconds: dur}
		for p := uint8(0); p < count; p++ {
			lower, err := c.TickLower(e, p)
			if err != nil {
				return nil, err
			}
			upper, err := c.TickUpper(e, p)
			if err != nil {
				return nil, err
			}
			amt, err := c.AmountAllocated(e, p)
			if err != nil {
				return nil, err
			}
			ep.Positions = append(ep.Positions, domain.Position{
				TickLower: lower,
				TickUpper: upper,
				Amount:    amt,
			})
		}
		out.Epochs = append(out.Epochs, ep)
	}
	return out, nil
}

// DecodeEncrypted materializes a validated encrypted config.
func DecodeEncrypted(c *Config) (*domain.EncryptedCampaignConfig, error) {
	if c.variant != domain.VariantEncrypted {
		return nil, ErrWrongVariant
	}
	supply, err := c.TotalTokensToSell()
	if err != nil {
		return nil, err
	}
	out := &domain.EncryptedCampaignConfig{
		StartingTime: c.StartingTime(),
		TotalSupply:  supply,
	}
	for e := uint16(0); e < c.NumEpochs(); e++ {
		dur, err := c.DurationSeconds(e)
		if err != nil {
			return nil, err
		}
		count, err := c.NumPositions(e)
		if err != nil {
			return nil, err
		}
		ep := domain.EncryptedEpoch{DurationSeconds: dur}
		for p := uint8(0); p < count; p++ {
			var pos domain.EncryptedPosition
			if pos.TickLower, err = c.Ciphertext(e, p, domain.FieldTickLower); err != nil {
				return nil, err
			}
			if pos.TickUpper, err = c.Ciphertext(e, p, domain.FieldTickUpper); err != nil {
				return nil, err
			}
			if pos.Amount, err = c.Ciphertext(e, p, domain.FieldAmount); err != nil {
				return nil, err
			}
			ep.Positions = append(ep.Positions, pos)
		}
		out.Epochs = append(out.Epochs, ep)
	}
	return out, nil
}
