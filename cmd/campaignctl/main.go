// Package main is the campaign config tool: encode JSON campaign
// descriptions into the packed binary layout, validate packed buffers, and
// inspect them back as JSON.
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/holiman/uint256"

	"github.com/YaTut1901/liquid-ip-sub001/internal/campaignbin"
	"github.com/YaTut1901/liquid-ip-sub001/internal/domain"
	"github.com/YaTut1901/liquid-ip-sub001/internal/poolid"
	"github.com/YaTut1901/liquid-ip-sub001/internal/sigcheck"
)

// CampaignJSON is the editable form of a public campaign config.
type CampaignJSON struct {
	StartingTime int64       `json:"starting_time"`
	Epochs       []EpochJSON `json:"epochs"`
}

// EpochJSON is one epoch of a CampaignJSON.
type EpochJSON struct {
	DurationSeconds uint32         `json:"duration_seconds"`
	Positions       []PositionJSON `json:"positions"`
}

// PositionJSON is one liquidity range of an EpochJSON.
type PositionJSON struct {
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"` // decimal
}

// EncryptedCampaignJSON is the editable form of an encrypted campaign.
// Hashes are hex; signatures are filled by --sign-key when absent.
type EncryptedCampaignJSON struct {
	StartingTime int64                `json:"starting_time"`
	TotalSupply  string               `json:"total_supply"` // decimal
	Epochs       []EncryptedEpochJSON `json:"epochs"`
}

// EncryptedEpochJSON is one epoch of an EncryptedCampaignJSON.
type EncryptedEpochJSON struct {
	DurationSeconds uint32                  `json:"duration_seconds"`
	Positions       []EncryptedPositionJSON `json:"positions"`
}

// EncryptedPositionJSON carries one record per position field.
type EncryptedPositionJSON struct {
	TickLower RecordJSON `json:"tick_lower"`
	TickUpper RecordJSON `json:"tick_upper"`
	Amount    RecordJSON `json:"amount"`
}

// RecordJSON is the JSON form of a ciphertext record.
type RecordJSON struct {
	Hash         string `json:"hash"` // hex, 32 bytes
	SecurityZone uint8  `json:"security_zone"`
	Type         uint8  `json:"type"`
	Signature    string `json:"signature,omitempty"` // hex
}

func main() {
	command := flag.String("command", "", "Command: encode, inspect, validate, poolid")
	inPath := flag.String("in", "", "Input file (JSON for encode, binary for inspect/validate)")
	outPath := flag.String("out", "", "Output file (default stdout)")
	variant := flag.String("variant", "public", "Config variant: public or encrypted")
	base64Out := flag.Bool("base64", false, "Emit/accept the binary as base64 instead of raw bytes")
	signKey := flag.String("sign-key", "", "Hex ed25519 private key; signs encrypted records missing a signature")

	// poolid inputs
	licenseAsset := flag.String("license-asset", "", "License token identifier (poolid)")
	settlementAsset := flag.String("settlement-asset", "", "Settlement asset identifier (poolid)")
	startingTime := flag.Int64("starting-time", 0, "Campaign starting time (poolid)")
	totalSupply := flag.String("total-supply", "", "Total supply, decimal (poolid)")

	flag.Parse()

	logger := log.New(os.Stderr, "[campaignctl] ", log.LstdFlags)

	var err error
	switch *command {
	case "encode":
		err = runEncode(*inPath, *outPath, *variant, *base64Out, *signKey)
	case "inspect":
		err = runInspect(*inPath, *outPath, *variant, *base64Out)
	case "validate":
		err = runValidate(*inPath, *variant, *base64Out)
	case "poolid":
		id := poolid.Compute(*licenseAsset, *settlementAsset, *startingTime, *totalSupply)
		fmt.Printf("%s (%s)\n", id, poolid.Short(id))
	default:
		logger.Fatal("--command must be one of: encode, inspect, validate, poolid")
	}
	if err != nil {
		logger.Fatal(err)
	}
}

func runEncode(inPath, outPath, variant string, b64 bool, signKey string) error {
	data, err := readInput(inPath)
	if err != nil {
		return err
	}

	var raw []byte
	switch variant {
	case "public":
		var cj CampaignJSON
		if err := json.Unmarshal(data, &cj); err != nil {
			return fmt.Errorf("parse campaign JSON: %w", err)
		}
		cfg, err := cj.toDomain()
		if err != nil {
			return err
		}
		raw, err = campaignbin.Encode(cfg)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	case "encrypted":
		var cj EncryptedCampaignJSON
		if err := json.Unmarshal(data, &cj); err != nil {
			return fmt.Errorf("parse campaign JSON: %w", err)
		}
		cfg, err := cj.toDomain(signKey)
		if err != nil {
			return err
		}
		raw, err = campaignbin.EncodeEncrypted(cfg)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	default:
		return fmt.Errorf("unknown variant %q", variant)
	}

	// Round-trip through validation before anything is written out.
	if _, err := campaignbin.Parse(raw, variantOf(variant)); err != nil {
		return fmt.Errorf("encoded config failed validation: %w", err)
	}

	if b64 {
		raw = []byte(base64.StdEncoding.EncodeToString(raw))
	}
	return writeOutput(outPath, raw)
}

func runInspect(inPath, outPath, variant string, b64 bool) error {
	cfg, err := loadConfig(inPath, variant, b64)
	if err != nil {
		return err
	}

	var doc any
	switch variantOf(variant) {
	case domain.VariantPublic:
		decoded, err := campaignbin.Decode(cfg)
		if err != nil {
			return err
		}
		doc = fromDomain(decoded)
	case domain.VariantEncrypted:
		decoded, err := campaignbin.DecodeEncrypted(cfg)
		if err != nil {
			return err
		}
		doc = fromDomainEncrypted(decoded)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(outPath, append(out, '\n'))
}

func runValidate(inPath, variant string, b64 bool) error {
	cfg, err := loadConfig(inPath, variant, b64)
	if err != nil {
		return err
	}
	end, err := cfg.EndingTime()
	if err != nil {
		return err
	}
	fmt.Printf("valid: %d epochs, start %d, end %d\n", cfg.NumEpochs(), cfg.StartingTime(), end)
	return nil
}

func loadConfig(inPath, variant string, b64 bool) (*campaignbin.Config, error) {
	raw, err := readInput(inPath)
	if err != nil {
		return nil, err
	}
	if b64 {
		raw, err = base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	return campaignbin.Parse(raw, variantOf(variant))
}

func variantOf(s string) domain.ConfigVariant {
	if s == "encrypted" {
		return domain.VariantEncrypted
	}
	return domain.VariantPublic
}

func (cj *CampaignJSON) toDomain() (*domain.CampaignConfig, error) {
	cfg := &domain.CampaignConfig{StartingTime: cj.StartingTime}
	for e, ep := range cj.Epochs {
		epoch := domain.Epoch{DurationSeconds: ep.DurationSeconds}
		for p, pos := range ep.Positions {
			amt := new(uint256.Int)
			if pos.Amount != "" {
				if err := amt.SetFromDecimal(pos.Amount); err != nil {
					return nil, fmt.Errorf("epoch %d position %d amount: %w", e, p, err)
				}
			}
			epoch.Positions = append(epoch.Positions, domain.Position{
				TickLower: pos.TickLower,
				TickUpper: pos.TickUpper,
				Amount:    amt,
			})
		}
		cfg.Epochs = append(cfg.Epochs, epoch)
	}
	return cfg, nil
}

func (cj *EncryptedCampaignJSON) toDomain(signKey string) (*domain.EncryptedCampaignConfig, error) {
	var priv ed25519.PrivateKey
	if signKey != "" {
		raw, err := hex.DecodeString(signKey)
		if err != nil || len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid --sign-key")
		}
		priv = ed25519.PrivateKey(raw)
	}

	supply := new(uint256.Int)
	if cj.TotalSupply != "" {
		if err := supply.SetFromDecimal(cj.TotalSupply); err != nil {
			return nil, fmt.Errorf("total_supply: %w", err)
		}
	}

	cfg := &domain.EncryptedCampaignConfig{StartingTime: cj.StartingTime, TotalSupply: supply}
	for e, ep := range cj.Epochs {
		epoch := domain.EncryptedEpoch{DurationSeconds: ep.DurationSeconds}
		for p, pos := range ep.Positions {
			lower, err := pos.TickLower.toDomain(priv)
			if err != nil {
				return nil, fmt.Errorf("epoch %d position %d tick_lower: %w", e, p, err)
			}
			upper, err := pos.TickUpper.toDomain(priv)
			if err != nil {
				return nil, fmt.Errorf("epoch %d position %d tick_upper: %w", e, p, err)
			}
			amount, err := pos.Amount.toDomain(priv)
			if err != nil {
				return nil, fmt.Errorf("epoch %d position %d amount: %w", e, p, err)
			}
			epoch.Positions = append(epoch.Positions, domain.EncryptedPosition{
				TickLower: lower,
				TickUpper: upper,
				Amount:    amount,
			})
		}
		cfg.Epochs = append(cfg.Epochs, epoch)
	}
	return cfg, nil
}

func (rj RecordJSON) toDomain(priv ed25519.PrivateKey) (domain.CiphertextRecord, error) {
	var rec domain.CiphertextRecord
	hash, err := hex.DecodeString(rj.Hash)
	if err != nil || len(hash) != domain.HashSize {
		return rec, fmt.Errorf("hash must be %d hex bytes", domain.HashSize)
	}
	copy(rec.Hash[:], hash)
	rec.SecurityZone = rj.SecurityZone
	rec.Type = rj.Type

	if rj.Signature != "" {
		rec.Signature, err = hex.DecodeString(rj.Signature)
		if err != nil {
			return rec, fmt.Errorf("signature: %w", err)
		}
	} else if priv != nil {
		rec.Signature = sigcheck.Sign(priv, rec)
	}
	return rec, nil
}

func fromDomain(cfg *domain.CampaignConfig) CampaignJSON {
	out := CampaignJSON{StartingTime: cfg.StartingTime}
	for _, ep := range cfg.Epochs {
		ej := EpochJSON{DurationSeconds: ep.DurationSeconds}
		for _, pos := range ep.Positions {
			ej.Positions = append(ej.Positions, PositionJSON{
				TickLower: pos.TickLower,
				TickUpper: pos.TickUpper,
				Amount:    pos.Amount.Dec(),
			})
		}
		out.Epochs = append(out.Epochs, ej)
	}
	return out
}

func fromDomainEncrypted(cfg *domain.EncryptedCampaignConfig) EncryptedCampaignJSON {
	out := EncryptedCampaignJSON{
		StartingTime: cfg.StartingTime,
		TotalSupply:  cfg.TotalSupply.Dec(),
	}
	for _, ep := range cfg.Epochs {
		ej := EncryptedEpochJSON{DurationSeconds: ep.DurationSeconds}
		for _, pos := range ep.Positions {
			ej.Positions = append(ej.Positions, EncryptedPositionJSON{
				TickLower: recordJSON(pos.TickLower),
				TickUpper: recordJSON(pos.TickUpper),
				Amount:    recordJSON(pos.Amount),
			})
		}
		out.Epochs = append(out.Epochs, ej)
	}
	return out
}

func recordJSON(rec domain.CiphertextRecord) RecordJSON {
	return RecordJSON{
		Hash:         rec.Handle(),
		SecurityZone: rec.SecurityZone,
		Type:         rec.Type,
		Signature:    hex.EncodeToString(rec.Signature),
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return nil, fmt.Errorf("--in is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
