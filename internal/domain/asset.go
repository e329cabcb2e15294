package domain

// Asset names one side of the two-asset campaign pool.
type Asset string

const (
	// AssetLicense is the patent-license token being distributed.
	AssetLicense Asset = "LICENSE"
	// AssetSettlement is the counter-asset trades are paid in.
	AssetSettlement Asset = "SETTLEMENT"
)

// String returns the string representation of Asset.
func (a Asset) String() string {
	return string(a)
}

// IsValid checks if the asset is a known value.
func (a Asset) IsValid() bool {
	return a == AssetLicense || a == AssetSettlement
}
