package models

// AssetType represents the kind of instrument an asset is. Tax category
// derivation keys off this value.
type AssetType string

const (
	AssetTypeStock    AssetType = "STOCK"
	AssetTypeFII      AssetType = "FII"
	AssetTypeFiagro   AssetType = "FIAGRO"
	AssetTypeFiInfra  AssetType = "FI_INFRA"
	AssetTypeTreasury AssetType = "TREASURY"
)

// Asset represents a tradable instrument on B3 (or a treasury bond).
// The ledger and tax engines consume assets read-only.
type Asset struct {
	Base
	Ticker    string    `gorm:"not null;uniqueIndex" json:"ticker"`
	AssetType AssetType `gorm:"not null" json:"asset_type"`
	Name      string    `json:"name"`
}
