package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the side of a trade.
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Transaction is one buy or sell event in the append-only ledger.
//
// Rows are created by import or manual entry. After creation, quantity,
// price_per_unit and total_cost may be rewritten by the corporate action
// engine, and notes may gain a resolution marker from the term contract
// resolver. Nothing else mutates them.
type Transaction struct {
	Base
	AssetID        uint            `gorm:"not null;index" json:"asset_id"`
	Type           TransactionType `gorm:"column:transaction_type;not null" json:"transaction_type"`
	TradeDate      time.Time       `gorm:"not null;index" json:"trade_date"`
	SettlementDate *time.Time      `json:"settlement_date,omitempty"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	PricePerUnit   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price_per_unit"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_cost"`
	Fees           decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"fees"`
	IsDayTrade     bool            `gorm:"not null;default:false" json:"is_day_trade"`
	Notes          string          `json:"notes"`
	Source         string          `gorm:"not null" json:"source"`

	// Relationships
	Asset Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
