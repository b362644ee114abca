package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorporateActionType represents the kind of corporate event.
type CorporateActionType string

const (
	ActionTypeSplit         CorporateActionType = "SPLIT"
	ActionTypeReverseSplit  CorporateActionType = "REVERSE_SPLIT"
	ActionTypeBonus         CorporateActionType = "BONUS"
	ActionTypeCapitalReturn CorporateActionType = "CAPITAL_RETURN"
)

// CorporateAction is a ratio-changing or cost-reducing event for an asset.
//
// The ratio pair is type-specific: a share ratio for splits and bonus issues
// (RatioFrom old shares become RatioTo new shares), and cents per share for
// capital returns (RatioFrom holds the cents, RatioTo is zero).
//
// Applied is maintenance metadata only. The authoritative record of which
// transactions an action has touched is the corporate_action_adjustments log.
type CorporateAction struct {
	Base
	AssetID    uint                `gorm:"not null;index" json:"asset_id"`
	ActionType CorporateActionType `gorm:"not null" json:"action_type"`
	EventDate  time.Time           `gorm:"not null" json:"event_date"`
	ExDate     *time.Time          `json:"ex_date,omitempty"`
	RatioFrom  int64               `gorm:"not null" json:"ratio_from"`
	RatioTo    int64               `gorm:"not null" json:"ratio_to"`
	Applied    bool                `gorm:"not null;default:false" json:"applied"`
	Source     string              `gorm:"not null" json:"source"`
	Notes      string              `json:"notes"`

	// Relationships
	Asset Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

// CutoffDate returns the date that separates affected from unaffected
// transactions: the ex-date when known, otherwise the event date.
func (a *CorporateAction) CutoffDate() time.Time {
	if a.ExDate != nil {
		return *a.ExDate
	}
	return a.EventDate
}

// CorporateActionAdjustment is the junction log written exactly once per
// (action, transaction) pair. Its presence is the idempotence guard for
// apply: a logged transaction is never adjusted again by the same action.
type CorporateActionAdjustment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ActionID      uint            `gorm:"not null;uniqueIndex:uq_adjustments_action_tx" json:"action_id"`
	TransactionID uint            `gorm:"not null;uniqueIndex:uq_adjustments_action_tx" json:"transaction_id"`
	OldQuantity   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"old_quantity"`
	NewQuantity   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"new_quantity"`
	OldPrice      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"old_price"`
	NewPrice      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"new_price"`
	CreatedAt     time.Time       `json:"created_at"`
}
