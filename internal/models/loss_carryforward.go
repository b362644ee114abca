package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LossCarryforwardSnapshot caches the unused realized losses per tax category
// at the end of a year. The fingerprint is a hash over the year's contributing
// transactions; a snapshot is only trusted when the fingerprint of the current
// ledger state matches. It is a pure cache: the tax engine must produce the
// same figures with the snapshot table empty.
type LossCarryforwardSnapshot struct {
	Base
	Year        int    `gorm:"not null;uniqueIndex:uq_loss_snapshots_year_fp" json:"year"`
	Fingerprint string `gorm:"not null;uniqueIndex:uq_loss_snapshots_year_fp" json:"fingerprint"`

	// Relationships
	Entries []LossCarryforwardEntry `gorm:"foreignKey:SnapshotID" json:"entries"`
}

// LossCarryforwardEntry is one category balance inside a snapshot.
type LossCarryforwardEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	SnapshotID uint            `gorm:"not null;index" json:"snapshot_id"`
	Category   string          `gorm:"not null" json:"category"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
