package models

import "time"

// ImportBatch records the provenance of one importer run. Transactions and
// corporate actions created by the batch carry its source tag.
type ImportBatch struct {
	ID               string    `gorm:"primaryKey" json:"id"` // UUIDv7
	Source           string    `gorm:"not null" json:"source"`
	TransactionCount int       `gorm:"not null;default:0" json:"transaction_count"`
	ActionCount      int       `gorm:"not null;default:0" json:"action_count"`
	ImportedAt       time.Time `gorm:"not null" json:"imported_at"`
}
