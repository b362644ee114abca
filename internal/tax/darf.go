package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

// DarfCode is the revenue code for capital gains on variable income.
const DarfCode = "6015"

// DarfPayment is one DARF slip owed for a month and category.
type DarfPayment struct {
	Year        int             `json:"year"`
	Month       time.Month      `json:"month"`
	Category    Category        `json:"category"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	TaxDue      decimal.Decimal `json:"tax_due"`
	DueDate     time.Time       `json:"due_date"`
}

// DarfDueDate returns the payment deadline for tax on a month's gains:
// the last day of the following month.
func DarfDueDate(year int, month time.Month) time.Time {
	// Day zero of month+2 is the last day of month+1.
	return time.Date(year, month+2, 0, 0, 0, 0, 0, time.UTC)
}

// DarfDescription returns the slip description for a category.
func DarfDescription(c Category) string {
	if c == CategoryStockDayTrade {
		return "Renda Variável - Day Trade"
	}
	return "Renda Variável - Operações Comuns"
}
