// Package currency formats monetary amounts for report output.
package currency

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatBRL renders a decimal amount as Brazilian reais using the pt-BR
// locale convention (R$ 1.234,56). Amounts are rounded half-even to cents.
func FormatBRL(d decimal.Decimal) string {
	cents := d.RoundBank(2).Shift(2).IntPart()
	return money.New(cents, money.BRL).Display()
}
