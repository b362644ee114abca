package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "carteira/internal/errors"
	"carteira/internal/models"
)

// lot is an open purchase awaiting consumption by a future sale.
type lot struct {
	tradeDate time.Time
	remaining decimal.Decimal
	unitCost  decimal.Decimal
}

// SaleResult is the realized outcome of matching one sale against open lots.
type SaleResult struct {
	SaleDate   time.Time
	Quantity   decimal.Decimal
	SalePrice  decimal.Decimal
	SaleTotal  decimal.Decimal
	CostBasis  decimal.Decimal
	ProfitLoss decimal.Decimal
}

// FifoMatcher consumes purchase lots in the order they were added to compute
// the cost basis of sales. Callers feed purchases in ascending trade-date
// order (ties by insertion order), which makes consumption strictly FIFO.
//
// The matcher never fabricates short positions: selling more than the open
// quantity is an error.
type FifoMatcher struct {
	lots []lot
}

// NewFifoMatcher creates an empty matcher for a single asset.
func NewFifoMatcher() *FifoMatcher {
	return &FifoMatcher{}
}

// AddPurchase appends an open lot for a buy transaction. Non-buy
// transactions are ignored.
func (m *FifoMatcher) AddPurchase(tx *models.Transaction) {
	if tx.Type != models.TransactionTypeBuy {
		return
	}
	m.lots = append(m.lots, lot{
		tradeDate: tx.TradeDate,
		remaining: tx.Quantity,
		unitCost:  tx.PricePerUnit,
	})
}

// MatchSale consumes open lots to satisfy the sale and returns the realized
// cost basis, sale total, and profit/loss.
func (m *FifoMatcher) MatchSale(tx *models.Transaction) (*SaleResult, error) {
	if tx.Type != models.TransactionTypeSell {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction is not a sale")
	}

	open := m.RemainingQuantity()
	if tx.Quantity.GreaterThan(open) {
		return nil, apperrors.WithMessage(apperrors.ErrInsufficientPosition,
			fmt.Sprintf("sale of %s units on %s exceeds open position of %s",
				tx.Quantity, tx.TradeDate.Format("2006-01-02"), open))
	}

	remaining := tx.Quantity
	costBasis := decimal.Zero

	for remaining.IsPositive() {
		head := &m.lots[0]
		take := decimal.Min(head.remaining, remaining)
		costBasis = costBasis.Add(take.Mul(head.unitCost))
		head.remaining = head.remaining.Sub(take)
		remaining = remaining.Sub(take)

		if head.remaining.IsZero() {
			m.lots = m.lots[1:]
		}
	}

	saleTotal := tx.Quantity.Mul(tx.PricePerUnit)

	return &SaleResult{
		SaleDate:   tx.TradeDate,
		Quantity:   tx.Quantity,
		SalePrice:  tx.PricePerUnit,
		SaleTotal:  saleTotal,
		CostBasis:  costBasis,
		ProfitLoss: saleTotal.Sub(costBasis),
	}, nil
}

// RemainingQuantity reports the total open units across all lots.
func (m *FifoMatcher) RemainingQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range m.lots {
		total = total.Add(l.remaining)
	}
	return total
}
