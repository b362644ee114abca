package tax

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "carteira/internal/errors"
	"carteira/internal/models"
)

func buyTx(day int, quantity, price int64) *models.Transaction {
	return &models.Transaction{
		Type:         models.TransactionTypeBuy,
		TradeDate:    time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC),
		Quantity:     decimal.NewFromInt(quantity),
		PricePerUnit: decimal.NewFromInt(price),
		TotalCost:    decimal.NewFromInt(quantity * price),
	}
}

func sellTx(day int, quantity, price int64) *models.Transaction {
	tx := buyTx(day, quantity, price)
	tx.Type = models.TransactionTypeSell
	return tx
}

func TestMatchSale(t *testing.T) {
	t.Run("consumes_oldest_lot_first", func(t *testing.T) {
		m := NewFifoMatcher()
		m.AddPurchase(buyTx(1, 100, 25))
		m.AddPurchase(buyTx(2, 50, 30))

		result, err := m.MatchSale(sellTx(10, 80, 40))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := decimal.NewFromInt(2000); !result.CostBasis.Equal(want) {
			t.Errorf("expected cost basis %s, got %s", want, result.CostBasis)
		}
		if want := decimal.NewFromInt(3200); !result.SaleTotal.Equal(want) {
			t.Errorf("expected sale total %s, got %s", want, result.SaleTotal)
		}
		if want := decimal.NewFromInt(1200); !result.ProfitLoss.Equal(want) {
			t.Errorf("expected profit %s, got %s", want, result.ProfitLoss)
		}
		if want := decimal.NewFromInt(70); !m.RemainingQuantity().Equal(want) {
			t.Errorf("expected remaining quantity %s, got %s", want, m.RemainingQuantity())
		}
	})

	t.Run("spans_multiple_lots", func(t *testing.T) {
		m := NewFifoMatcher()
		m.AddPurchase(buyTx(1, 100, 25))
		m.AddPurchase(buyTx(2, 50, 30))

		result, err := m.MatchSale(sellTx(10, 120, 40))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 100 @ 25 + 20 @ 30
		if want := decimal.NewFromInt(3100); !result.CostBasis.Equal(want) {
			t.Errorf("expected cost basis %s, got %s", want, result.CostBasis)
		}
		if want := decimal.NewFromInt(30); !m.RemainingQuantity().Equal(want) {
			t.Errorf("expected remaining quantity %s, got %s", want, m.RemainingQuantity())
		}
	})

	t.Run("realizes_loss", func(t *testing.T) {
		m := NewFifoMatcher()
		m.AddPurchase(buyTx(1, 100, 30))

		result, err := m.MatchSale(sellTx(10, 100, 25))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := decimal.NewFromInt(-500); !result.ProfitLoss.Equal(want) {
			t.Errorf("expected loss %s, got %s", want, result.ProfitLoss)
		}
	})

	t.Run("rejects_oversell", func(t *testing.T) {
		m := NewFifoMatcher()
		m.AddPurchase(buyTx(1, 100, 25))

		_, err := m.MatchSale(sellTx(10, 150, 40))
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrInsufficientPosition.Code {
			t.Fatalf("expected insufficient position error, got %v", err)
		}
		// Lots must be untouched after a rejected sale.
		if want := decimal.NewFromInt(100); !m.RemainingQuantity().Equal(want) {
			t.Errorf("expected remaining quantity %s, got %s", want, m.RemainingQuantity())
		}
	})

	t.Run("rejects_non_sale", func(t *testing.T) {
		m := NewFifoMatcher()
		_, err := m.MatchSale(buyTx(1, 10, 10))
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrInvalidInput.Code {
			t.Fatalf("expected invalid input error, got %v", err)
		}
	})
}

func TestAddPurchaseIgnoresSales(t *testing.T) {
	m := NewFifoMatcher()
	m.AddPurchase(sellTx(1, 100, 25))

	if !m.RemainingQuantity().IsZero() {
		t.Errorf("expected no open lots, got %s", m.RemainingQuantity())
	}
}
