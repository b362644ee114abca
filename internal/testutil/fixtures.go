package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carteira/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAsset creates a stock asset with a unique ticker.
func CreateTestAsset(t *testing.T, db *gorm.DB) *models.Asset {
	t.Helper()
	return CreateTestAssetWithType(t, db, models.AssetTypeStock)
}

// CreateTestAssetWithType creates an asset of the given type with a unique
// ticker.
func CreateTestAssetWithType(t *testing.T, db *gorm.DB, assetType models.AssetType) *models.Asset {
	t.Helper()
	ticker := fmt.Sprintf("TST%d", nextID())
	return CreateTestAssetWithTicker(t, db, ticker, assetType)
}

// CreateTestAssetWithTicker creates an asset with the given ticker and type.
func CreateTestAssetWithTicker(t *testing.T, db *gorm.DB, ticker string, assetType models.AssetType) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Ticker:    ticker,
		AssetType: assetType,
		Name:      fmt.Sprintf("Test Asset %s", ticker),
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestBuy creates a buy transaction with no fees.
func CreateTestBuy(t *testing.T, db *gorm.DB, assetID uint, tradeDate time.Time, quantity, pricePerUnit decimal.Decimal) *models.Transaction {
	t.Helper()
	return CreateTestTransaction(t, db, assetID, models.TransactionTypeBuy, tradeDate, quantity, pricePerUnit, false)
}

// CreateTestSell creates a sell transaction with no fees.
func CreateTestSell(t *testing.T, db *gorm.DB, assetID uint, tradeDate time.Time, quantity, pricePerUnit decimal.Decimal) *models.Transaction {
	t.Helper()
	return CreateTestTransaction(t, db, assetID, models.TransactionTypeSell, tradeDate, quantity, pricePerUnit, false)
}

// CreateTestTransaction creates a transaction of the given type with total
// cost derived from quantity and price.
func CreateTestTransaction(t *testing.T, db *gorm.DB, assetID uint, txType models.TransactionType, tradeDate time.Time, quantity, pricePerUnit decimal.Decimal, isDayTrade bool) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		AssetID:      assetID,
		Type:         txType,
		TradeDate:    tradeDate,
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
		TotalCost:    quantity.Mul(pricePerUnit),
		Fees:         decimal.Zero,
		IsDayTrade:   isDayTrade,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestAction creates an unapplied corporate action.
func CreateTestAction(t *testing.T, db *gorm.DB, assetID uint, actionType models.CorporateActionType, eventDate time.Time, ratioFrom, ratioTo int64) *models.CorporateAction {
	t.Helper()

	action := &models.CorporateAction{
		AssetID:    assetID,
		ActionType: actionType,
		EventDate:  eventDate,
		RatioFrom:  ratioFrom,
		RatioTo:    ratioTo,
	}
	if err := db.Create(action).Error; err != nil {
		t.Fatalf("failed to create test corporate action: %v", err)
	}
	return action
}

// Date is shorthand for a UTC calendar date in fixtures.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("invalid decimal literal %q: %v", value, err)
	}
	return d
}
