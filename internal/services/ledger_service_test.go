package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/models"
	"carteira/internal/pagination"
	"carteira/internal/testutil"
)

func newLedgerFixture(t *testing.T) (LedgerServicer, *models.Asset, func()) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewLedgerService(db, NewAssetService(db))
	asset := testutil.CreateTestAsset(t, db)
	return svc, asset, func() { testutil.TeardownTestDB(t, db) }
}

func TestCreateTransaction(t *testing.T) {
	t.Run("total_cost_includes_fees", func(t *testing.T) {
		svc, asset, teardown := newLedgerFixture(t)
		defer teardown()

		tx, err := svc.CreateTransaction(asset.ID, models.TransactionTypeBuy,
			testutil.Date(2024, time.January, 10), nil,
			decimal.NewFromInt(100), decimal.NewFromInt(25), testutil.Dec(t, "5.20"),
			false, "", "manual")
		testutil.AssertNoError(t, err)

		testutil.AssertDecimalEqual(t, testutil.Dec(t, "2505.20"), tx.TotalCost, "total cost")
	})

	t.Run("rejects_non_positive_quantity", func(t *testing.T) {
		svc, asset, teardown := newLedgerFixture(t)
		defer teardown()

		_, err := svc.CreateTransaction(asset.ID, models.TransactionTypeBuy,
			testutil.Date(2024, time.January, 10), nil,
			decimal.Zero, decimal.NewFromInt(25), decimal.Zero,
			false, "", "")
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("rejects_negative_fees", func(t *testing.T) {
		svc, asset, teardown := newLedgerFixture(t)
		defer teardown()

		_, err := svc.CreateTransaction(asset.ID, models.TransactionTypeBuy,
			testutil.Date(2024, time.January, 10), nil,
			decimal.NewFromInt(10), decimal.NewFromInt(25), decimal.NewFromInt(-1),
			false, "", "")
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("unknown_asset", func(t *testing.T) {
		svc, _, teardown := newLedgerFixture(t)
		defer teardown()

		_, err := svc.CreateTransaction(9999, models.TransactionTypeBuy,
			testutil.Date(2024, time.January, 10), nil,
			decimal.NewFromInt(10), decimal.NewFromInt(25), decimal.Zero,
			false, "", "")
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})
}

func TestGetAssetTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewLedgerService(db, NewAssetService(db))
	asset := testutil.CreateTestAsset(t, db)

	// Insert out of chronological order; listing must come back sorted.
	testutil.CreateTestBuy(t, db, asset.ID, testutil.Date(2024, time.March, 1), decimal.NewFromInt(10), decimal.NewFromInt(30))
	testutil.CreateTestBuy(t, db, asset.ID, testutil.Date(2024, time.January, 1), decimal.NewFromInt(10), decimal.NewFromInt(25))
	testutil.CreateTestBuy(t, db, asset.ID, testutil.Date(2024, time.February, 1), decimal.NewFromInt(10), decimal.NewFromInt(28))

	result, err := svc.GetAssetTransactions(asset.ID, pagination.PageRequest{Page: 1, PageSize: 20})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 3 {
		t.Fatalf("expected 3 transactions, got %d", result.TotalItems)
	}
	for i := 1; i < len(result.Data); i++ {
		if result.Data[i].TradeDate.Before(result.Data[i-1].TradeDate) {
			t.Errorf("transactions not in chronological order at position %d", i)
		}
	}
}

func TestImportBatch(t *testing.T) {
	t.Run("persists_transactions_and_actions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db, NewAssetService(db))
		asset := testutil.CreateTestAssetWithTicker(t, db, "PETR4", models.AssetTypeStock)

		batch, err := svc.ImportBatch("b3-statement",
			[]TransactionCandidate{
				{
					Ticker:       "PETR4",
					Type:         models.TransactionTypeBuy,
					TradeDate:    testutil.Date(2024, time.January, 10),
					Quantity:     decimal.NewFromInt(100),
					PricePerUnit: decimal.NewFromInt(30),
					Fees:         decimal.Zero,
				},
			},
			[]ActionCandidate{
				{
					Ticker:     "PETR4",
					ActionType: models.ActionTypeSplit,
					EventDate:  testutil.Date(2024, time.June, 1),
					RatioFrom:  1,
					RatioTo:    2,
				},
			})
		testutil.AssertNoError(t, err)

		if batch.TransactionCount != 1 || batch.ActionCount != 1 {
			t.Errorf("expected counts 1/1, got %d/%d", batch.TransactionCount, batch.ActionCount)
		}
		if batch.ID == "" {
			t.Error("expected a batch ID")
		}

		var txCount int64
		db.Model(&models.Transaction{}).Where("asset_id = ?", asset.ID).Count(&txCount)
		if txCount != 1 {
			t.Errorf("expected 1 persisted transaction, got %d", txCount)
		}
	})

	t.Run("invalid_row_aborts_whole_batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db, NewAssetService(db))
		testutil.CreateTestAssetWithTicker(t, db, "PETR4", models.AssetTypeStock)

		_, err := svc.ImportBatch("b3-statement",
			[]TransactionCandidate{
				{
					Ticker:       "PETR4",
					Type:         models.TransactionTypeBuy,
					TradeDate:    testutil.Date(2024, time.January, 10),
					Quantity:     decimal.NewFromInt(100),
					PricePerUnit: decimal.NewFromInt(30),
				},
				{
					Ticker:       "PETR4",
					Type:         models.TransactionTypeBuy,
					TradeDate:    testutil.Date(2024, time.January, 11),
					Quantity:     decimal.NewFromInt(-5),
					PricePerUnit: decimal.NewFromInt(30),
				},
			}, nil)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")

		var txCount int64
		db.Model(&models.Transaction{}).Count(&txCount)
		if txCount != 0 {
			t.Errorf("expected rollback to leave 0 transactions, got %d", txCount)
		}
		var batchCount int64
		db.Model(&models.ImportBatch{}).Count(&batchCount)
		if batchCount != 0 {
			t.Errorf("expected rollback to leave 0 batches, got %d", batchCount)
		}
	})

	t.Run("unknown_ticker_names_record", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLedgerService(db, NewAssetService(db))

		_, err := svc.ImportBatch("b3-statement",
			[]TransactionCandidate{
				{
					Ticker:       "XXXX9",
					Type:         models.TransactionTypeBuy,
					TradeDate:    testutil.Date(2024, time.January, 10),
					Quantity:     decimal.NewFromInt(1),
					PricePerUnit: decimal.NewFromInt(1),
				},
			}, nil)
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestPositionBeforeDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewLedgerService(db, NewAssetService(db))
	asset := testutil.CreateTestAsset(t, db)

	testutil.CreateTestBuy(t, db, asset.ID, testutil.Date(2024, time.January, 10), decimal.NewFromInt(100), decimal.NewFromInt(10))
	testutil.CreateTestSell(t, db, asset.ID, testutil.Date(2024, time.February, 10), decimal.NewFromInt(30), decimal.NewFromInt(12))
	testutil.CreateTestBuy(t, db, asset.ID, testutil.Date(2024, time.March, 10), decimal.NewFromInt(50), decimal.NewFromInt(11))

	position, err := svc.PositionBeforeDate(asset.ID, testutil.Date(2024, time.March, 10))
	testutil.AssertNoError(t, err)
	// The March 10 buy is on the boundary and must be excluded.
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(70), position, "position before date")
}
