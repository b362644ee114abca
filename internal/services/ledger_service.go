package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "carteira/internal/errors"
	"carteira/internal/logger"
	"carteira/internal/models"
	"carteira/internal/pagination"
	"carteira/internal/uuid"
)

// ledgerService handles the append-only transaction ledger.
type ledgerService struct {
	db           *gorm.DB
	assetService AssetServicer
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, assetService AssetServicer) LedgerServicer {
	return &ledgerService{db: db, assetService: assetService}
}

// validateTrade rejects non-positive quantities/prices and negative fees
// before anything reaches the ledger.
func validateTrade(quantity, pricePerUnit, fees decimal.Decimal) error {
	if !quantity.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrValidation, "Quantity must be positive")
	}
	if !pricePerUnit.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrValidation, "Price per unit must be positive")
	}
	if fees.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrValidation, "Fees must not be negative")
	}
	return nil
}

// CreateTransaction validates and appends one trade to the ledger.
// Total cost is quantity x price plus fees at creation time; corporate
// actions may rewrite it later.
func (s *ledgerService) CreateTransaction(
	assetID uint,
	txType models.TransactionType,
	tradeDate time.Time,
	settlementDate *time.Time,
	quantity, pricePerUnit, fees decimal.Decimal,
	isDayTrade bool,
	notes, source string,
) (*models.Transaction, error) {
	if _, err := s.assetService.GetAssetByID(assetID); err != nil {
		return nil, err
	}
	if err := validateTrade(quantity, pricePerUnit, fees); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		AssetID:        assetID,
		Type:           txType,
		TradeDate:      tradeDate,
		SettlementDate: settlementDate,
		Quantity:       quantity,
		PricePerUnit:   pricePerUnit,
		TotalCost:      quantity.Mul(pricePerUnit).Add(fees),
		Fees:           fees,
		IsDayTrade:     isDayTrade,
		Notes:          notes,
		Source:         source,
	}
	if err := s.db.Create(tx).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tx, nil
}

// GetTransactionByID returns a transaction by primary key.
func (s *ledgerService) GetTransactionByID(transactionID uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.Preload("Asset").First(&tx, transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tx, nil
}

// GetAssetTransactions returns a paginated list of an asset's transactions
// in chronological order.
func (s *ledgerService) GetAssetTransactions(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	if _, err := s.assetService.GetAssetByID(assetID); err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Transaction{}).Where("asset_id = ?", assetID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := s.db.Where("asset_id = ?", assetID).
		Order("trade_date ASC, id ASC").
		Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ImportBatch persists a validated importer batch atomically. A validation
// failure on any row aborts the whole batch identifying the offending record.
func (s *ledgerService) ImportBatch(source string, transactions []TransactionCandidate, actions []ActionCandidate) (*models.ImportBatch, error) {
	batch := &models.ImportBatch{
		ID:         uuid.New(),
		Source:     source,
		ImportedAt: time.Now().UTC(),
	}

	err := s.db.Transaction(func(dbtx *gorm.DB) error {
		for i, cand := range transactions {
			asset, err := lookupAssetByTicker(dbtx, cand.Ticker)
			if err != nil {
				return apperrors.WithMessage(apperrors.ErrValidation,
					fmt.Sprintf("Transaction %d (%s): unknown asset", i+1, cand.Ticker))
			}
			if err := validateTrade(cand.Quantity, cand.PricePerUnit, cand.Fees); err != nil {
				return apperrors.WithMessage(apperrors.ErrValidation,
					fmt.Sprintf("Transaction %d (%s %s): %s", i+1, cand.Ticker, cand.TradeDate.Format("2006-01-02"), err.Error()))
			}

			tx := &models.Transaction{
				AssetID:        asset.ID,
				Type:           cand.Type,
				TradeDate:      cand.TradeDate,
				SettlementDate: cand.SettlementDate,
				Quantity:       cand.Quantity,
				PricePerUnit:   cand.PricePerUnit,
				TotalCost:      cand.Quantity.Mul(cand.PricePerUnit).Add(cand.Fees),
				Fees:           cand.Fees,
				IsDayTrade:     cand.IsDayTrade,
				Notes:          cand.Notes,
				Source:         source,
			}
			if err := dbtx.Create(tx).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			batch.TransactionCount++
		}

		for i, cand := range actions {
			asset, err := lookupAssetByTicker(dbtx, cand.Ticker)
			if err != nil {
				return apperrors.WithMessage(apperrors.ErrValidation,
					fmt.Sprintf("Corporate action %d (%s): unknown asset", i+1, cand.Ticker))
			}
			if cand.RatioFrom <= 0 {
				return apperrors.WithMessage(apperrors.ErrValidation,
					fmt.Sprintf("Corporate action %d (%s): ratio_from must be positive", i+1, cand.Ticker))
			}

			action := &models.CorporateAction{
				AssetID:    asset.ID,
				ActionType: cand.ActionType,
				EventDate:  cand.EventDate,
				ExDate:     cand.ExDate,
				RatioFrom:  cand.RatioFrom,
				RatioTo:    cand.RatioTo,
				Source:     source,
				Notes:      cand.Notes,
			}
			if err := dbtx.Create(action).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			batch.ActionCount++
		}

		if err := dbtx.Create(batch).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("import batch persisted",
		"batch_id", batch.ID,
		"source", source,
		"transactions", batch.TransactionCount,
		"actions", batch.ActionCount,
	)
	return batch, nil
}

// PositionBeforeDate returns the net open quantity (buys minus sells) of an
// asset across transactions dated strictly before the given date.
func (s *ledgerService) PositionBeforeDate(assetID uint, date time.Time) (decimal.Decimal, error) {
	return positionBeforeDate(s.db, assetID, date)
}

func positionBeforeDate(db *gorm.DB, assetID uint, date time.Time) (decimal.Decimal, error) {
	var transactions []models.Transaction
	if err := db.Where("asset_id = ? AND trade_date < ?", assetID, date).
		Order("trade_date ASC, id ASC").Find(&transactions).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	position := decimal.Zero
	for _, tx := range transactions {
		if tx.Type == models.TransactionTypeBuy {
			position = position.Add(tx.Quantity)
		} else {
			position = position.Sub(tx.Quantity)
		}
	}
	return position, nil
}

func lookupAssetByTicker(db *gorm.DB, ticker string) (*models.Asset, error) {
	var asset models.Asset
	if err := db.Where("ticker = ?", ticker).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}
