package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "carteira/internal/errors"
	"carteira/internal/logger"
	"carteira/internal/models"
)

// priceScale is the fixed decimal scale used when recomputing a unit price
// from a total cost. Eight places keeps fractional-share remainders well
// below the one-cent conservation tolerance.
const priceScale = 8

// conservationTolerance is the maximum allowed drift of quantity x price
// from the original total cost after a ratio adjustment.
var conservationTolerance = decimal.New(1, -2) // 0.01

// corporateActionService retroactively rewrites historical purchase lots when
// a ratio-changing or cost-reducing event is applied. The adjustment log
// (one row per action/transaction pair) makes application idempotent.
type corporateActionService struct {
	db           *gorm.DB
	assetService AssetServicer
}

// NewCorporateActionService creates a new CorporateActionServicer.
func NewCorporateActionService(db *gorm.DB, assetService AssetServicer) CorporateActionServicer {
	return &corporateActionService{db: db, assetService: assetService}
}

// CreateAction records a corporate action. Actions are immutable once
// created except for the maintenance `applied` flag and ratio resolution.
func (s *corporateActionService) CreateAction(
	assetID uint,
	actionType models.CorporateActionType,
	eventDate time.Time,
	exDate *time.Time,
	ratioFrom, ratioTo int64,
	source, notes string,
) (*models.CorporateAction, error) {
	if _, err := s.assetService.GetAssetByID(assetID); err != nil {
		return nil, err
	}
	if ratioFrom <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "ratio_from must be positive")
	}
	if ratioTo < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "ratio_to must not be negative")
	}

	action := &models.CorporateAction{
		AssetID:    assetID,
		ActionType: actionType,
		EventDate:  eventDate,
		ExDate:     exDate,
		RatioFrom:  ratioFrom,
		RatioTo:    ratioTo,
		Source:     source,
		Notes:      notes,
	}
	if err := s.db.Create(action).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return action, nil
}

// GetActionByID returns a corporate action by primary key.
func (s *corporateActionService) GetActionByID(actionID uint) (*models.CorporateAction, error) {
	var action models.CorporateAction
	if err := s.db.Preload("Asset").First(&action, actionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrActionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &action, nil
}

// GetUnappliedActions returns the actions that are not yet fully reconciled
// against every eligible transaction, ordered by cutoff date. The adjustment
// log is authoritative: an action flagged applied is still returned when new
// eligible transactions have appeared since it ran.
func (s *corporateActionService) GetUnappliedActions(assetID *uint) ([]models.CorporateAction, error) {
	query := s.db.Model(&models.CorporateAction{})
	if assetID != nil {
		query = query.Where("asset_id = ?", *assetID)
	}

	var actions []models.CorporateAction
	if err := query.Order("event_date ASC, id ASC").Find(&actions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var pending []models.CorporateAction
	for _, action := range actions {
		if !action.Applied {
			pending = append(pending, action)
			continue
		}
		count, err := s.countEligibleTransactions(s.db, &action)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			pending = append(pending, action)
		}
	}
	return pending, nil
}

// countEligibleTransactions counts buy transactions before the action's
// cutoff date that have no adjustment-log row for it yet.
func (s *corporateActionService) countEligibleTransactions(db *gorm.DB, action *models.CorporateAction) (int64, error) {
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("asset_id = ? AND transaction_type = ? AND trade_date < ?",
			action.AssetID, models.TransactionTypeBuy, action.CutoffDate()).
		Where("NOT EXISTS (SELECT 1 FROM corporate_action_adjustments caa WHERE caa.action_id = ? AND caa.transaction_id = transactions.id)",
			action.ID).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count, nil
}

// ApplyCorporateAction rewrites every eligible buy transaction for the
// action's asset and logs each adjustment, all inside one database
// transaction. A repeat call with no new eligible transactions returns 0 and
// leaves state unchanged.
func (s *corporateActionService) ApplyCorporateAction(actionID uint) (int, error) {
	action, err := s.GetActionByID(actionID)
	if err != nil {
		return 0, err
	}
	asset, err := s.assetService.GetAssetByID(action.AssetID)
	if err != nil {
		return 0, err
	}

	log := logger.Get()
	log.Infow("applying corporate action",
		"action_id", action.ID,
		"ticker", asset.Ticker,
		"type", action.ActionType,
		"ratio", formatRatio(action),
	)

	adjusted := 0
	err = s.db.Transaction(func(dbtx *gorm.DB) error {
		var transactions []models.Transaction
		if err := dbtx.Where("asset_id = ? AND transaction_type = ? AND trade_date < ?",
			action.AssetID, models.TransactionTypeBuy, action.CutoffDate()).
			Where("NOT EXISTS (SELECT 1 FROM corporate_action_adjustments caa WHERE caa.action_id = ? AND caa.transaction_id = transactions.id)",
				action.ID).
			Order("trade_date ASC, id ASC").
			Find(&transactions).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for i := range transactions {
			tx := &transactions[i]
			newQuantity, newPrice, newTotal := adjustTransaction(action, tx)

			// Ratio adjustments must conserve the invested amount.
			if action.ActionType != models.ActionTypeCapitalReturn {
				drift := newQuantity.Mul(newPrice).Sub(tx.TotalCost).Abs()
				if drift.GreaterThan(conservationTolerance) {
					log.Warnw("total cost drifted after adjustment",
						"transaction_id", tx.ID,
						"old_total", tx.TotalCost,
						"new_total", newQuantity.Mul(newPrice),
						"drift", drift,
					)
				}
			}

			adjustment := &models.CorporateActionAdjustment{
				ActionID:      action.ID,
				TransactionID: tx.ID,
				OldQuantity:   tx.Quantity,
				NewQuantity:   newQuantity,
				OldPrice:      tx.PricePerUnit,
				NewPrice:      newPrice,
			}
			if err := dbtx.Create(adjustment).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			if err := dbtx.Model(&models.Transaction{}).Where("id = ?", tx.ID).
				Updates(map[string]interface{}{
					"quantity":       newQuantity,
					"price_per_unit": newPrice,
					"total_cost":     newTotal,
				}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			adjusted++
		}

		if err := dbtx.Model(&models.CorporateAction{}).Where("id = ?", action.ID).
			Update("applied", true).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if adjusted == 0 {
		log.Infow("no unadjusted transactions before cutoff",
			"action_id", action.ID, "cutoff", action.CutoffDate().Format("2006-01-02"))
	} else {
		log.Infow("corporate action applied",
			"action_id", action.ID, "ticker", asset.Ticker, "adjusted", adjusted)
	}
	return adjusted, nil
}

// adjustTransaction computes the rewritten (quantity, price, total) for one
// buy transaction under the given action.
//
// Splits, reverse splits and bonus issues scale the quantity by
// ratioTo/ratioFrom and recompute the price from the unchanged total cost,
// so fee allocation and fractional-share rounding stay consistent. Capital
// returns reduce the total cost by ratioFrom cents per share (clamped at
// zero) and recompute the price over the unchanged quantity.
func adjustTransaction(action *models.CorporateAction, tx *models.Transaction) (quantity, price, total decimal.Decimal) {
	switch action.ActionType {
	case models.ActionTypeCapitalReturn:
		amountPerShare := decimal.NewFromInt(action.RatioFrom).Shift(-2)
		reduction := amountPerShare.Mul(tx.Quantity)
		newTotal := decimal.Max(tx.TotalCost.Sub(reduction), decimal.Zero)
		newPrice := decimal.Zero
		if tx.Quantity.IsPositive() {
			newPrice = newTotal.DivRound(tx.Quantity, priceScale)
		}
		return tx.Quantity, newPrice, newTotal
	default:
		ratioFrom := decimal.NewFromInt(action.RatioFrom)
		ratioTo := decimal.NewFromInt(action.RatioTo)
		newQuantity := tx.Quantity.Mul(ratioTo).DivRound(ratioFrom, priceScale)
		newPrice := decimal.Zero
		if newQuantity.IsPositive() {
			newPrice = tx.TotalCost.DivRound(newQuantity, priceScale)
		}
		return newQuantity, newPrice, tx.TotalCost
	}
}

// ApplyAllPending applies every unreconciled action (optionally for one
// asset) in cutoff-date order and returns the total transactions adjusted.
func (s *corporateActionService) ApplyAllPending(assetID *uint) (int, error) {
	pending, err := s.GetUnappliedActions(assetID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, action := range pending {
		count, err := s.ApplyCorporateAction(action.ID)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

// ResolveActionRatio infers the share ratio of an action whose nominal ratio
// is uninformative (1:1) by comparing the position held before the event
// against the credited quantity. The action is updated in place on success.
// When no integral ratio can be derived the action is left untouched and
// ErrUnresolvedRatio is returned; callers treat this as a warning, not a
// failure.
func (s *corporateActionService) ResolveActionRatio(actionID uint, creditedQuantity decimal.Decimal) (*models.CorporateAction, error) {
	action, err := s.GetActionByID(actionID)
	if err != nil {
		return nil, err
	}
	if action.RatioFrom != action.RatioTo {
		// Ratio already informative.
		return action, nil
	}

	oldQuantity, err := positionBeforeDate(s.db, action.AssetID, action.CutoffDate())
	if err != nil {
		return nil, err
	}
	if !oldQuantity.IsPositive() {
		logger.Get().Warnw("cannot infer split ratio: no position before event",
			"action_id", action.ID, "cutoff", action.CutoffDate().Format("2006-01-02"))
		return nil, apperrors.ErrUnresolvedRatio
	}

	ratioTo, ok := inferIntegralRatio(oldQuantity, creditedQuantity)
	if !ok {
		logger.Get().Warnw("cannot infer split ratio: no integral multiple",
			"action_id", action.ID,
			"position", oldQuantity,
			"credited", creditedQuantity,
		)
		return nil, apperrors.ErrUnresolvedRatio
	}

	if err := s.db.Model(&models.CorporateAction{}).Where("id = ?", action.ID).
		Updates(map[string]interface{}{"ratio_from": 1, "ratio_to": ratioTo}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	action.RatioFrom = 1
	action.RatioTo = ratioTo
	logger.Get().Infow("inferred split ratio from credited quantity",
		"action_id", action.ID, "ratio_to", ratioTo)
	return action, nil
}

// inferIntegralRatio tries (old+credited)/old first (the credit is the new
// shares on top of the position), then credited/old (the credit is the full
// post-split position). Either must be a positive integer greater than one.
func inferIntegralRatio(oldQuantity, creditedQuantity decimal.Decimal) (int64, bool) {
	fromIncrement := oldQuantity.Add(creditedQuantity).Div(oldQuantity)
	if isIntegralAboveOne(fromIncrement) {
		return fromIncrement.IntPart(), true
	}
	fromTotal := creditedQuantity.Div(oldQuantity)
	if isIntegralAboveOne(fromTotal) {
		return fromTotal.IntPart(), true
	}
	return 0, false
}

func isIntegralAboveOne(d decimal.Decimal) bool {
	return d.IsInteger() && d.IntPart() > 1
}

func formatRatio(action *models.CorporateAction) string {
	return decimal.NewFromInt(action.RatioFrom).String() + ":" + decimal.NewFromInt(action.RatioTo).String()
}
