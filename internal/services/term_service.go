package services

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "carteira/internal/errors"
	"carteira/internal/logger"
	"carteira/internal/models"
)

// TermLiquidationMarker is the note fragment the importer writes on the buy
// transaction created for the underlying ticker when a term contract expires.
// The note also names the source term ticker.
const TermLiquidationMarker = "Term contract liquidation"

// termResolvedMarker is appended to a liquidation's notes once the resolver
// has processed it, making repeat invocations no-ops.
const termResolvedMarker = "[term-resolved]"

// IsTermTicker reports whether a ticker follows the B3 term-contract
// convention: a trailing 'T' after the series digit (e.g. ANIM3T).
func IsTermTicker(ticker string) bool {
	if len(ticker) < 5 || !strings.HasSuffix(ticker, "T") {
		return false
	}
	return unicode.IsDigit(rune(ticker[len(ticker)-2]))
}

// BaseTicker returns the underlying ticker of a term contract
// (ANIM3T -> ANIM3). Non-term tickers are returned unchanged.
func BaseTicker(ticker string) string {
	if IsTermTicker(ticker) {
		return ticker[:len(ticker)-1]
	}
	return ticker
}

// TermTicker returns the term-contract ticker for an underlying
// (ANIM3 -> ANIM3T).
func TermTicker(base string) string {
	return base + "T"
}

// termService resolves term-contract liquidations into ordinary purchase
// lots on the underlying ticker. The liquidation transaction itself already
// carries the term contract's original price (the importer copies it over),
// so resolution is a matter of auditing the cost-basis transfer and marking
// the row processed. A term contract sold before expiry closes like any
// ordinary position under its own ticker.
type termService struct {
	db *gorm.DB
}

// NewTermService creates a new TermServicer.
func NewTermService(db *gorm.DB) TermServicer {
	return &termService{db: db}
}

// ProcessTermLiquidations finds unresolved liquidation transactions, matches
// each against the term contract's purchase lots to verify the carried cost
// basis, and marks them resolved. Returns the number processed.
func (s *termService) ProcessTermLiquidations() (int, error) {
	log := logger.Get()

	var liquidations []models.Transaction
	if err := s.db.Preload("Asset").
		Where("transaction_type = ? AND notes LIKE ? AND notes NOT LIKE ?",
			models.TransactionTypeBuy,
			"%"+TermLiquidationMarker+"%",
			"%"+termResolvedMarker+"%").
		Order("trade_date ASC, id ASC").
		Find(&liquidations).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	processed := 0
	for i := range liquidations {
		liq := &liquidations[i]

		termTicker := TermTicker(liq.Asset.Ticker)
		var termAsset models.Asset
		if err := s.db.Where("ticker = ?", termTicker).First(&termAsset).Error; err != nil {
			log.Warnw("no term contract asset for liquidation",
				"ticker", termTicker, "transaction_id", liq.ID)
			continue
		}

		avgCost, matched, err := s.matchTermPurchases(termAsset.ID, liq)
		if err != nil {
			return processed, err
		}
		if matched == 0 {
			log.Warnw("no matching term purchases for liquidation",
				"ticker", liq.Asset.Ticker,
				"trade_date", liq.TradeDate.Format("2006-01-02"),
			)
			continue
		}

		err = s.db.Transaction(func(dbtx *gorm.DB) error {
			notes := strings.TrimSpace(liq.Notes + " " + termResolvedMarker)
			return dbtx.Model(&models.Transaction{}).Where("id = ?", liq.ID).
				Update("notes", notes).Error
		})
		if err != nil {
			return processed, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		log.Infow("term liquidation resolved",
			"ticker", liq.Asset.Ticker,
			"quantity", liq.Quantity,
			"carried_price", liq.PricePerUnit,
			"term_avg_cost", avgCost,
			"matched_lots", matched,
		)
		processed++
	}

	log.Infow("term liquidation pass finished", "processed", processed)
	return processed, nil
}

// matchTermPurchases FIFO-matches a liquidation against the term contract's
// buy lots up to the liquidation date and returns the weighted average cost
// of the matched units plus the number of lots touched.
func (s *termService) matchTermPurchases(termAssetID uint, liq *models.Transaction) (decimal.Decimal, int, error) {
	var purchases []models.Transaction
	if err := s.db.Where("asset_id = ? AND transaction_type = ? AND trade_date <= ?",
		termAssetID, models.TransactionTypeBuy, liq.TradeDate).
		Order("trade_date ASC, id ASC").
		Find(&purchases).Error; err != nil {
		return decimal.Zero, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	remaining := liq.Quantity
	totalCost := decimal.Zero
	totalQty := decimal.Zero
	matched := 0
	for i := range purchases {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(purchases[i].Quantity, remaining)
		totalCost = totalCost.Add(take.Mul(purchases[i].PricePerUnit))
		totalQty = totalQty.Add(take)
		remaining = remaining.Sub(take)
		matched++
	}

	if remaining.IsPositive() {
		logger.Get().Warnw("liquidation exceeds available term purchases",
			"ticker", liq.Asset.Ticker,
			"quantity", liq.Quantity,
			"unmatched", remaining,
		)
	}

	if !totalQty.IsPositive() {
		return decimal.Zero, 0, nil
	}
	return totalCost.DivRound(totalQty, 8), matched, nil
}
