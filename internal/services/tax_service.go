package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "carteira/internal/errors"
	"carteira/internal/logger"
	"carteira/internal/models"
	"carteira/internal/tax"
)

// sentinelFingerprint is stored when fingerprint computation fails. It never
// matches a freshly computed fingerprint, so the cache degrades to a miss
// instead of aborting the operation.
const sentinelFingerprint = "fingerprint-unavailable"

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName returns the pt-BR month name used in report output.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return "Desconhecido"
	}
	return monthNames[m-1]
}

// realizedSale is one FIFO-matched sale with its tax classification.
type realizedSale struct {
	year     int
	month    time.Month
	category tax.Category
	result   tax.SaleResult
}

// categoryTotals accumulates one (month, category) cell.
type categoryTotals struct {
	sales  decimal.Decimal
	profit decimal.Decimal
}

// taxService groups realized sales by month and category, applies the
// exemption and rate rules, and tracks loss carryforward across periods.
// Carryforward balances are cached per year under a content fingerprint of
// the contributing transactions; correctness never depends on the cache.
type taxService struct {
	db *gorm.DB
}

// NewTaxService creates a new TaxServicer.
func NewTaxService(db *gorm.DB) TaxServicer {
	return &taxService{db: db}
}

// collectRealizedSales replays every asset's ledger through the given date
// with a FIFO matcher and returns the realized sales in chronological order.
// Sales of asset types outside the tax categories (treasury) consume lots
// but produce no realized event.
func (s *taxService) collectRealizedSales(through time.Time) ([]realizedSale, error) {
	var assets []models.Asset
	if err := s.db.Order("id ASC").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var realized []realizedSale
	for i := range assets {
		asset := &assets[i]

		var transactions []models.Transaction
		if err := s.db.Where("asset_id = ? AND trade_date <= ?", asset.ID, through).
			Order("trade_date ASC, id ASC").
			Find(&transactions).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		matcher := tax.NewFifoMatcher()
		for j := range transactions {
			txRow := &transactions[j]
			if txRow.Type == models.TransactionTypeBuy {
				matcher.AddPurchase(txRow)
				continue
			}

			result, err := matcher.MatchSale(txRow)
			if err != nil {
				return nil, apperrors.WithMessage(apperrors.ErrInsufficientPosition,
					fmt.Sprintf("%s: %s", asset.Ticker, err.Error()))
			}

			category, ok := tax.CategoryFor(asset.AssetType, txRow.IsDayTrade)
			if !ok {
				continue
			}
			realized = append(realized, realizedSale{
				year:     txRow.TradeDate.Year(),
				month:    txRow.TradeDate.Month(),
				category: category,
				result:   *result,
			})
		}
	}

	// Sales aggregate by trade date, so insertion order cannot affect the
	// report. Sort keeps the monthly replay chronological across assets.
	sort.SliceStable(realized, func(a, b int) bool {
		if realized[a].year != realized[b].year {
			return realized[a].year < realized[b].year
		}
		return realized[a].month < realized[b].month
	})
	return realized, nil
}

// aggregateMonth sums sales and profit per category for one month's realized
// sales.
func aggregateMonth(sales []realizedSale, year int, month time.Month) map[tax.Category]*categoryTotals {
	totals := make(map[tax.Category]*categoryTotals)
	for _, rs := range sales {
		if rs.year != year || rs.month != month {
			continue
		}
		cell, ok := totals[rs.category]
		if !ok {
			cell = &categoryTotals{sales: decimal.Zero, profit: decimal.Zero}
			totals[rs.category] = cell
		}
		cell.sales = cell.sales.Add(rs.result.SaleTotal)
		cell.profit = cell.profit.Add(rs.result.ProfitLoss)
	}
	return totals
}

// settleMonth applies the exemption/rate rules to one month's aggregates and
// updates the carryforward balances in place. A negative month feeds the
// category's carryforward; a positive month first consumes any balance.
// Exempt stock swing months (sales at or under the threshold) owe no tax and
// leave the carryforward untouched.
func settleMonth(totals map[tax.Category]*categoryTotals, carry map[tax.Category]decimal.Decimal) []CategorySummary {
	var summaries []CategorySummary
	for _, category := range tax.AllCategories() {
		cell, ok := totals[category]
		if !ok {
			continue
		}

		summary := CategorySummary{
			Category:            category,
			Sales:               cell.sales,
			Profit:              cell.profit,
			CarryforwardApplied: decimal.Zero,
			TaxDue:              decimal.Zero,
		}

		switch {
		case cell.profit.IsNegative():
			carry[category] = carry[category].Add(cell.profit.Neg())
		case isExemptMonth(category, cell.sales):
			// No tax due and no carryforward consumed.
		default:
			applied := decimal.Min(carry[category], cell.profit)
			taxable := cell.profit.Sub(applied)
			carry[category] = carry[category].Sub(applied)
			summary.CarryforwardApplied = applied
			summary.TaxDue = taxable.Mul(tax.RuleFor(category).Rate)
		}

		summaries = append(summaries, summary)
	}
	return summaries
}

func isExemptMonth(category tax.Category, sales decimal.Decimal) bool {
	exemption := tax.RuleFor(category).MonthlySalesExemption
	return exemption.IsPositive() && sales.LessThanOrEqual(exemption)
}

// carryforwardThrough replays the full realized history and returns the
// per-category balances at the end of the given year. This is the
// recompute-on-demand path; it must stay correct independent of caching.
func (s *taxService) carryforwardThrough(sales []realizedSale, year int) map[tax.Category]decimal.Decimal {
	carry := make(map[tax.Category]decimal.Decimal)
	for _, category := range tax.AllCategories() {
		carry[category] = decimal.Zero
	}

	if len(sales) == 0 {
		return carry
	}

	firstYear := sales[0].year
	for y := firstYear; y <= year; y++ {
		for month := time.January; month <= time.December; month++ {
			totals := aggregateMonth(sales, y, month)
			if len(totals) == 0 {
				continue
			}
			settleMonth(totals, carry)
		}
	}
	return carry
}

// openingCarryforward returns the balances entering the given year, using
// the previous year's snapshot when its fingerprint still matches the
// ledger, and recomputing from the full history otherwise.
func (s *taxService) openingCarryforward(sales []realizedSale, year int) map[tax.Category]decimal.Decimal {
	prevYear := year - 1
	fingerprint := s.yearFingerprint(prevYear)

	if balances, ok := s.loadSnapshot(prevYear, fingerprint); ok {
		logger.Get().Debugw("loss carryforward snapshot hit", "year", prevYear)
		return balances
	}

	balances := s.carryforwardThrough(sales, prevYear)
	s.upsertSnapshot(prevYear, fingerprint, balances)
	return balances
}

// ComputeAnnualReport builds the deterministic IRPF report for a year.
// Repeated computation over an unchanged ledger yields identical output.
func (s *taxService) ComputeAnnualReport(year int) (*AnnualTaxReport, error) {
	yearEnd := endOfYear(year)
	sales, err := s.collectRealizedSales(yearEnd)
	if err != nil {
		return nil, err
	}

	carry := s.openingCarryforward(sales, year)

	report := &AnnualTaxReport{
		Year:              year,
		AnnualTotalSales:  decimal.Zero,
		AnnualTotalProfit: decimal.Zero,
		AnnualTotalTax:    decimal.Zero,
	}

	for month := time.January; month <= time.December; month++ {
		totals := aggregateMonth(sales, year, month)
		if len(totals) == 0 {
			continue
		}

		summaries := settleMonth(totals, carry)

		monthly := MonthlySummary{
			Month:      month,
			MonthName:  MonthName(month),
			TotalSales: decimal.Zero,
			TaxDue:     decimal.Zero,
			Categories: summaries,
		}
		for _, cs := range summaries {
			monthly.TotalSales = monthly.TotalSales.Add(cs.Sales)
			monthly.TaxDue = monthly.TaxDue.Add(cs.TaxDue)
			report.AnnualTotalProfit = report.AnnualTotalProfit.Add(cs.Profit)
		}
		report.AnnualTotalSales = report.AnnualTotalSales.Add(monthly.TotalSales)
		report.AnnualTotalTax = report.AnnualTotalTax.Add(monthly.TaxDue)
		report.MonthlySummaries = append(report.MonthlySummaries, monthly)
	}

	for _, category := range tax.AllCategories() {
		if carry[category].IsPositive() {
			report.LossCarryforward = append(report.LossCarryforward, CategoryAmount{
				Category: category,
				Amount:   carry[category],
			})
		}
	}

	s.upsertSnapshot(year, s.yearFingerprint(year), carry)
	return report, nil
}

// ComputeMonthlyTax returns the per-category figures and DARF payments for
// one month, with carryforward replayed from the start of the ledger.
func (s *taxService) ComputeMonthlyTax(year int, month time.Month) ([]CategorySummary, []tax.DarfPayment, error) {
	monthEnd := endOfMonth(year, month)
	sales, err := s.collectRealizedSales(monthEnd)
	if err != nil {
		return nil, nil, err
	}

	carry := make(map[tax.Category]decimal.Decimal)
	for _, category := range tax.AllCategories() {
		carry[category] = decimal.Zero
	}
	if len(sales) > 0 {
		for y := sales[0].year; y <= year; y++ {
			lastMonth := time.December
			if y == year {
				lastMonth = month - 1
			}
			for m := time.January; m <= lastMonth; m++ {
				totals := aggregateMonth(sales, y, m)
				if len(totals) == 0 {
					continue
				}
				settleMonth(totals, carry)
			}
		}
	}

	totals := aggregateMonth(sales, year, month)
	summaries := settleMonth(totals, carry)

	var payments []tax.DarfPayment
	for _, cs := range summaries {
		if !cs.TaxDue.IsPositive() {
			continue
		}
		payments = append(payments, tax.DarfPayment{
			Year:        year,
			Month:       month,
			Category:    cs.Category,
			Code:        tax.DarfCode,
			Description: tax.DarfDescription(cs.Category),
			TaxDue:      cs.TaxDue,
			DueDate:     tax.DarfDueDate(year, month),
		})
	}
	return summaries, payments, nil
}

// ExportAnnualReportCSV renders the report with a stable column order.
func (s *taxService) ExportAnnualReportCSV(report *AnnualTaxReport) string {
	out := "Mês,Vendas Totais,Lucro,Imposto Devido\n"
	for _, monthly := range report.MonthlySummaries {
		out += fmt.Sprintf("%s,%s,%s,%s\n",
			monthly.MonthName,
			monthly.TotalSales.StringFixed(2),
			sumMonthProfit(monthly).StringFixed(2),
			monthly.TaxDue.StringFixed(2),
		)
	}
	out += fmt.Sprintf("\nTOTAL ANUAL,%s,%s,%s\n",
		report.AnnualTotalSales.StringFixed(2),
		report.AnnualTotalProfit.StringFixed(2),
		report.AnnualTotalTax.StringFixed(2),
	)
	if len(report.LossCarryforward) > 0 {
		out += "\nPREJUÍZOS A COMPENSAR\n"
		for _, ca := range report.LossCarryforward {
			out += fmt.Sprintf("%s,%s\n", ca.Category.DisplayName(), ca.Amount.StringFixed(2))
		}
	}
	return out
}

func sumMonthProfit(monthly MonthlySummary) decimal.Decimal {
	total := decimal.Zero
	for _, cs := range monthly.Categories {
		total = total.Add(cs.Profit)
	}
	return total
}

// yearFingerprint hashes the transactions and corporate actions that can
// influence the year's carryforward (everything through year end) into a
// stable hex digest. On failure it logs a warning and returns a sentinel
// that never matches, so the cache treats the year as a miss.
func (s *taxService) yearFingerprint(year int) string {
	yearEnd := endOfYear(year)

	var transactions []models.Transaction
	if err := s.db.Where("trade_date <= ?", yearEnd).
		Order("trade_date ASC, id ASC").Find(&transactions).Error; err != nil {
		logger.Get().Warnw("fingerprint computation failed; using sentinel key",
			"year", year, "error", err)
		return sentinelFingerprint
	}

	var actions []models.CorporateAction
	if err := s.db.Where("event_date <= ?", yearEnd).
		Order("event_date ASC, id ASC").Find(&actions).Error; err != nil {
		logger.Get().Warnw("fingerprint computation failed; using sentinel key",
			"year", year, "error", err)
		return sentinelFingerprint
	}

	hasher := sha256.New()
	for i := range transactions {
		txRow := &transactions[i]
		fmt.Fprintf(hasher, "%d|%d|%s|%s|%s|%s|%s\n",
			txRow.ID, txRow.AssetID, txRow.Type,
			txRow.TradeDate.Format("2006-01-02"),
			txRow.Quantity, txRow.PricePerUnit, txRow.TotalCost)
	}
	for i := range actions {
		action := &actions[i]
		fmt.Fprintf(hasher, "CA|%d|%d|%s|%s|%d|%d\n",
			action.ID, action.AssetID, action.ActionType,
			action.CutoffDate().Format("2006-01-02"),
			action.RatioFrom, action.RatioTo)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// loadSnapshot returns the cached balances for (year, fingerprint) when
// present.
func (s *taxService) loadSnapshot(year int, fingerprint string) (map[tax.Category]decimal.Decimal, bool) {
	if fingerprint == sentinelFingerprint {
		return nil, false
	}

	var snapshot models.LossCarryforwardSnapshot
	err := s.db.Preload("Entries").
		Where("year = ? AND fingerprint = ?", year, fingerprint).
		First(&snapshot).Error
	if err != nil {
		return nil, false
	}

	balances := make(map[tax.Category]decimal.Decimal)
	for _, category := range tax.AllCategories() {
		balances[category] = decimal.Zero
	}
	for _, entry := range snapshot.Entries {
		balances[tax.Category(entry.Category)] = entry.Amount
	}
	return balances, true
}

// upsertSnapshot replaces the stored snapshot for a year with fresh
// balances. Failures are logged and ignored; the snapshot is only a cache.
func (s *taxService) upsertSnapshot(year int, fingerprint string, balances map[tax.Category]decimal.Decimal) {
	err := s.db.Transaction(func(dbtx *gorm.DB) error {
		var stale []models.LossCarryforwardSnapshot
		if err := dbtx.Where("year = ?", year).Find(&stale).Error; err != nil {
			return err
		}
		for i := range stale {
			if err := dbtx.Where("snapshot_id = ?", stale[i].ID).
				Delete(&models.LossCarryforwardEntry{}).Error; err != nil {
				return err
			}
		}
		if err := dbtx.Where("year = ?", year).
			Delete(&models.LossCarryforwardSnapshot{}).Error; err != nil {
			return err
		}

		snapshot := &models.LossCarryforwardSnapshot{Year: year, Fingerprint: fingerprint}
		if err := dbtx.Create(snapshot).Error; err != nil {
			return err
		}
		for _, category := range tax.AllCategories() {
			if !balances[category].IsPositive() {
				continue
			}
			entry := &models.LossCarryforwardEntry{
				SnapshotID: snapshot.ID,
				Category:   string(category),
				Amount:     balances[category],
			}
			if err := dbtx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Get().Warnw("could not persist loss carryforward snapshot",
			"year", year, "error", err)
	}
}

func endOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
}

func endOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)
}
