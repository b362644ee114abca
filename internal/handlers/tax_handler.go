package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carteira/internal/currency"
	apperrors "carteira/internal/errors"
	"carteira/internal/services"
)

// TaxHandler handles tax computation and report requests.
type TaxHandler struct {
	taxService services.TaxServicer
}

// NewTaxHandler creates a new TaxHandler.
func NewTaxHandler(taxService services.TaxServicer) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

// DarfResponse is one DARF payment slip in a monthly tax response.
type DarfResponse struct {
	Code        string `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description"`
	TaxDue      string `json:"tax_due"`
	TaxDisplay  string `json:"tax_display"`
	DueDate     string `json:"due_date"`
}

// GetMonthlyTax computes the per-category tax figures and DARF payments for
// one month.
func (h *TaxHandler) GetMonthlyTax(c *gin.Context) {
	year, month, err := parseYearMonth(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summaries, payments, err := h.taxService.ComputeMonthlyTax(year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	darfs := make([]DarfResponse, 0, len(payments))
	for _, p := range payments {
		darfs = append(darfs, DarfResponse{
			Code:        p.Code,
			Category:    string(p.Category),
			Description: p.Description,
			TaxDue:      p.TaxDue.StringFixed(2),
			TaxDisplay:  currency.FormatBRL(p.TaxDue),
			DueDate:     p.DueDate.Format("2006-01-02"),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"year":       year,
		"month":      int(month),
		"month_name": services.MonthName(month),
		"categories": summaries,
		"darfs":      darfs,
	})
}

// GetAnnualReport computes the full IRPF report for a year.
func (h *TaxHandler) GetAnnualReport(c *gin.Context) {
	year, err := parseYear(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.taxService.ComputeAnnualReport(year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// ExportAnnualReportCSV streams the annual report as CSV.
func (h *TaxHandler) ExportAnnualReportCSV(c *gin.Context) {
	year, err := parseYear(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.taxService.ComputeAnnualReport(year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	csv := h.taxService.ExportAnnualReportCSV(report)
	c.Header("Content-Disposition", "attachment; filename=irpf-"+strconv.Itoa(year)+".csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

func parseYear(c *gin.Context) (int, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 || year > 2200 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid year")
	}
	return year, nil
}

func parseYearMonth(c *gin.Context) (int, time.Month, error) {
	year, err := parseYear(c)
	if err != nil {
		return 0, 0, err
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid month")
	}
	return year, time.Month(month), nil
}
