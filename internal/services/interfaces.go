package services

import (
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/models"
	"carteira/internal/pagination"
	"carteira/internal/tax"
)

// AssetServicer defines the contract for asset registry logic.
type AssetServicer interface {
	CreateAsset(ticker string, assetType models.AssetType, name string) (*models.Asset, error)
	GetAssetByID(assetID uint) (*models.Asset, error)
	GetAssetByTicker(ticker string) (*models.Asset, error)
	ListAssets(page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error)
}

// TransactionCandidate is one validated importer row: the ticker is already
// resolved and decimal fields already parsed by the collaborator.
type TransactionCandidate struct {
	Ticker         string
	Type           models.TransactionType
	TradeDate      time.Time
	SettlementDate *time.Time
	Quantity       decimal.Decimal
	PricePerUnit   decimal.Decimal
	Fees           decimal.Decimal
	IsDayTrade     bool
	Notes          string
}

// ActionCandidate is one corporate action row from an importer.
type ActionCandidate struct {
	Ticker     string
	ActionType models.CorporateActionType
	EventDate  time.Time
	ExDate     *time.Time
	RatioFrom  int64
	RatioTo    int64
	Notes      string
}

// LedgerServicer defines the contract for the transaction ledger.
type LedgerServicer interface {
	CreateTransaction(assetID uint, txType models.TransactionType, tradeDate time.Time, settlementDate *time.Time,
		quantity, pricePerUnit, fees decimal.Decimal, isDayTrade bool, notes, source string) (*models.Transaction, error)
	GetTransactionByID(transactionID uint) (*models.Transaction, error)
	GetAssetTransactions(assetID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	ImportBatch(source string, transactions []TransactionCandidate, actions []ActionCandidate) (*models.ImportBatch, error)
	PositionBeforeDate(assetID uint, date time.Time) (decimal.Decimal, error)
}

// CorporateActionServicer defines the contract for the retroactive
// ledger-adjustment engine.
type CorporateActionServicer interface {
	CreateAction(assetID uint, actionType models.CorporateActionType, eventDate time.Time, exDate *time.Time,
		ratioFrom, ratioTo int64, source, notes string) (*models.CorporateAction, error)
	GetActionByID(actionID uint) (*models.CorporateAction, error)
	GetUnappliedActions(assetID *uint) ([]models.CorporateAction, error)
	ApplyCorporateAction(actionID uint) (int, error)
	ApplyAllPending(assetID *uint) (int, error)
	ResolveActionRatio(actionID uint, creditedQuantity decimal.Decimal) (*models.CorporateAction, error)
}

// TermServicer defines the contract for term-contract lifecycle resolution.
type TermServicer interface {
	ProcessTermLiquidations() (int, error)
}

// CategorySummary is the realized result for one tax category in a month.
type CategorySummary struct {
	Category            tax.Category    `json:"category"`
	Sales               decimal.Decimal `json:"sales"`
	Profit              decimal.Decimal `json:"profit"`
	CarryforwardApplied decimal.Decimal `json:"carryforward_applied"`
	TaxDue              decimal.Decimal `json:"tax_due"`
}

// MonthlySummary aggregates a calendar month of the annual report.
type MonthlySummary struct {
	Month      time.Month        `json:"month"`
	MonthName  string            `json:"month_name"`
	TotalSales decimal.Decimal   `json:"total_sales"`
	TaxDue     decimal.Decimal   `json:"tax_due"`
	Categories []CategorySummary `json:"categories"`
}

// CategoryAmount is a (category, amount) pair in stable order.
type CategoryAmount struct {
	Category tax.Category    `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// AnnualTaxReport is the deterministic IRPF report for one year.
type AnnualTaxReport struct {
	Year              int              `json:"year"`
	MonthlySummaries  []MonthlySummary `json:"monthly_summaries"`
	AnnualTotalSales  decimal.Decimal  `json:"annual_total_sales"`
	AnnualTotalProfit decimal.Decimal  `json:"annual_total_profit"`
	AnnualTotalTax    decimal.Decimal  `json:"annual_total_tax"`
	LossCarryforward  []CategoryAmount `json:"loss_carryforward"`
}

// TaxServicer defines the contract for the monthly/annual tax engine.
type TaxServicer interface {
	ComputeMonthlyTax(year int, month time.Month) ([]CategorySummary, []tax.DarfPayment, error)
	ComputeAnnualReport(year int) (*AnnualTaxReport, error)
	ExportAnnualReportCSV(report *AnnualTaxReport) string
}
