package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "carteira/internal/errors"
	"carteira/internal/models"
	"carteira/internal/pagination"
	"carteira/internal/services"
)

// TransactionHandler handles ledger requests.
type TransactionHandler struct {
	ledgerService services.LedgerServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerService services.LedgerServicer) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService}
}

// CreateTransactionRequest represents the request payload for appending a trade
type CreateTransactionRequest struct {
	AssetID        uint                   `json:"asset_id" binding:"required"`
	Type           models.TransactionType `json:"type" binding:"required,transaction_type"`
	TradeDate      string                 `json:"trade_date" binding:"required"`
	SettlementDate *string                `json:"settlement_date"`
	Quantity       decimal.Decimal        `json:"quantity" binding:"required"`
	PricePerUnit   decimal.Decimal        `json:"price_per_unit" binding:"required"`
	Fees           decimal.Decimal        `json:"fees"`
	IsDayTrade     bool                   `json:"is_day_trade"`
	Notes          string                 `json:"notes" binding:"max=500"`
	Source         string                 `json:"source" binding:"max=100"`
}

// CreateTransaction appends one trade to the ledger.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tradeDate, err := parseFlexibleDate(req.TradeDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid trade_date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	var settlementDate *time.Time
	if req.SettlementDate != nil && *req.SettlementDate != "" {
		parsed, parseErr := parseFlexibleDate(*req.SettlementDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid settlement_date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		settlementDate = &parsed
	}

	transaction, err := h.ledgerService.CreateTransaction(
		req.AssetID,
		req.Type,
		tradeDate,
		settlementDate,
		req.Quantity,
		req.PricePerUnit,
		req.Fees,
		req.IsDayTrade,
		req.Notes,
		req.Source,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactionByID returns a single transaction.
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledgerService.GetTransactionByID(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// GetAssetTransactions returns a paginated chronological list of an asset's
// transactions.
func (h *TransactionHandler) GetAssetTransactions(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.GetAssetTransactions(assetID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAssetPosition returns the net open quantity of an asset before a date.
// Without a date query parameter it reports the current position.
func (h *TransactionHandler) GetAssetPosition(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	date := time.Now().UTC()
	if v := c.Query("before"); v != "" {
		parsed, parseErr := parseFlexibleDate(v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid before format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	position, err := h.ledgerService.PositionBeforeDate(assetID, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"asset_id": assetID,
		"before":   date.Format("2006-01-02"),
		"quantity": position,
	})
}

// ImportTransactionRequest is one ledger row in an import payload.
type ImportTransactionRequest struct {
	Ticker         string                 `json:"ticker" binding:"required,ticker"`
	Type           models.TransactionType `json:"type" binding:"required,transaction_type"`
	TradeDate      string                 `json:"trade_date" binding:"required"`
	SettlementDate *string                `json:"settlement_date"`
	Quantity       decimal.Decimal        `json:"quantity" binding:"required"`
	PricePerUnit   decimal.Decimal        `json:"price_per_unit" binding:"required"`
	Fees           decimal.Decimal        `json:"fees"`
	IsDayTrade     bool                   `json:"is_day_trade"`
	Notes          string                 `json:"notes" binding:"max=500"`
}

// ImportActionRequest is one corporate action row in an import payload.
type ImportActionRequest struct {
	Ticker     string                     `json:"ticker" binding:"required,ticker"`
	ActionType models.CorporateActionType `json:"action_type" binding:"required,action_type"`
	EventDate  string                     `json:"event_date" binding:"required"`
	ExDate     *string                    `json:"ex_date"`
	RatioFrom  int64                      `json:"ratio_from" binding:"required,gt=0"`
	RatioTo    int64                      `json:"ratio_to" binding:"gte=0"`
	Notes      string                     `json:"notes" binding:"max=500"`
}

// ImportBatchRequest represents a brokerage statement import payload.
type ImportBatchRequest struct {
	Source       string                     `json:"source" binding:"required,max=100"`
	Transactions []ImportTransactionRequest `json:"transactions"`
	Actions      []ImportActionRequest      `json:"actions"`
}

// ImportBatch persists an importer batch atomically; any invalid row aborts
// the whole batch.
func (h *TransactionHandler) ImportBatch(c *gin.Context) {
	var req ImportBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transactions := make([]services.TransactionCandidate, 0, len(req.Transactions))
	for i, row := range req.Transactions {
		tradeDate, err := parseFlexibleDate(row.TradeDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
				"invalid trade_date on transaction "+row.Ticker+" at index "+strconv.Itoa(i)))
			return
		}
		var settlementDate *time.Time
		if row.SettlementDate != nil && *row.SettlementDate != "" {
			parsed, parseErr := parseFlexibleDate(*row.SettlementDate)
			if parseErr != nil {
				respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
					"invalid settlement_date on transaction "+row.Ticker+" at index "+strconv.Itoa(i)))
				return
			}
			settlementDate = &parsed
		}
		transactions = append(transactions, services.TransactionCandidate{
			Ticker:         row.Ticker,
			Type:           row.Type,
			TradeDate:      tradeDate,
			SettlementDate: settlementDate,
			Quantity:       row.Quantity,
			PricePerUnit:   row.PricePerUnit,
			Fees:           row.Fees,
			IsDayTrade:     row.IsDayTrade,
			Notes:          row.Notes,
		})
	}

	actions := make([]services.ActionCandidate, 0, len(req.Actions))
	for i, row := range req.Actions {
		eventDate, err := parseFlexibleDate(row.EventDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
				"invalid event_date on action "+row.Ticker+" at index "+strconv.Itoa(i)))
			return
		}
		var exDate *time.Time
		if row.ExDate != nil && *row.ExDate != "" {
			parsed, parseErr := parseFlexibleDate(*row.ExDate)
			if parseErr != nil {
				respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
					"invalid ex_date on action "+row.Ticker+" at index "+strconv.Itoa(i)))
				return
			}
			exDate = &parsed
		}
		actions = append(actions, services.ActionCandidate{
			Ticker:     row.Ticker,
			ActionType: row.ActionType,
			EventDate:  eventDate,
			ExDate:     exDate,
			RatioFrom:  row.RatioFrom,
			RatioTo:    row.RatioTo,
			Notes:      row.Notes,
		})
	}

	batch, err := h.ledgerService.ImportBatch(req.Source, transactions, actions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"batch": batch})
}

