package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "carteira/internal/errors"
	"carteira/internal/models"
	"carteira/internal/services"
)

// CorporateActionHandler handles corporate action requests.
type CorporateActionHandler struct {
	actionService services.CorporateActionServicer
}

// NewCorporateActionHandler creates a new CorporateActionHandler.
func NewCorporateActionHandler(actionService services.CorporateActionServicer) *CorporateActionHandler {
	return &CorporateActionHandler{actionService: actionService}
}

// CreateActionRequest represents the request payload for recording a corporate action
type CreateActionRequest struct {
	AssetID    uint                       `json:"asset_id" binding:"required"`
	ActionType models.CorporateActionType `json:"action_type" binding:"required,action_type"`
	EventDate  string                     `json:"event_date" binding:"required"`
	ExDate     *string                    `json:"ex_date"`
	RatioFrom  int64                      `json:"ratio_from" binding:"required,gt=0"`
	RatioTo    int64                      `json:"ratio_to" binding:"gte=0"`
	Source     string                     `json:"source" binding:"max=100"`
	Notes      string                     `json:"notes" binding:"max=500"`
}

// CreateAction records a corporate action without applying it.
func (h *CorporateActionHandler) CreateAction(c *gin.Context) {
	var req CreateActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	eventDate, err := parseFlexibleDate(req.EventDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid event_date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	var exDate *time.Time
	if req.ExDate != nil && *req.ExDate != "" {
		parsed, parseErr := parseFlexibleDate(*req.ExDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid ex_date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		exDate = &parsed
	}

	action, err := h.actionService.CreateAction(
		req.AssetID,
		req.ActionType,
		eventDate,
		exDate,
		req.RatioFrom,
		req.RatioTo,
		req.Source,
		req.Notes,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"action": action})
}

// GetActionByID returns a single corporate action.
func (h *CorporateActionHandler) GetActionByID(c *gin.Context) {
	actionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	action, err := h.actionService.GetActionByID(actionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": action})
}

// ListUnappliedActions returns actions that still have eligible transactions,
// optionally filtered by asset.
func (h *CorporateActionHandler) ListUnappliedActions(c *gin.Context) {
	var assetID *uint
	if v := c.Query("asset_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid asset_id"))
			return
		}
		parsed := uint(id)
		assetID = &parsed
	}

	actions, err := h.actionService.GetUnappliedActions(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// ApplyAction applies one corporate action to the ledger. Safe to repeat:
// already-adjusted transactions are skipped.
func (h *CorporateActionHandler) ApplyAction(c *gin.Context) {
	actionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	adjusted, err := h.actionService.ApplyCorporateAction(actionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"action_id":             actionID,
		"adjusted_transactions": adjusted,
	})
}

// ApplyAllPending applies every pending corporate action, optionally
// restricted to one asset.
func (h *CorporateActionHandler) ApplyAllPending(c *gin.Context) {
	var assetID *uint
	if v := c.Query("asset_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid asset_id"))
			return
		}
		parsed := uint(id)
		assetID = &parsed
	}

	adjusted, err := h.actionService.ApplyAllPending(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"adjusted_transactions": adjusted})
}

// ResolveRatioRequest carries the credited quantity observed on the
// brokerage statement for a placeholder-ratio action.
type ResolveRatioRequest struct {
	CreditedQuantity decimal.Decimal `json:"credited_quantity" binding:"required"`
}

// ResolveRatio infers a bonus action's ratio from the credited quantity and
// the position held before the cutoff date.
func (h *CorporateActionHandler) ResolveRatio(c *gin.Context) {
	actionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ResolveRatioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	action, err := h.actionService.ResolveActionRatio(actionID, req.CreditedQuantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": action})
}
