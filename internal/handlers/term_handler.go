package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carteira/internal/services"
)

// TermHandler handles term-contract lifecycle requests.
type TermHandler struct {
	termService services.TermServicer
}

// NewTermHandler creates a new TermHandler.
func NewTermHandler(termService services.TermServicer) *TermHandler {
	return &TermHandler{termService: termService}
}

// ProcessLiquidations resolves pending term-contract liquidations. Safe to
// repeat: resolved liquidations are skipped.
func (h *TermHandler) ProcessLiquidations(c *gin.Context) {
	processed, err := h.termService.ProcessTermLiquidations()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
