package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gatepass/internal/logger"
	"gatepass/internal/models"
)

// CreatePurchase - POST /api/purchases
// Opens a checkout session and records the pending purchase.
func (h *Handlers) CreatePurchase(c *gin.Context) {
	var req models.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.services.Purchases.Create(c.Request.Context(), &req)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("Purchase rejected", "error", err)
		respondError(c, err, "Failed to create purchase")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPurchase - GET /api/purchases?sessionId=
// Used by the success page to poll until the ticket is issued.
func (h *Handlers) GetPurchase(c *gin.Context) {
	details, err := h.services.Purchases.Details(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		respondError(c, err, "Failed to get purchase")
		return
	}

	c.JSON(http.StatusOK, details)
}
