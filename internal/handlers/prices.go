package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gatepass/internal/models"
)

// GetPrice - GET /api/price
func (h *Handlers) GetPrice(c *gin.Context) {
	pc, err := h.services.Prices.Current(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get price")
		return
	}

	c.JSON(http.StatusOK, pc)
}

// SetPrice - PUT /api/admin/price
func (h *Handlers) SetPrice(c *gin.Context) {
	var req models.SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pc, err := h.services.Prices.Set(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to set price")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "config": pc})
}

// UnsetPrice - DELETE /api/admin/price
func (h *Handlers) UnsetPrice(c *gin.Context) {
	if err := h.services.Prices.Unset(c.Request.Context()); err != nil {
		respondError(c, err, "Failed to unset price")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
