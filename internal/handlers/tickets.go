package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gatepass/internal/models"
)

// ValidateTicket - POST /api/tickets/validate
// Checks a scanned code and redeems it when valid. The body is always a verdict.
func (h *Handlers) ValidateTicket(c *gin.Context) {
	var req models.ValidateTicketRequest
	// a malformed body is treated like a missing id
	_ = c.ShouldBindJSON(&req)

	res, err := h.services.Redemptions.Redeem(c.Request.Context(), req.VerificationID)
	if err != nil {
		_ = c.Error(err)
	}

	c.JSON(verdictStatus(res, err), models.NewValidationResponse(res))
}

func verdictStatus(res *models.RedemptionResult, err error) int {
	switch {
	case err != nil, res.Action == models.ActionFailedRedeemGeneral:
		return http.StatusInternalServerError
	case res.Code == models.ReasonMissingID:
		return http.StatusBadRequest
	case res.Code == models.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// SearchTickets - GET /api/admin/tickets/search?q=&size=
func (h *Handlers) SearchTickets(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size < 1 || size > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 100"})
		return
	}

	resp, err := h.services.Search.Tickets(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		respondError(c, err, "Failed to search tickets")
		return
	}

	c.JSON(http.StatusOK, resp)
}
