package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
	"gatepass/internal/service"
)

// EventVerifier authenticates and decodes payment provider callbacks.
type EventVerifier interface {
	Verify(payload []byte, header string) (*models.PaymentEvent, error)
}

type Handlers struct {
	services *service.Services
	verifier EventVerifier
}

func NewHandlers(services *service.Services, verifier EventVerifier) *Handlers {
	return &Handlers{
		services: services,
		verifier: verifier,
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrPaymentProvider):
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors get the
// generic message instead of the error text.
func respondError(c *gin.Context, err error, internalMsg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": internalMsg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
