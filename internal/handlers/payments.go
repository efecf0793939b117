package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gatepass/internal/external"
	"gatepass/internal/logger"
	"gatepass/internal/metrics"
	"gatepass/internal/models"
)

const maxWebhookBody = 64 << 10

// PaymentWebhook - POST /api/payments/webhook
// Accepts provider events. A bad signature is rejected with 400. Unknown sessions
// and settled purchases are acknowledged with 200; processing failures answer 500
// so the provider redelivers the event.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	log := logger.WithContext(c.Request.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "unreadable").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	ev, err := h.verifier.Verify(payload, c.GetHeader(external.SignatureHeader))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		log.Warn("Webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log = log.With("event_type", ev.Type, "session_id", ev.SessionID)
	ctx := c.Request.Context()

	eventLabel, outcome := ev.Type, "processed"
	switch ev.Type {
	case models.PaymentEventCompleted:
		err = h.services.Completions.CompletePurchase(ctx, *ev)
	case models.PaymentEventExpired, models.PaymentEventFailed:
		err = h.services.Completions.FailPurchase(ctx, ev.SessionID, ev.Type)
	default:
		eventLabel, outcome = "other", "ignored"
		log.Debug("Unhandled webhook event type")
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventLabel, "error").Inc()
		log.Error("Failed to process webhook event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}
	metrics.WebhookEvents.WithLabelValues(eventLabel, outcome).Inc()

	c.JSON(http.StatusOK, gin.H{"received": true})
}
