package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	"gatepass/internal/metrics"
	"gatepass/internal/models"
	"gatepass/internal/service"
)

// MaxRedeliveries is how many times a failing message is retried before it is
// acknowledged and dropped.
const MaxRedeliveries = 5

const processTimeout = 30 * time.Second

type TicketReader interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
}

// TicketIndexer keeps the search index in step with ticket state.
type TicketIndexer interface {
	IndexTicket(ctx context.Context, t *models.Ticket) error
	MarkRedeemed(ctx context.Context, ticketID string, redeemedAt time.Time) error
}

type Handlers struct {
	tickets  TicketReader
	notifier service.Notifier
	index    TicketIndexer
}

// NewHandlers builds the message handlers. notifier and index may be nil.
func NewHandlers(tickets TicketReader, notifier service.Notifier, index TicketIndexer) *Handlers {
	return &Handlers{
		tickets:  tickets,
		notifier: notifier,
		index:    index,
	}
}

func (h *Handlers) HandleTicketIssued(m *stan.Msg) {
	h.handle(m, models.EventTicketIssued, h.processTicketIssued)
}

func (h *Handlers) HandleTicketRedeemed(m *stan.Msg) {
	h.handle(m, models.EventTicketRedeemed, h.processTicketRedeemed)
}

func (h *Handlers) HandlePurchaseFailed(m *stan.Msg) {
	h.handle(m, models.EventPurchaseFailed, h.processPurchaseFailed)
}

// handle acks processed messages. A failed message is left unacked for
// redelivery until it has been redelivered MaxRedeliveries times.
func (h *Handlers) handle(m *stan.Msg, subject string, process func(context.Context, []byte) error) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if err := process(ctx, m.Data); err != nil {
		if m.RedeliveryCount < MaxRedeliveries {
			slog.Warn("Message processing failed, awaiting redelivery",
				"subject", subject, "sequence", m.Sequence, "redeliveries", m.RedeliveryCount, "error", err)
			return
		}
		slog.Error("Dropping message after repeated failures",
			"subject", subject, "sequence", m.Sequence, "error", err)
	}

	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
	}
}

func (h *Handlers) processTicketIssued(ctx context.Context, data []byte) error {
	var event models.TicketIssuedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal ticket issued event", "error", err)
		return nil
	}

	slog.Info("Processing ticket issued event", "ticket_id", event.TicketID)

	if h.notifier != nil {
		if err := h.notifier.NotifyTicketIssued(ctx, event); err != nil {
			metrics.Notifications.WithLabelValues("smtp", "failed").Inc()
			return fmt.Errorf("failed to send ticket %s: %w", event.TicketID, err)
		}
		metrics.Notifications.WithLabelValues("smtp", "sent").Inc()
	} else {
		slog.Warn("No mailer configured, ticket email not sent", "ticket_id", event.TicketID)
	}

	if h.index != nil {
		t, err := h.tickets.GetByID(ctx, event.TicketID)
		switch {
		case err != nil:
			slog.Error("Failed to load ticket for indexing", "ticket_id", event.TicketID, "error", err)
		case t == nil:
			slog.Warn("Issued ticket not found", "ticket_id", event.TicketID)
		default:
			if err := h.index.IndexTicket(ctx, t); err != nil {
				slog.Error("Failed to index ticket", "ticket_id", event.TicketID, "error", err)
			}
		}
	}

	return nil
}

func (h *Handlers) processTicketRedeemed(ctx context.Context, data []byte) error {
	var event models.TicketRedeemedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal ticket redeemed event", "error", err)
		return nil
	}

	slog.Info("Processing ticket redeemed event", "ticket_id", event.TicketID)

	if h.index == nil {
		return nil
	}
	if err := h.index.MarkRedeemed(ctx, event.TicketID, event.RedeemedAt); err != nil {
		return fmt.Errorf("failed to update index for ticket %s: %w", event.TicketID, err)
	}
	return nil
}

func (h *Handlers) processPurchaseFailed(_ context.Context, data []byte) error {
	var event models.PurchaseFailedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal purchase failed event", "error", err)
		return nil
	}

	slog.Info("Purchase failed",
		"ticket_id", event.TicketID, "session_id", event.SessionID, "reason", event.Reason)
	return nil
}
