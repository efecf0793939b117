package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/codegen"
	apperrors "gatepass/internal/errors"
	"gatepass/internal/logger"
	"gatepass/internal/metrics"
	"gatepass/internal/models"
)

// CompletionService drives pending purchases to completed or failed.
type CompletionService struct {
	tickets   TicketStore
	codes     *codegen.Generator
	notifier  Notifier
	publisher EventPublisher
	clock     Clock
	opts      Options
}

func NewCompletionService(tickets TicketStore, codes *codegen.Generator, notifier Notifier, publisher EventPublisher, clock Clock, opts Options) *CompletionService {
	return &CompletionService{
		tickets:   tickets,
		codes:     codes,
		notifier:  notifier,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
	}
}

// CompletePurchase issues the ticket for a paid checkout session.
// Unknown sessions and repeated deliveries are acknowledged without changes.
func (s *CompletionService) CompletePurchase(ctx context.Context, ev models.PaymentEvent) error {
	log := logger.WithContext(ctx).With("session_id", ev.SessionID)

	t, err := s.tickets.GetBySessionID(ctx, ev.SessionID)
	if err != nil {
		return fmt.Errorf("failed to look up purchase: %w", err)
	}
	if t == nil {
		log.Warn("Payment completed for unknown session")
		return nil
	}
	if t.Status != models.StatusPending {
		log.Info("Ignoring repeated completion", "ticket_id", t.ID, "status", t.Status)
		return nil
	}

	if ev.AmountPaid != 0 && ev.AmountPaid != t.Amount {
		log.Warn("Paid amount differs from recorded amount",
			"ticket_id", t.ID, "recorded", t.Amount, "paid", ev.AmountPaid)
	}

	now := s.clock().UTC()
	completion := models.Completion{
		CreatedAt:  now,
		ExpiresAt:  s.opts.Policy.ExpiresAt(now),
		PayerEmail: ev.PayerEmail,
		PayerName:  ev.PayerName,
	}

	completed := false
	for attempt := 0; attempt < codegen.MaxAttempts && !completed; attempt++ {
		code, err := s.codes.Unique(ctx, s.tickets.VerificationCodeExists)
		if err != nil {
			return fmt.Errorf("failed to generate verification code: %w", err)
		}
		completion.VerificationCode = code

		err = s.tickets.Complete(ctx, t.ID, completion)
		switch {
		case err == nil:
			completed = true
		case errors.Is(err, apperrors.ErrCodeCollision):
			log.Warn("Verification code collided on write, retrying", "attempt", attempt+1)
		case errors.Is(err, apperrors.ErrNotPending):
			log.Info("Purchase completed concurrently", "ticket_id", t.ID)
			return nil
		case errors.Is(err, apperrors.ErrNotFound):
			log.Warn("Purchase disappeared before completion", "ticket_id", t.ID)
			return nil
		default:
			return fmt.Errorf("failed to complete purchase: %w", err)
		}
	}
	if !completed {
		return fmt.Errorf("failed to complete purchase: %w", codegen.ErrExhausted)
	}

	log.Info("Ticket issued", "ticket_id", t.ID, "expires_at", completion.ExpiresAt)

	recipient := completion.PayerEmail
	if recipient == "" {
		recipient = t.PayerEmail
	}
	s.notify(ctx, models.TicketIssuedEvent{
		TicketID:         t.ID,
		VerificationCode: completion.VerificationCode,
		Amount:           t.Amount,
		Currency:         t.Currency,
		EventName:        t.EventName,
		Recipient:        recipient,
		RecipientName:    completion.PayerName,
		VerifyURL:        frontendOrDefault(t.FrontendDomain, s.opts.FrontendBaseURL) + "/verify?id=" + completion.VerificationCode,
		IssuedAt:         completion.CreatedAt,
		ExpiresAt:        completion.ExpiresAt,
	})

	return nil
}

// notify never fails the completion; the ticket is already issued.
func (s *CompletionService) notify(ctx context.Context, ev models.TicketIssuedEvent) {
	if s.notifier == nil {
		logger.WithContext(ctx).Warn("No notifier configured, ticket email not sent", "ticket_id", ev.TicketID)
		return
	}

	if err := s.notifier.NotifyTicketIssued(ctx, ev); err != nil {
		metrics.Notifications.WithLabelValues(s.opts.NotifyChannel, "failed").Inc()
		logger.WithContext(ctx).Error("Failed to notify ticket holder",
			"ticket_id", ev.TicketID, "channel", s.opts.NotifyChannel, "error", err)
		return
	}
	metrics.Notifications.WithLabelValues(s.opts.NotifyChannel, "sent").Inc()
}

// FailPurchase marks a pending purchase as failed.
func (s *CompletionService) FailPurchase(ctx context.Context, sessionID, reason string) error {
	log := logger.WithContext(ctx).With("session_id", sessionID)

	t, err := s.tickets.GetBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to look up purchase: %w", err)
	}
	if t == nil {
		log.Warn("Payment failure for unknown session")
		return nil
	}
	if t.Status != models.StatusPending {
		log.Info("Ignoring failure for settled purchase", "ticket_id", t.ID, "status", t.Status)
		return nil
	}

	return s.fail(ctx, t, reason)
}

func (s *CompletionService) fail(ctx context.Context, t *models.Ticket, reason string) error {
	err := s.tickets.MarkFailed(ctx, t.ID, reason)
	if errors.Is(err, apperrors.ErrNotPending) || errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark purchase failed: %w", err)
	}

	logger.WithContext(ctx).Info("Purchase failed", "ticket_id", t.ID, "reason", reason)

	if s.publisher != nil {
		if err := s.publisher.Publish(models.EventPurchaseFailed, models.PurchaseFailedEvent{
			TicketID:  t.ID,
			SessionID: t.PaymentSessionID,
			Reason:    reason,
			Timestamp: s.clock().UTC(),
		}); err != nil {
			logger.WithContext(ctx).Error("Failed to publish purchase failed event", "ticket_id", t.ID, "error", err)
		}
	}
	return nil
}

// ExpirePending fails purchases still pending after olderThan. It returns how
// many were moved.
func (s *CompletionService) ExpirePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.clock().UTC().Add(-olderThan)

	stale, err := s.tickets.GetStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale purchases: %w", err)
	}

	expired := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := s.fail(ctx, &stale[i], "checkout not completed in time"); err != nil {
			logger.WithContext(ctx).Error("Failed to expire purchase", "ticket_id", stale[i].ID, "error", err)
			continue
		}
		expired++
	}

	metrics.PendingExpired.Add(float64(expired))
	return expired, nil
}
