package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/codegen"
	apperrors "gatepass/internal/errors"
	"gatepass/internal/lifecycle"
	"gatepass/internal/logger"
	"gatepass/internal/metrics"
	"gatepass/internal/models"
)

// RedemptionService validates tickets at the gate and redeems each one at most once.
type RedemptionService struct {
	tickets   TicketStore
	publisher EventPublisher
	clock     Clock
	policy    lifecycle.Policy
}

func NewRedemptionService(tickets TicketStore, publisher EventPublisher, clock Clock, policy lifecycle.Policy) *RedemptionService {
	return &RedemptionService{
		tickets:   tickets,
		publisher: publisher,
		clock:     clock,
		policy:    policy,
	}
}

// Redeem evaluates the ticket behind code and, when valid, marks it redeemed.
// The result is always populated; err is set only when the record could not be read.
func (s *RedemptionService) Redeem(ctx context.Context, rawCode string) (*models.RedemptionResult, error) {
	now := s.clock().UTC()
	code := codegen.Normalize(rawCode)
	log := logger.WithContext(ctx).With("verification_code", code)

	res := &models.RedemptionResult{
		VerificationCode: code,
		CheckedAt:        now,
		Action:           models.ActionNone,
	}
	defer func() {
		metrics.Redemptions.WithLabelValues(string(res.Action), string(res.Code)).Inc()
	}()

	if code == "" {
		res.Verdict = models.Verdict{Code: models.ReasonMissingID, Reason: "Verification ID is required."}
		return res, nil
	}
	if !codegen.Valid(code) {
		res.Verdict = notFoundVerdict
		return res, nil
	}

	t, err := s.tickets.GetByVerificationCode(ctx, code)
	if err != nil {
		log.Error("Failed to read ticket", "error", err)
		res.Verdict = models.Verdict{Code: models.ReasonInternalError, Reason: "Internal error during ticket validation."}
		return res, fmt.Errorf("failed to read ticket: %w", err)
	}
	if t == nil {
		res.Verdict = notFoundVerdict
		return res, nil
	}

	res.Found = true
	res.Ticket = t
	res.Verdict = s.policy.Evaluate(t, now)
	if !res.Valid {
		log.Info("Ticket rejected", "ticket_id", t.ID, "reason", res.Code)
		return res, nil
	}

	updated, err := s.tickets.MarkRedeemed(ctx, t.ID, now)
	switch {
	case err == nil:
		res.Action = models.ActionRedeemed
		res.Reason = "Ticket is valid and has been redeemed."
		res.Ticket = updated
		log.Info("Ticket redeemed", "ticket_id", t.ID)
		s.publishRedeemed(ctx, updated, now)
	case errors.Is(err, apperrors.ErrAlreadyRedeemed):
		res.Verdict = models.Verdict{
			Code:   models.ReasonRedeemedConcurrently,
			Reason: "Ticket has already been redeemed by another process.",
		}
		res.Action = models.ActionFailedRedeemConcurrent
		log.Warn("Lost redemption race", "ticket_id", t.ID)
	default:
		res.Verdict = models.Verdict{
			Code:   models.ReasonInternalError,
			Reason: "Internal error during ticket redemption.",
		}
		res.Action = models.ActionFailedRedeemGeneral
		log.Error("Failed to redeem ticket", "ticket_id", t.ID, "error", err)
	}

	return res, nil
}

var notFoundVerdict = models.Verdict{Code: models.ReasonNotFound, Reason: "Ticket not found."}

func (s *RedemptionService) publishRedeemed(ctx context.Context, t *models.Ticket, at time.Time) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(models.EventTicketRedeemed, models.TicketRedeemedEvent{
		TicketID:         t.ID,
		VerificationCode: t.VerificationCode(),
		RedeemedAt:       at,
	})
	if err != nil {
		logger.WithContext(ctx).Error("Failed to publish ticket redeemed event", "ticket_id", t.ID, "error", err)
	}
}
