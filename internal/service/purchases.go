package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/logger"
	"gatepass/internal/metrics"
	"gatepass/internal/models"
)

const defaultProductName = "Event Ticket"

type PurchaseService struct {
	tickets  TicketStore
	prices   PriceStore
	checkout CheckoutCreator
	clock    Clock
	opts     Options
	allowed  map[string]struct{}
}

func NewPurchaseService(tickets TicketStore, prices PriceStore, checkout CheckoutCreator, clock Clock, opts Options) *PurchaseService {
	allowed := map[string]struct{}{}
	if opts.FrontendBaseURL != "" {
		allowed[opts.FrontendBaseURL] = struct{}{}
	}
	for _, origin := range opts.AllowedFrontends {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return &PurchaseService{
		tickets:  tickets,
		prices:   prices,
		checkout: checkout,
		clock:    clock,
		opts:     opts,
		allowed:  allowed,
	}
}

// Create opens a checkout session and records the pending purchase.
func (s *PurchaseService) Create(ctx context.Context, req *models.CreatePurchaseRequest) (*models.CreatePurchaseResponse, error) {
	log := logger.WithContext(ctx)

	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		metrics.Purchases.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrInvalidInput)
	}

	amount, eventName, err := s.resolveAmount(ctx, req.Amount)
	if err != nil {
		metrics.Purchases.WithLabelValues("invalid").Inc()
		return nil, err
	}

	frontend := s.frontendFor(req.FrontendDomain)
	ticketID := uuid.NewString()

	productName := defaultProductName
	description := "Ticket purchase"
	if eventName != "" {
		productName = eventName
		description = "Ticket for " + eventName
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, models.CheckoutRequest{
		OrderID:     ticketID,
		Amount:      amount,
		Currency:    s.opts.Currency,
		Email:       email,
		ProductName: productName,
		Description: description,
		SuccessURL:  frontend + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   frontend + "?canceled=true",
		Metadata: map[string]string{
			"ticket_id":       ticketID,
			"frontend_domain": frontend,
		},
	})
	if err != nil {
		metrics.Purchases.WithLabelValues("provider_error").Inc()
		log.Error("Failed to create checkout session", "error", err)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	ticket := &models.Ticket{
		ID:               ticketID,
		PaymentSessionID: session.SessionID,
		Amount:           amount,
		Currency:         s.opts.Currency,
		EventName:        eventName,
		PayerEmail:       email,
		FrontendDomain:   frontend,
		RequestedAt:      s.clock().UTC(),
	}
	if err := s.tickets.CreatePending(ctx, ticket); err != nil {
		metrics.Purchases.WithLabelValues("storage_error").Inc()
		log.Error("Failed to record pending purchase", "session_id", session.SessionID, "error", err)
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	metrics.Purchases.WithLabelValues("created").Inc()
	log.Info("Purchase created",
		"ticket_id", ticketID, "session_id", session.SessionID, "amount", amount, "event_name", eventName)

	return &models.CreatePurchaseResponse{
		SessionURL: session.URL,
		SessionID:  session.SessionID,
	}, nil
}

// resolveAmount prefers a configured fixed price over the caller's amount.
// A failing price lookup is treated as no fixed price.
func (s *PurchaseService) resolveAmount(ctx context.Context, requested *int64) (int64, string, error) {
	if s.prices != nil {
		pc, err := s.prices.Current(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("Price lookup failed, using requested amount", "error", err)
		} else if pc != nil && pc.PriceInCents > 0 {
			return pc.PriceInCents, pc.EventName, nil
		}
	}

	if requested == nil {
		return 0, "", fmt.Errorf("%w: amount is required", apperrors.ErrInvalidInput)
	}
	if *requested < s.opts.MinAmount {
		return 0, "", fmt.Errorf("%w: amount must be at least %d", apperrors.ErrInvalidInput, s.opts.MinAmount)
	}
	return *requested, "", nil
}

func (s *PurchaseService) frontendFor(requested string) string {
	requested = strings.TrimRight(strings.TrimSpace(requested), "/")
	if _, ok := s.allowed[requested]; ok && requested != "" {
		return requested
	}
	return s.opts.FrontendBaseURL
}

// Details returns the purchase behind a checkout session.
func (s *PurchaseService) Details(ctx context.Context, sessionID string) (*models.PurchaseDetails, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", apperrors.ErrInvalidInput)
	}

	t, err := s.tickets.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if t == nil {
		return nil, apperrors.ErrNotFound
	}
	if t.Status == models.StatusFailed {
		return nil, fmt.Errorf("%w: purchase failed", apperrors.ErrConflict)
	}

	return &models.PurchaseDetails{
		SessionID:     t.PaymentSessionID,
		Status:        t.Status,
		Amount:        t.Amount,
		Currency:      t.Currency,
		CustomerEmail: t.PayerEmail,
		EventName:     t.EventName,
		TicketID:      t.ID,
	}, nil
}
