package service

import (
	"context"
	"strings"
	"time"

	"gatepass/internal/codegen"
	"gatepass/internal/lifecycle"
	"gatepass/internal/models"
)

// TicketStore is the durable record store.
type TicketStore interface {
	CreatePending(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Ticket, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.Ticket, error)
	VerificationCodeExists(ctx context.Context, code string) (bool, error)
	Complete(ctx context.Context, id string, c models.Completion) error
	MarkRedeemed(ctx context.Context, id string, redeemedAt time.Time) (*models.Ticket, error)
	MarkFailed(ctx context.Context, id, reason string) error
	GetStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error)
}

// PriceStore holds the optional fixed price.
type PriceStore interface {
	Current(ctx context.Context) (*models.PriceConfig, error)
	Set(ctx context.Context, pc *models.PriceConfig) error
	Unset(ctx context.Context) error
}

// CheckoutCreator opens hosted checkout sessions at the payment provider.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
}

// Notifier delivers an issued ticket to its buyer.
type Notifier interface {
	NotifyTicketIssued(ctx context.Context, ev models.TicketIssuedEvent) error
}

// EventPublisher broadcasts domain events.
type EventPublisher interface {
	Publish(subject string, data any) error
}

// TicketSearcher queries the admin search index.
type TicketSearcher interface {
	Search(ctx context.Context, query string, size int) (*models.TicketSearchResponse, error)
}

// Clock returns the current instant.
type Clock func() time.Time

type Options struct {
	Currency         string
	FrontendBaseURL  string
	AllowedFrontends []string
	MinAmount        int64
	Policy           lifecycle.Policy
	// NotifyChannel labels notification metrics.
	NotifyChannel string
}

// Deps wires the services. Optional collaborators may be left nil.
type Deps struct {
	Tickets   TicketStore
	Prices    PriceStore
	Checkout  CheckoutCreator
	Notifier  Notifier
	Publisher EventPublisher
	Search    TicketSearcher
	Clock     Clock
	Codes     *codegen.Generator
	Options   Options
}

type Services struct {
	Purchases   *PurchaseService
	Completions *CompletionService
	Redemptions *RedemptionService
	Prices      *PriceService
	Search      *SearchService
}

func NewServices(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Codes == nil {
		d.Codes = codegen.New()
	}
	if d.Options.Policy == (lifecycle.Policy{}) {
		d.Options.Policy = lifecycle.DefaultPolicy
	}
	if d.Options.MinAmount <= 0 {
		d.Options.MinAmount = 100
	}
	if d.Options.Currency == "" {
		d.Options.Currency = "usd"
	}
	if d.Options.NotifyChannel == "" {
		d.Options.NotifyChannel = "none"
	}
	d.Options.FrontendBaseURL = strings.TrimRight(d.Options.FrontendBaseURL, "/")

	return &Services{
		Purchases:   NewPurchaseService(d.Tickets, d.Prices, d.Checkout, d.Clock, d.Options),
		Completions: NewCompletionService(d.Tickets, d.Codes, d.Notifier, d.Publisher, d.Clock, d.Options),
		Redemptions: NewRedemptionService(d.Tickets, d.Publisher, d.Clock, d.Options.Policy),
		Prices:      NewPriceService(d.Prices, d.Clock),
		Search:      NewSearchService(d.Search),
	}
}

// frontendOrDefault returns the ticket's origin, or the configured one.
func frontendOrDefault(domain, fallback string) string {
	if domain = strings.TrimRight(domain, "/"); domain != "" {
		return domain
	}
	return fallback
}
