package models

import "time"

// NATS Event Types
const (
	EventTicketIssued   = "ticket.issued"
	EventTicketRedeemed = "ticket.redeemed"
	EventPurchaseFailed = "purchase.failed"
)

// Payment provider event types consumed by the webhook.
const (
	PaymentEventCompleted = "checkout.session.completed"
	PaymentEventExpired   = "checkout.session.expired"
	PaymentEventFailed    = "checkout.session.async_payment_failed"
)

// PaymentEvent is a verified notification from the payment provider.
type PaymentEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	PayerEmail string    `json:"payer_email"`
	PayerName  string    `json:"payer_name"`
	AmountPaid int64     `json:"amount_paid"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketIssuedEvent is handed to the notifier once a purchase completes.
type TicketIssuedEvent struct {
	TicketID         string    `json:"ticket_id"`
	VerificationCode string    `json:"verification_code"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	EventName        string    `json:"event_name,omitempty"`
	Recipient        string    `json:"recipient"`
	RecipientName    string    `json:"recipient_name,omitempty"`
	VerifyURL        string    `json:"verify_url"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// TicketRedeemedEvent represents a successful gate redemption
type TicketRedeemedEvent struct {
	TicketID         string    `json:"ticket_id"`
	VerificationCode string    `json:"verification_code"`
	RedeemedAt       time.Time `json:"redeemed_at"`
}

// PurchaseFailedEvent represents a purchase that will never complete
type PurchaseFailedEvent struct {
	TicketID  string    `json:"ticket_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
