package models

import (
	"fmt"
	"time"
)

// Status is the payment phase of a ticket record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Ticket represents a purchase record and, once paid, the ticket it grants.
//
// Issue is present iff Status is StatusCompleted. Redemption is present iff the
// ticket has been redeemed, which implies Issue is present too.
type Ticket struct {
	ID               string      `json:"id" db:"id"`
	PaymentSessionID string      `json:"payment_session_id" db:"payment_session_id"`
	Status           Status      `json:"status" db:"status"`
	Amount           int64       `json:"amount" db:"amount"`
	Currency         string      `json:"currency" db:"currency"`
	EventName        string      `json:"event_name,omitempty" db:"event_name"`
	PayerEmail       string      `json:"payer_email" db:"payer_email"`
	PayerName        string      `json:"payer_name,omitempty" db:"payer_name"`
	FrontendDomain   string      `json:"-" db:"frontend_domain"`
	RequestedAt      time.Time   `json:"requested_at" db:"requested_at"`
	FailureReason    string      `json:"failure_reason,omitempty" db:"failure_reason"`
	Issue            *Issue      `json:"issue,omitempty"`
	Redemption       *Redemption `json:"redemption,omitempty"`
}

// Issue holds the fields assigned once, when the payment completes.
type Issue struct {
	VerificationCode string    `json:"verification_code" db:"verification_code"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	ExpiresAt        time.Time `json:"expires_at" db:"expires_at"`
}

// Redemption is set at most once, by the gate.
type Redemption struct {
	RedeemedAt time.Time `json:"redeemed_at" db:"redeemed_at"`
}

// Completion carries the fields written by the pending -> completed transition.
type Completion struct {
	VerificationCode string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	PayerEmail       string
	PayerName        string
}

// Redeemed reports whether the ticket has been used at the gate.
func (t *Ticket) Redeemed() bool {
	return t.Redemption != nil
}

// VerificationCode returns the issued code or "" while the ticket is not completed.
func (t *Ticket) VerificationCode() string {
	if t.Issue == nil {
		return ""
	}
	return t.Issue.VerificationCode
}

// Validate checks the record invariants.
func (t *Ticket) Validate() error {
	switch t.Status {
	case StatusPending, StatusFailed:
		if t.Issue != nil {
			return fmt.Errorf("ticket %s: %s ticket must not carry a verification code", t.ID, t.Status)
		}
	case StatusCompleted:
		if t.Issue == nil || t.Issue.VerificationCode == "" {
			return fmt.Errorf("ticket %s: completed ticket without verification code", t.ID)
		}
	default:
		return fmt.Errorf("ticket %s: unknown status %q", t.ID, t.Status)
	}
	if t.Redemption != nil {
		if t.Status != StatusCompleted {
			return fmt.Errorf("ticket %s: redeemed ticket must be completed", t.ID)
		}
		if t.Redemption.RedeemedAt.IsZero() {
			return fmt.Errorf("ticket %s: redeemed ticket without redemption time", t.ID)
		}
	}
	return nil
}

// PriceConfig is the optional fixed price applied to every new purchase.
type PriceConfig struct {
	PriceInCents int64     `json:"priceInCents" db:"price_in_cents"`
	EventName    string    `json:"eventName" db:"event_name"`
	UpdatedAt    time.Time `json:"lastUpdated" db:"updated_at"`
}
