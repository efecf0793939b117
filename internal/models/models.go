package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexibleInt accepts integers encoded as JSON numbers or numeric strings.
// Fractional values are rejected.
type FlexibleInt int64

// UnmarshalJSON parses 2500, "2500" and 2500.0 but not 25.5 or "abc".
func (fi *FlexibleInt) UnmarshalJSON(data []byte) error {
	str := strings.TrimSpace(string(data))
	str = strings.Trim(str, `"`)

	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		*fi = FlexibleInt(n)
		return nil
	}

	var f json.Number = json.Number(str)
	v, err := f.Float64()
	if err != nil || v != float64(int64(v)) {
		return fmt.Errorf("invalid integer value: %s", str)
	}
	*fi = FlexibleInt(int64(v))
	return nil
}

// Int64 returns the int64 value
func (fi FlexibleInt) Int64() int64 {
	return int64(fi)
}

// CreatePurchaseRequest is the intake request for a new ticket purchase.
type CreatePurchaseRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Amount         *int64 `json:"amount,omitempty"`
	FrontendDomain string `json:"frontendDomain,omitempty"`
}

// CreatePurchaseResponse points the buyer at the hosted checkout page.
type CreatePurchaseResponse struct {
	SessionURL string `json:"session_url"`
	SessionID  string `json:"session_id"`
}

// PurchaseDetails is what the success page polls for.
type PurchaseDetails struct {
	SessionID     string `json:"sessionId"`
	Status        Status `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customerEmail"`
	EventName     string `json:"eventName,omitempty"`
	TicketID      string `json:"ticketId"`
}

// ValidateTicketRequest carries the scanned verification code.
type ValidateTicketRequest struct {
	VerificationID string `json:"verificationId"`
}

// SetPriceRequest is the admin request to fix the purchase price.
type SetPriceRequest struct {
	Price     *FlexibleInt `json:"price"`
	EventName string       `json:"eventName"`
}

// CheckoutRequest describes the hosted checkout session to create.
type CheckoutRequest struct {
	OrderID     string
	Amount      int64
	Currency    string
	Email       string
	ProductName string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the provider's answer to a CheckoutRequest.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// TicketSearchHit is a single admin search result.
type TicketSearchHit struct {
	TicketID         string     `json:"ticket_id"`
	VerificationCode string     `json:"verification_code"`
	PayerEmail       string     `json:"payer_email"`
	PayerName        string     `json:"payer_name,omitempty"`
	EventName        string     `json:"event_name,omitempty"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Redeemed         bool       `json:"redeemed"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
}

// TicketSearchResponse is the admin search response
type TicketSearchResponse struct {
	Total int64             `json:"total"`
	Hits  []TicketSearchHit `json:"hits"`
}
