package models

import "time"

// ReasonCode is the machine-readable outcome of a ticket validation.
type ReasonCode string

const (
	ReasonValid                ReasonCode = "valid"
	ReasonNotCompleted         ReasonCode = "payment_not_completed"
	ReasonAlreadyRedeemed      ReasonCode = "already_redeemed"
	ReasonExpired              ReasonCode = "expired"
	ReasonWindowExceeded       ReasonCode = "window_exceeded"
	ReasonRedeemedConcurrently ReasonCode = "redeemed_concurrently"
	ReasonInternalError        ReasonCode = "internal_error"
	ReasonNotFound             ReasonCode = "not_found"
	ReasonMissingID            ReasonCode = "missing_id"
)

// Action records what the coordinator did to the stored record.
type Action string

const (
	ActionNone                   Action = "none"
	ActionRedeemed               Action = "redeemed"
	ActionFailedRedeemConcurrent Action = "failed_redeem_concurrent"
	ActionFailedRedeemGeneral    Action = "failed_redeem_general"
)

// Verdict is the result of evaluating a ticket at an instant.
type Verdict struct {
	Valid  bool       `json:"valid"`
	Code   ReasonCode `json:"reasonCode"`
	Reason string     `json:"reason"`
}

// RedemptionResult is the outcome of one validation request.
type RedemptionResult struct {
	Verdict
	Found            bool
	Action           Action
	VerificationCode string
	CheckedAt        time.Time
	// Ticket is the record as seen after the attempt; nil when not found.
	Ticket *Ticket
}

// ValidationResponse is the JSON body returned to the gate.
type ValidationResponse struct {
	Valid          bool       `json:"valid"`
	Reason         string     `json:"reason"`
	ReasonCode     ReasonCode `json:"reasonCode"`
	ActionTaken    Action     `json:"actionTaken"`
	TicketID       string     `json:"ticketId,omitempty"`
	VerificationID string     `json:"verificationId,omitempty"`
	Status         Status     `json:"status,omitempty"`
	PayerEmail     string     `json:"payerEmail,omitempty"`
	Amount         int64      `json:"amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	CreationTime   string     `json:"creationTime,omitempty"`
	ExpirationTime string     `json:"expirationTime,omitempty"`
	CurrentTime    string     `json:"currentTime"`
	Redeemed       bool       `json:"redeemed"`
	RedeemedTime   string     `json:"redeemedTime,omitempty"`
}

// NewValidationResponse flattens a RedemptionResult for the wire.
func NewValidationResponse(r *RedemptionResult) ValidationResponse {
	resp := ValidationResponse{
		Valid:          r.Valid,
		Reason:         r.Reason,
		ReasonCode:     r.Code,
		ActionTaken:    r.Action,
		VerificationID: r.VerificationCode,
		CurrentTime:    r.CheckedAt.UTC().Format(time.RFC3339),
	}
	if resp.ActionTaken == "" {
		resp.ActionTaken = ActionNone
	}

	t := r.Ticket
	if t == nil {
		return resp
	}
	resp.TicketID = t.ID
	resp.Status = t.Status
	resp.PayerEmail = t.PayerEmail
	resp.Amount = t.Amount
	resp.Currency = t.Currency
	if t.Issue != nil {
		resp.VerificationID = t.Issue.VerificationCode
		resp.CreationTime = t.Issue.CreatedAt.UTC().Format(time.RFC3339)
		resp.ExpirationTime = t.Issue.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if t.Redemption != nil {
		resp.Redeemed = true
		resp.RedeemedTime = t.Redemption.RedeemedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
