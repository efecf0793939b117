package errors

import "errors"

var ErrUnauthorized = errors.New("user is not authorized")

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("conflicting state")
	ErrNotPending       = errors.New("ticket is not pending")
	ErrAlreadyRedeemed  = errors.New("ticket already redeemed")
	ErrCodeCollision    = errors.New("verification code already in use")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPaymentProvider  = errors.New("payment provider error")
	ErrUnavailable      = errors.New("feature not configured")
)
