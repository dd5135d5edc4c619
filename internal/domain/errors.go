package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTaskNotFound        = errors.New("payment task not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")

	// ErrDuplicateIdempotencyKey is returned by stores when an insert
	// collides with the (user_id, idempotency_key) unique constraint.
	// Intake resolves it by re-reading the existing payment.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// Stable error codes recorded on payments and DLQ rows.
const (
	ReasonInsufficientFunds  = "insufficient_funds"
	ReasonMissingTransaction = "missing_transaction"
	ReasonMissingUser        = "missing_user"
)
