package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusNew        PaymentStatus = "new"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Payment is the business record of a deposit or withdrawal. Scheduling
// state lives on the matching PaymentTask; the two are kept in lockstep by
// the worker transitions.
type Payment struct {
	ID             int64
	UserID         int64
	Amount         decimal.Decimal
	Commission     decimal.Decimal
	Status         PaymentStatus
	IdempotencyKey *string
	Attempts       int
	LastError      *string
	NextRetryAt    *time.Time
	LockedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the payment reached a final state.
// Terminal payments never mutate a balance again.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}
