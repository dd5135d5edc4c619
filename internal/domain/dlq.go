package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DLQEntry is an append-only record of a terminally failed payment,
// one row per payment, kept for operator review.
type DLQEntry struct {
	ID          int64
	PaymentID   int64
	UserID      int64
	Amount      decimal.Decimal
	Commission  decimal.Decimal
	PaymentType string
	Error       string
	Attempts    int
	CreatedAt   time.Time
}
