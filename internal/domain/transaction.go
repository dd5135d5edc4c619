package domain

import "github.com/shopspring/decimal"

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
)

type TransactionStatus string

const (
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSuccess    TransactionStatus = "success"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// Transaction mirrors the terminal outcome of its owning payment.
// The current design creates exactly one transaction per payment.
type Transaction struct {
	ID         int64
	UserID     int64
	PaymentID  *int64
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Type       TransactionType
	Status     TransactionStatus
}
