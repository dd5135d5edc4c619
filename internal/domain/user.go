package domain

import "github.com/shopspring/decimal"

// User holds the balance mutated by the outcome appliers. The balance only
// changes inside a transaction that holds the user row lock.
type User struct {
	ID      int64
	Balance decimal.Decimal
}
