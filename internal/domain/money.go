package domain

import "github.com/shopspring/decimal"

// Commission computes the flat fee for an amount, rounded half-even to two
// fractional digits. feeRate is the normalized rate (0.02 for 2%).
func Commission(amount, feeRate decimal.Decimal) decimal.Decimal {
	return amount.Mul(feeRate).RoundBank(2)
}

// ValidateAmount rejects non-positive amounts and amounts with more than
// two fractional digits. Monetary values are numeric(12,2) in storage.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	if amount.GreaterThanOrEqual(decimal.New(1, 10)) {
		return ErrInvalidAmount
	}
	return nil
}
