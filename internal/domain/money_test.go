package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCommission(t *testing.T) {
	feeRate := dec("0.02")

	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"typical amount", "100", "2.00"},
		{"minimum amount rounds to zero", "0.01", "0.00"},
		{"half rounds to even down", "1.25", "0.02"},
		{"half rounds to even up", "1.75", "0.04"},
		{"fractional cents", "33.33", "0.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Commission(dec(tt.amount), feeRate)
			assert.True(t, got.Equal(dec(tt.want)),
				"Commission(%s) = %s, want %s", tt.amount, got, tt.want)
		})
	}
}

func TestCommissionZeroFee(t *testing.T) {
	got := Commission(dec("100"), decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount(dec("0.01")))
	require.NoError(t, ValidateAmount(dec("100.50")))
	require.NoError(t, ValidateAmount(dec("9999999999.99")))

	assert.Error(t, ValidateAmount(decimal.Zero))
	assert.Error(t, ValidateAmount(dec("-5")))
	assert.Error(t, ValidateAmount(dec("1.005")), "more than two decimal places")
	assert.Error(t, ValidateAmount(dec("10000000000")))
}

func TestPaymentIsTerminal(t *testing.T) {
	assert.False(t, (&Payment{Status: PaymentStatusNew}).IsTerminal())
	assert.False(t, (&Payment{Status: PaymentStatusProcessing}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusSuccess}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusFailed}).IsTerminal())
}
