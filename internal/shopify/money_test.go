package shopify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Money_Decimal(t *testing.T) {
	d, err := Money{Amount: "29.95", CurrencyCode: "EUR"}.Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("29.95")))

	_, err = Money{Amount: "not-a-number"}.Decimal()
	assert.Error(t, err)
}

func Test_Money_Format(t *testing.T) {
	// Symbol placement varies by locale data; only the amount is asserted.
	formatted := Money{Amount: "42.00", CurrencyCode: "USD"}.Format()
	assert.Contains(t, formatted, "42.00")

	testCases := []struct {
		name     string
		money    Money
		expected string
	}{
		{"unknown code", Money{Amount: "42.00", CurrencyCode: "???"}, "42.00 ???"},
		{"unparseable amount", Money{Amount: "abc", CurrencyCode: "USD"}, "abc USD"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.money.Format())
		})
	}
}
