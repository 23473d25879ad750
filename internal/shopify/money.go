package shopify

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Decimal parses the server-issued amount for display purposes.
// The string form remains authoritative.
func (m Money) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", m.Amount, err)
	}
	return d, nil
}

// Format renders the amount with its currency symbol, e.g. "$42.00".
// Falls back to "<amount> <code>" when the currency code is unknown.
func (m Money) Format() string {
	unit, err := currency.ParseISO(m.CurrencyCode)
	if err != nil {
		return fmt.Sprintf("%s %s", m.Amount, m.CurrencyCode)
	}
	d, err := m.Decimal()
	if err != nil {
		return fmt.Sprintf("%s %s", m.Amount, m.CurrencyCode)
	}
	f, _ := d.Float64()
	return fmt.Sprintf("%v", currency.NarrowSymbol(unit.Amount(f)))
}
