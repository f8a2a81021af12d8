// Package money provides currency-aware amount handling and the strongly
// typed, time-ordered identifiers used across the flow engine. Amounts on
// the wire stay plain float64 major units (matching every connector's JSON
// contract), but every internal conservation check (capture <= authorized,
// refund <= captured) is done in exact decimal arithmetic to avoid float
// drift across dozens of connector response shapes.
package money

import (
	"fmt"
	"strings"

	"github.com/bojanz/currency"
	"github.com/shopspring/decimal"
)

// Amount pairs an exact decimal value with an ISO-4217 currency code.
type Amount struct {
	value    decimal.Decimal
	currency string
}

// FromMajor builds an Amount from a major-unit float (e.g. 65.40 USD), the
// shape every connector's wire request/response uses.
func FromMajor(majorUnits float64, ccy string) Amount {
	return Amount{
		value:    decimal.NewFromFloat(majorUnits),
		currency: strings.ToUpper(ccy),
	}
}

// FromMinor builds an Amount from an integer minor-unit value (e.g. 6540
// cents), the shape connectors like Stripe use on the wire.
func FromMinor(minorUnits int64, ccy string) (Amount, error) {
	ccy = strings.ToUpper(ccy)
	if !validISOCurrency(ccy) {
		return Amount{}, fmt.Errorf("money: unknown currency %q", ccy)
	}
	scale := decimal.New(1, int32(digitsFor(ccy)))
	return Amount{value: decimal.NewFromInt(minorUnits).Div(scale), currency: ccy}, nil
}

// validISOCurrency reports whether ccy parses as a currency.NewAmount unit
// quantity, i.e. whether bojanz/currency's ISO 4217 table recognises it.
func validISOCurrency(ccy string) bool {
	_, err := currency.NewAmount("0", ccy)
	return err == nil
}

// digitsFor returns the number of minor-unit digits for ccy (2 for USD/EUR,
// 0 for JPY, 3 for e.g. BHD), falling back to 2 for anything unlisted.
func digitsFor(ccy string) int {
	if d, ok := minorDigits[ccy]; ok {
		return d
	}
	return 2
}

// minorDigits covers the common currencies the connector pack exercises;
// anything absent defaults to 2 digits via digitsFor.
var minorDigits = map[string]int{
	"JPY": 0, "KRW": 0, "VND": 0,
	"BHD": 3, "KWD": 3, "OMR": 3,
	"USD": 2, "EUR": 2, "GBP": 2, "TRY": 2, "CAD": 2, "AUD": 2,
}

// Zero returns the zero amount in the given currency.
func Zero(ccy string) Amount {
	return Amount{value: decimal.Zero, currency: strings.ToUpper(ccy)}
}

// Currency returns the ISO-4217 code.
func (a Amount) Currency() string { return a.currency }

// Major returns the major-unit float representation for wire serialization.
func (a Amount) Major() float64 {
	f, _ := a.value.Float64()
	return f
}

// Minor returns the integer minor-unit representation (e.g. cents) for
// connectors whose wire format requires it.
func (a Amount) Minor() (int64, error) {
	scale := decimal.New(1, int32(digitsFor(a.currency)))
	return a.value.Mul(scale).Round(0).IntPart(), nil
}

// Add returns a + b. Both must share a currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.currency != b.currency {
		return Amount{}, fmt.Errorf("money: currency mismatch %s vs %s", a.currency, b.currency)
	}
	return Amount{value: a.value.Add(b.value), currency: a.currency}, nil
}

// Sub returns a - b. Both must share a currency.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.currency != b.currency {
		return Amount{}, fmt.Errorf("money: currency mismatch %s vs %s", a.currency, b.currency)
	}
	return Amount{value: a.value.Sub(b.value), currency: a.currency}, nil
}

// LessThanOrEqual reports whether a <= b. Both must share a currency.
func (a Amount) LessThanOrEqual(b Amount) bool {
	return a.currency == b.currency && a.value.LessThanOrEqual(b.value)
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.value.IsZero() }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.value.IsPositive() }

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.value.StringFixed(int32(digitsFor(a.currency))), a.currency)
}
