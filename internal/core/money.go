// Package core holds the domain model of the budget planner: money, dates,
// accounts, ledger transactions, categories and recurring definitions.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents. Positive values are income, negative
// values are expenses.
type Money struct {
	Cents int64
}

// MaxLimit bounds budget limits and form-entered amounts.
var MaxLimit = Money{Cents: 99999999}

var maxCents = decimal.New(1<<62, -2)

// Cents builds a Money value from a cent count.
func Cents(c int64) Money { return Money{Cents: c} }

// NewMoney rounds d half away from zero to two decimal places.
func NewMoney(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// ParseMoney converts a user-entered amount to Money.
//
// It accepts a dot or a comma as decimal separator. When both appear, the
// German convention applies: dots group thousands and the comma separates
// the fraction ("1.234,56"). A trailing currency symbol is ignored.
//
//	ParseMoney("12.34")     -> 1234
//	ParseMoney("-12,345")   -> -1235
//	ParseMoney("1.234,50 €") -> 123450
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Abs().GreaterThan(maxCents) {
		return Money{}, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return NewMoney(d), nil
}

// Decimal returns the amount as a decimal with two places.
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.Cents, -2) }

// String renders the amount with a dot separator and two decimals.
func (m Money) String() string { return m.Decimal().StringFixed(2) }

// Euros returns the amount as float64. Use it for display only.
func (m Money) Euros() float64 { return m.Decimal().InexactFloat64() }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }
func (m Money) IsNegative() bool  { return m.Cents < 0 }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// Format renders the amount the way German locales do, e.g. "-1.234,56 €".
func (m Money) Format(symbol string) string {
	abs := m.Abs().Decimal().StringFixed(2)
	intPart, frac, _ := strings.Cut(abs, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := grouped.String() + "," + frac
	if m.IsNegative() {
		out = "-" + out
	}
	if symbol != "" {
		out += " " + symbol
	}
	return out
}

// MarshalJSON encodes Money as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string in any format ParseMoney
// understands.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		parsed, err := ParseMoney(strings.Trim(string(data), `"`))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	if d.Abs().GreaterThan(maxCents) {
		return fmt.Errorf("%w: %s out of range", ErrInvalidAmount, data)
	}
	*m = NewMoney(d)
	return nil
}
