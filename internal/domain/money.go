package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point BRL amount. Every monetary value in the service flows
// through it; float64 never touches an amount.
type Money struct {
	d decimal.Decimal
}

// DefaultMinimumFloor is the floor applied when a discount config does not set one.
var DefaultMinimumFloor = MoneyFromCents(1000)

// NewMoney parses a decimal string such as "150.00" or "25".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustMoney is NewMoney for literals. Panics on malformed input.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromCents builds a Money from an integer number of centavos.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// Zero returns R$ 0,00.
func Zero() Money { return Money{d: decimal.Zero} }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Min returns the smaller of the two amounts.
func (m Money) Min(o Money) Money {
	if m.d.LessThan(o.d) {
		return m
	}
	return o
}

func (m Money) Cmp(o Money) int              { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool           { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool        { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool { return m.d.LessThanOrEqual(o.d) }
func (m Money) GreaterThan(o Money) bool     { return m.d.GreaterThan(o.d) }
func (m Money) IsZero() bool                 { return m.d.IsZero() }
func (m Money) IsPositive() bool             { return m.d.IsPositive() }
func (m Money) IsNegative() bool             { return m.d.IsNegative() }

// RoundHalfUp rounds to two fraction digits, ties away from zero.
func (m Money) RoundHalfUp() Money { return Money{d: m.d.Round(2)} }

// Truncate2 drops everything past the second fraction digit.
func (m Money) Truncate2() Money { return Money{d: m.d.Truncate(2)} }

// Cents returns the amount in centavos, rounding half-up first.
func (m Money) Cents() int64 { return m.d.Round(2).Shift(2).IntPart() }

// Fixed2 renders "1234.50": two fraction digits, dot separator, no grouping.
func (m Money) Fixed2() string { return m.d.StringFixed(2) }

// BRL renders the amount for people: "R$ 1.234,50".
func (m Money) BRL() string {
	s := m.d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if m.d.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

func (m Money) String() string { return m.Fixed2() }

// MarshalJSON renders a bare JSON number with exactly two fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts 150.5, "150.50" and null (zero).
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.d = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(b), err)
	}
	m.d = d
	return nil
}

// Value stores the amount as TEXT so no driver rounds it through a float.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(2), nil
}

// Scan reads TEXT, NUMERIC or integer columns.
func (m *Money) Scan(src any) error {
	return m.d.Scan(src)
}
