package money

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is a currency amount kept at two decimal places. Arithmetic that must
// not round intermediate results should happen on raw decimals and be wrapped
// with New at the end.
type Money struct {
	decimal.Decimal
}

// New wraps a decimal as a currency amount, rounding to two decimal places.
func New(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromFloat converts a float to a currency amount.
func FromFloat(v float64) Money {
	return New(decimal.NewFromFloat(v))
}

// FromInt converts whole units to a currency amount.
func FromInt(v int64) Money {
	return Money{Decimal: decimal.NewFromInt(v)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return New(m.Decimal.Add(other.Decimal))
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return New(m.Decimal.Sub(other.Decimal))
}

// Min returns the smaller of the two amounts.
func Min(a, b Money) Money {
	if a.Decimal.LessThan(b.Decimal) {
		return a
	}
	return b
}

// ClampZero returns zero when the amount is negative.
func (m Money) ClampZero() Money {
	if m.Decimal.IsNegative() {
		return Zero()
	}
	return m
}

// MarshalJSON renders the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON accepts either a string or a number.
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d.Round(2)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	m.Decimal = decimal.NewFromFloat(f).Round(2)
	return nil
}

// Value implements driver.Valuer for database writes.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

// Scan implements sql.Scanner for database reads.
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

// String returns the fixed two-decimal representation.
func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
