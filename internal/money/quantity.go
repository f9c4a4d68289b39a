package money

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quantity is an item quantity kept at three decimal places, so fractional
// units (weight, length) survive aggregation without drift.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity wraps a decimal as a quantity, rounding to three decimal places.
func NewQuantity(v decimal.Decimal) Quantity {
	return Quantity{Decimal: v.Round(3)}
}

// QuantityFromInt converts a whole count to a quantity.
func QuantityFromInt(v int64) Quantity {
	return Quantity{Decimal: decimal.NewFromInt(v)}
}

// QuantityFromFloat converts a float to a quantity.
func QuantityFromFloat(v float64) Quantity {
	return NewQuantity(decimal.NewFromFloat(v))
}

// Add returns q + other.
func (q Quantity) Add(other Quantity) Quantity {
	return NewQuantity(q.Decimal.Add(other.Decimal))
}

// MarshalJSON renders the quantity as a number-like string with three decimals.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Decimal.Round(3).String())
}

// UnmarshalJSON accepts either a string or a number.
func (q *Quantity) UnmarshalJSON(b []byte) error {
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
		q.Decimal = d.Round(3)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	q.Decimal = decimal.NewFromFloat(f).Round(3)
	return nil
}

// Value implements driver.Valuer for database writes.
func (q Quantity) Value() (driver.Value, error) {
	return q.Decimal.Round(3).Value()
}

// Scan implements sql.Scanner for database reads.
func (q *Quantity) Scan(value interface{}) error {
	if err := q.Decimal.Scan(value); err != nil {
		return err
	}
	q.Decimal = q.Decimal.Round(3)
	return nil
}
