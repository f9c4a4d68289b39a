package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
)

func TestAggregateIdempotent(t *testing.T) {
	items := []LineItem{
		NewLineItem(uuid.New(), nil, nil, money.QuantityFromFloat(1.5), money.FromFloat(19.99), decimal.NewFromInt(10), money.Zero()),
		NewLineItem(uuid.New(), nil, nil, money.QuantityFromInt(3), money.FromFloat(4.33), decimal.NewFromInt(0), money.FromFloat(1.00)),
	}
	first := Aggregate(items)
	second := Aggregate(items)
	if !first.Subtotal.Equal(second.Subtotal.Decimal) || !first.TaxTotal.Equal(second.TaxTotal.Decimal) || !first.DiscountTotal.Equal(second.DiscountTotal.Decimal) {
		t.Fatalf("aggregation drifted: %+v vs %+v", first, second)
	}
}

func TestLineItemInvariant(t *testing.T) {
	item := NewLineItem(uuid.New(), nil, nil, money.QuantityFromFloat(2.5), money.FromFloat(3.33), decimal.NewFromFloat(11), money.FromFloat(0.50))
	// 2.5*3.33 = 8.325 -> 8.33 (rounded at computation), tax = 8.33*0.11 = 0.9163 -> 0.92
	want := money.FromFloat(8.33).Add(money.FromFloat(0.92)).Sub(money.FromFloat(0.50))
	if !item.LineTotal.Equal(want.Decimal) {
		t.Fatalf("line total = %s, want %s", item.LineTotal, want)
	}
}

func TestAggregateRoundingInvariant(t *testing.T) {
	// Many odd-priced lines: aggregated subtotal must stay within a cent of
	// the sum of individually rounded line subtotals.
	items := make([]LineItem, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, NewLineItem(uuid.New(), nil, nil, money.QuantityFromFloat(0.333), money.FromFloat(9.99), decimal.Zero, money.Zero()))
	}
	totals := Aggregate(items)
	var roundedSum decimal.Decimal
	for _, it := range items {
		roundedSum = roundedSum.Add(it.Subtotal().Round(2))
	}
	diff := totals.Subtotal.Decimal.Sub(roundedSum).Abs()
	if diff.GreaterThanOrEqual(decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(len(items))))) {
		t.Fatalf("rounding drift too large: %s", diff)
	}
}

func TestGrandTotal(t *testing.T) {
	items := []LineItem{
		NewLineItem(uuid.New(), nil, nil, money.QuantityFromInt(2), money.FromFloat(50), decimal.NewFromInt(10), money.Zero()),
	}
	totals := Aggregate(items)
	// subtotal 100, tax 10, shipping 7.50, fee 0.30, coupon 15
	got := totals.Grand(money.FromFloat(7.50), money.FromFloat(0.30), money.FromFloat(15))
	want := money.FromFloat(102.80)
	if !got.Equal(want.Decimal) {
		t.Fatalf("grand total = %s, want %s", got, want)
	}
}

func TestTotalQuantity(t *testing.T) {
	items := []LineItem{
		NewLineItem(uuid.New(), nil, nil, money.QuantityFromFloat(1.25), money.FromFloat(1), decimal.Zero, money.Zero()),
		NewLineItem(uuid.New(), nil, nil, money.QuantityFromInt(3), money.FromFloat(1), decimal.Zero, money.Zero()),
	}
	if got := TotalQuantity(items); !got.Equal(decimal.NewFromFloat(4.25)) {
		t.Fatalf("total quantity = %s, want 4.25", got)
	}
}
