package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
)

// LineItem describes one product or variant entry of a cart or order.
// Tax and line totals are fixed at construction time; aggregation never
// recomputes them from already-rounded figures.
type LineItem struct {
	ProductID      uuid.UUID       `json:"productId"`
	VariantID      *uuid.UUID      `json:"variantId,omitempty"`
	CategoryIDs    []uuid.UUID     `json:"categoryIds,omitempty"`
	Qty            money.Quantity  `json:"qty"`
	UnitPrice      money.Money     `json:"unitPrice"`
	ListPrice      money.Money     `json:"listPrice"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TaxAmount      money.Money     `json:"taxAmount"`
	DiscountAmount money.Money     `json:"discountAmount"`
	LineTotal      money.Money     `json:"lineTotal"`
}

// Totals aggregates the computed pricing components of an item set.
type Totals struct {
	Subtotal      money.Money `json:"subtotal"`
	TaxTotal      money.Money `json:"taxTotal"`
	DiscountTotal money.Money `json:"discountTotal"`
}

// NewLineItem builds a line item, deriving tax amount and line total.
// The invariant is line_total = qty*unit_price + tax_amount - discount_amount
// with every term rounded to two decimals.
func NewLineItem(productID uuid.UUID, variantID *uuid.UUID, categoryIDs []uuid.UUID, qty money.Quantity, unitPrice money.Money, taxRate decimal.Decimal, discount money.Money) LineItem {
	lineSubtotal := money.New(qty.Decimal.Mul(unitPrice.Decimal))
	tax := money.New(lineSubtotal.Decimal.Mul(taxRate).Div(decimal.NewFromInt(100)))
	item := LineItem{
		ProductID:      productID,
		VariantID:      variantID,
		CategoryIDs:    categoryIDs,
		Qty:            qty,
		UnitPrice:      unitPrice,
		ListPrice:      unitPrice,
		TaxRate:        taxRate,
		TaxAmount:      tax,
		DiscountAmount: discount,
	}
	item.LineTotal = lineSubtotal.Add(tax).Sub(discount)
	return item
}

// Subtotal returns qty*unit_price without rounding, for aggregation.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Qty.Decimal.Mul(li.UnitPrice.Decimal)
}

// Aggregate folds a snapshot of line items into cart totals. The subtotal is
// rounded once after summation; tax and discount totals sum the per-line
// amounts that were rounded at line creation.
func Aggregate(items []LineItem) Totals {
	var subtotal, tax, discount decimal.Decimal
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
		tax = tax.Add(it.TaxAmount.Decimal)
		discount = discount.Add(it.DiscountAmount.Decimal)
	}
	return Totals{
		Subtotal:      money.New(subtotal),
		TaxTotal:      money.New(tax),
		DiscountTotal: money.New(discount),
	}
}

// Grand computes the final amount due. The coupon discount joins the per-line
// discounts already counted in DiscountTotal.
func (t Totals) Grand(shipping, paymentFee, couponDiscount money.Money) money.Money {
	total := t.Subtotal.Decimal.
		Add(t.TaxTotal.Decimal).
		Add(shipping.Decimal).
		Add(paymentFee.Decimal).
		Sub(t.DiscountTotal.Decimal).
		Sub(couponDiscount.Decimal)
	return money.New(total)
}

// TotalQuantity sums item quantities across the snapshot.
func TotalQuantity(items []LineItem) decimal.Decimal {
	var total decimal.Decimal
	for _, it := range items {
		total = total.Add(it.Qty.Decimal)
	}
	return total
}
