package coupon

import (
	"sort"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

// Applied records one coupon's contribution to a stacked discount.
type Applied struct {
	Code         string      `json:"code"`
	Discount     money.Money `json:"discount"`
	FreeShipping bool        `json:"freeShipping,omitempty"`
}

// Stack composes the discounts of simultaneously eligible coupons. The
// highest-priority coupon always applies; a further coupon joins only when it
// and every already-applied coupon allow combination with other coupons.
func Stack(rules []Rule, subtotal money.Money, items []pricing.LineItem) (money.Money, []Applied) {
	ranked := make([]Rule, len(rules))
	copy(ranked, rules)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})

	var (
		total   money.Money
		applied []Applied
	)
	combinable := true
	for _, r := range ranked {
		discount := CalculateDiscount(r, subtotal, items)
		freeShip := freeShippingEligible(r, subtotal, items)
		if !discount.Decimal.IsPositive() && !freeShip {
			continue
		}
		if len(applied) > 0 && (!combinable || !r.CanCombineWithOtherCoupons) {
			continue
		}
		applied = append(applied, Applied{Code: r.Code, Discount: discount, FreeShipping: freeShip})
		total = total.Add(discount)
		combinable = combinable && r.CanCombineWithOtherCoupons
	}
	return total, applied
}

// CombinesWithAutomatic reports whether a manually entered coupon tolerates
// automatic discounts being applied alongside it.
func CombinesWithAutomatic(manual Rule) bool {
	return manual.CanCombineWithAutoDiscounts
}
