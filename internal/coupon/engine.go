package coupon

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

var (
	// ErrInactive is returned when the coupon is disabled.
	ErrInactive = errors.New("coupon not active")
	// ErrNotStarted is returned before the coupon's start date.
	ErrNotStarted = errors.New("coupon not started")
	// ErrExpired is returned after the coupon's end date.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon exhausted its global quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerCustomerLimitReached indicates the customer exceeded their allowance.
	ErrPerCustomerLimitReached = errors.New("coupon per-customer usage limit reached")
	// ErrNotEligible is returned when the coupon cannot be applied to the cart.
	ErrNotEligible = errors.New("coupon not eligible")
)

// Kind is the monetary effect of a coupon or tier.
type Kind string

const (
	KindFixed        Kind = "fixed"
	KindPercentage   Kind = "percentage"
	KindFreeShipping Kind = "free_shipping"
)

// DiscountKind selects the calculation strategy.
type DiscountKind string

const (
	DiscountSimple DiscountKind = "simple"
	DiscountBxgy   DiscountKind = "bxgy"
	DiscountTiered DiscountKind = "tiered"
)

// AppliesTo restricts which line items form the discount base.
type AppliesTo string

const (
	AppliesAll        AppliesTo = "all"
	AppliesProducts   AppliesTo = "specific_products"
	AppliesCategories AppliesTo = "specific_categories"
)

// MinRequirement gates the coupon on a cart property.
type MinRequirement string

const (
	MinNone     MinRequirement = "none"
	MinAmount   MinRequirement = "amount"
	MinQuantity MinRequirement = "quantity"
)

// Eligibility restricts which customers may use the coupon.
type Eligibility string

const (
	EligibleAll       Eligibility = "all"
	EligibleGroups    Eligibility = "specific_groups"
	EligibleCustomers Eligibility = "specific_customers"
)

// Tier is one threshold rule of a tiered coupon.
type Tier struct {
	Min   money.Money     `json:"min"`
	Type  Kind            `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Rule captures the full runtime configuration of a coupon.
type Rule struct {
	ID                          uuid.UUID
	Code                        string
	Type                        Kind
	Value                       decimal.Decimal
	DiscountKind                DiscountKind
	AppliesTo                   AppliesTo
	ProductIDs                  []uuid.UUID
	CategoryIDs                 []uuid.UUID
	ExcludeProductIDs           []uuid.UUID
	ExcludeCategoryIDs          []uuid.UUID
	MinRequirement              MinRequirement
	MinRequirementValue         decimal.Decimal
	MinSpend                    money.Money // legacy gate, honoured only when MinRequirement is none
	Eligibility                 Eligibility
	CustomerIDs                 []uuid.UUID
	GroupIDs                    []uuid.UUID
	CanCombineWithOtherCoupons  bool
	CanCombineWithAutoDiscounts bool
	Priority                    int
	UsageLimit                  *int
	UsageLimitPerCustomer       *int
	UsedCount                   int
	StartsAt                    *time.Time
	EndsAt                      *time.Time
	IsActive                    bool
	IsAutomatic                 bool

	// bxgy configuration
	BuyQuantity        int
	GetQuantity        int
	GetDiscountPercent *decimal.Decimal // nil means the full 100%
	BuyProductIDs      []uuid.UUID
	GetProductIDs      []uuid.UUID

	// tiered configuration, ordered as configured
	Tiers []Tier

	CreatedAt time.Time
}

// Validate checks the activation window and global usage quota. Eligibility
// against a specific cart or customer is a separate concern.
func Validate(r Rule, now time.Time) error {
	if !r.IsActive {
		return ErrInactive
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrNotStarted
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return ErrExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit > 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// CalculateDiscount evaluates one coupon against a priced cart snapshot and
// returns the discount amount, rounded to two decimals at the point of
// return. It is a total function: misconfigured coupons yield zero, never an
// error, so a broken promotion cannot block a checkout.
func CalculateDiscount(r Rule, subtotal money.Money, items []pricing.LineItem) money.Money {
	switch r.DiscountKind {
	case DiscountBxgy:
		return bxgyDiscount(r, items)
	case DiscountTiered:
		return tieredDiscount(r, subtotal, items)
	default:
		return simpleDiscount(r, subtotal, items)
	}
}

func bxgyDiscount(r Rule, items []pricing.LineItem) money.Money {
	if r.BuyQuantity <= 0 || r.GetQuantity <= 0 {
		return money.Zero()
	}
	buyIDs := idSet(r.BuyProductIDs)
	getIDs := idSet(r.GetProductIDs)

	var buyCount decimal.Decimal
	for _, it := range items {
		if len(buyIDs) == 0 || buyIDs[it.ProductID] {
			buyCount = buyCount.Add(it.Qty.Decimal)
		}
	}
	qualifyingSets := buyCount.Div(decimal.NewFromInt(int64(r.BuyQuantity))).Floor()
	allowance := qualifyingSets.Mul(decimal.NewFromInt(int64(r.GetQuantity)))
	if !allowance.IsPositive() {
		return money.Zero()
	}

	pct := decimal.NewFromInt(100)
	if r.GetDiscountPercent != nil {
		pct = *r.GetDiscountPercent
	}
	rate := pct.Div(decimal.NewFromInt(100))

	var discount decimal.Decimal
	for _, it := range items {
		if !allowance.IsPositive() {
			break
		}
		if len(getIDs) > 0 && !getIDs[it.ProductID] {
			continue
		}
		take := decimal.Min(it.Qty.Decimal, allowance)
		discount = discount.Add(take.Mul(it.UnitPrice.Decimal).Mul(rate))
		allowance = allowance.Sub(take)
	}
	return money.New(discount).ClampZero()
}

func tieredDiscount(r Rule, subtotal money.Money, items []pricing.LineItem) money.Money {
	var best *Tier
	for i := range r.Tiers {
		tier := &r.Tiers[i]
		if subtotal.Decimal.LessThan(tier.Min.Decimal) {
			continue
		}
		if best == nil || tier.Min.Decimal.GreaterThan(best.Min.Decimal) {
			best = tier
		}
	}
	if best == nil {
		return money.Zero()
	}
	eligible := eligibleAmount(r, subtotal, items)
	return applyValue(best.Type, best.Value, eligible)
}

func simpleDiscount(r Rule, subtotal money.Money, items []pricing.LineItem) money.Money {
	if !passesMinimum(r, subtotal, items) {
		return money.Zero()
	}
	// Free shipping has no monetary effect here; zeroing the shipping total
	// is the caller's responsibility.
	if r.Type == KindFreeShipping {
		return money.Zero()
	}
	eligible := eligibleAmount(r, subtotal, items)
	return applyValue(r.Type, r.Value, eligible)
}

func passesMinimum(r Rule, subtotal money.Money, items []pricing.LineItem) bool {
	switch r.MinRequirement {
	case MinAmount:
		return subtotal.Decimal.GreaterThanOrEqual(r.MinRequirementValue)
	case MinQuantity:
		return pricing.TotalQuantity(items).GreaterThanOrEqual(r.MinRequirementValue)
	default:
		if r.MinSpend.Decimal.IsPositive() {
			return subtotal.Decimal.GreaterThanOrEqual(r.MinSpend.Decimal)
		}
		return true
	}
}

// freeShippingEligible reports whether the rule waives shipping for the
// given cart. The waiver carries no subtotal discount of its own.
func freeShippingEligible(r Rule, subtotal money.Money, items []pricing.LineItem) bool {
	return r.Type == KindFreeShipping && passesMinimum(r, subtotal, items)
}

// eligibleAmount is the portion of the subtotal a restricted coupon may
// discount, after include/exclude filtering.
func eligibleAmount(r Rule, subtotal money.Money, items []pricing.LineItem) money.Money {
	switch r.AppliesTo {
	case AppliesProducts:
		include := idSet(r.ProductIDs)
		exclude := idSet(r.ExcludeProductIDs)
		var total decimal.Decimal
		for _, it := range items {
			if include[it.ProductID] && !exclude[it.ProductID] {
				total = total.Add(it.Subtotal())
			}
		}
		return money.New(total)
	case AppliesCategories:
		include := idSet(r.CategoryIDs)
		excludeCat := idSet(r.ExcludeCategoryIDs)
		excludeProd := idSet(r.ExcludeProductIDs)
		var total decimal.Decimal
		for _, it := range items {
			if excludeProd[it.ProductID] {
				continue
			}
			if categoryEligible(it.CategoryIDs, include, excludeCat) {
				total = total.Add(it.Subtotal())
			}
		}
		return money.New(total)
	default:
		return subtotal
	}
}

// categoryEligible requires membership in at least one included category and
// in none of the excluded ones.
func categoryEligible(categoryIDs []uuid.UUID, include, exclude map[uuid.UUID]bool) bool {
	matched := false
	for _, id := range categoryIDs {
		if exclude[id] {
			return false
		}
		if include[id] {
			matched = true
		}
	}
	return matched
}

func applyValue(kind Kind, value decimal.Decimal, eligible money.Money) money.Money {
	if !eligible.Decimal.IsPositive() {
		return money.Zero()
	}
	switch kind {
	case KindPercentage:
		return money.New(eligible.Decimal.Mul(value).Div(decimal.NewFromInt(100))).ClampZero()
	case KindFixed:
		return money.Min(money.New(value), eligible).ClampZero()
	default:
		return money.Zero()
	}
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
