package coupon

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

func lineItem(productID uuid.UUID, qty int64, unitPrice float64, categoryIDs ...uuid.UUID) pricing.LineItem {
	return pricing.NewLineItem(productID, nil, categoryIDs, money.QuantityFromInt(qty), money.FromFloat(unitPrice), decimal.Zero, money.Zero())
}

func TestBxgyDiscount(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	pct := decimal.NewFromInt(50)
	rule := Rule{
		Code:               "BXGY",
		DiscountKind:       DiscountBxgy,
		BuyQuantity:        2,
		GetQuantity:        1,
		GetDiscountPercent: &pct,
		BuyProductIDs:      []uuid.UUID{productA},
		GetProductIDs:      []uuid.UUID{productB},
	}
	items := []pricing.LineItem{
		lineItem(productA, 4, 25),
		lineItem(productB, 3, 10),
	}
	totals := pricing.Aggregate(items)
	// buyCount=4 -> 2 qualifying sets -> 2 free items at 50% of 10.00
	got := CalculateDiscount(rule, totals.Subtotal, items)
	want := money.FromFloat(10)
	if !got.Equal(want.Decimal) {
		t.Fatalf("bxgy discount = %s, want %s", got, want)
	}
}

func TestBxgyDefaultsToFullDiscount(t *testing.T) {
	productA := uuid.New()
	rule := Rule{DiscountKind: DiscountBxgy, BuyQuantity: 2, GetQuantity: 1}
	items := []pricing.LineItem{lineItem(productA, 3, 10)}
	// buyCount=3 -> 1 set -> 1 free item at 100%
	got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("bxgy discount = %s, want 10.00", got)
	}
}

func TestBxgyMisconfiguredYieldsZero(t *testing.T) {
	rule := Rule{DiscountKind: DiscountBxgy, BuyQuantity: 0, GetQuantity: 1}
	items := []pricing.LineItem{lineItem(uuid.New(), 10, 10)}
	if got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items); !got.IsZero() {
		t.Fatalf("expected zero discount, got %s", got)
	}
}

func TestTieredSelectsHighestQualifyingTier(t *testing.T) {
	rule := Rule{
		Code:         "TIERS",
		DiscountKind: DiscountTiered,
		AppliesTo:    AppliesAll,
		Tiers: []Tier{
			{Min: money.FromFloat(0), Type: KindPercentage, Value: decimal.Zero},
			{Min: money.FromFloat(100), Type: KindPercentage, Value: decimal.NewFromInt(5)},
			{Min: money.FromFloat(500), Type: KindPercentage, Value: decimal.NewFromInt(10)},
		},
	}
	items := []pricing.LineItem{lineItem(uuid.New(), 6, 100)}
	got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items)
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("tiered discount = %s, want 60.00", got)
	}
}

func TestTieredNoQualifyingTier(t *testing.T) {
	rule := Rule{
		DiscountKind: DiscountTiered,
		Tiers:        []Tier{{Min: money.FromFloat(100), Type: KindFixed, Value: decimal.NewFromInt(5)}},
	}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 50)}
	if got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items); !got.IsZero() {
		t.Fatalf("expected zero discount, got %s", got)
	}
}

func TestSpecificProductsEligibleAmount(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()
	rule := Rule{
		Code:         "P1ONLY",
		Type:         KindPercentage,
		Value:        decimal.NewFromInt(10),
		DiscountKind: DiscountSimple,
		AppliesTo:    AppliesProducts,
		ProductIDs:   []uuid.UUID{p1},
	}
	items := []pricing.LineItem{
		lineItem(p1, 2, 100),
		lineItem(p2, 1, 50),
	}
	// eligible amount is 200, not the 250 subtotal
	got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items)
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("discount = %s, want 20.00", got)
	}
}

func TestSpecificCategoriesWithExclusion(t *testing.T) {
	catIn := uuid.New()
	catOut := uuid.New()
	rule := Rule{
		Type:               KindPercentage,
		Value:              decimal.NewFromInt(10),
		DiscountKind:       DiscountSimple,
		AppliesTo:          AppliesCategories,
		CategoryIDs:        []uuid.UUID{catIn},
		ExcludeCategoryIDs: []uuid.UUID{catOut},
	}
	items := []pricing.LineItem{
		lineItem(uuid.New(), 1, 100, catIn),
		lineItem(uuid.New(), 1, 100, catIn, catOut), // excluded category wins
		lineItem(uuid.New(), 1, 100),                // no category membership
	}
	got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("discount = %s, want 10.00", got)
	}
}

func TestFixedDiscountCappedAtEligibleAmount(t *testing.T) {
	rule := Rule{Type: KindFixed, Value: decimal.NewFromInt(500), DiscountKind: DiscountSimple, AppliesTo: AppliesAll}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 80)}
	got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items)
	if !got.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("discount = %s, want 80.00", got)
	}
}

func TestMinimumRequirementGates(t *testing.T) {
	items := []pricing.LineItem{lineItem(uuid.New(), 2, 40)}
	subtotal := pricing.Aggregate(items).Subtotal

	amountGate := Rule{Type: KindFixed, Value: decimal.NewFromInt(5), MinRequirement: MinAmount, MinRequirementValue: decimal.NewFromInt(100)}
	if got := CalculateDiscount(amountGate, subtotal, items); !got.IsZero() {
		t.Fatalf("amount gate should reject, got %s", got)
	}

	qtyGate := Rule{Type: KindFixed, Value: decimal.NewFromInt(5), MinRequirement: MinQuantity, MinRequirementValue: decimal.NewFromInt(3)}
	if got := CalculateDiscount(qtyGate, subtotal, items); !got.IsZero() {
		t.Fatalf("quantity gate should reject, got %s", got)
	}

	legacyGate := Rule{Type: KindFixed, Value: decimal.NewFromInt(5), MinRequirement: MinNone, MinSpend: money.FromFloat(200)}
	if got := CalculateDiscount(legacyGate, subtotal, items); !got.IsZero() {
		t.Fatalf("legacy min spend should reject, got %s", got)
	}

	open := Rule{Type: KindFixed, Value: decimal.NewFromInt(5), MinRequirement: MinNone}
	if got := CalculateDiscount(open, subtotal, items); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("open coupon discount = %s, want 5.00", got)
	}
}

func TestFreeShippingYieldsZeroHere(t *testing.T) {
	rule := Rule{Type: KindFreeShipping, DiscountKind: DiscountSimple}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}
	if got := CalculateDiscount(rule, pricing.Aggregate(items).Subtotal, items); !got.IsZero() {
		t.Fatalf("free shipping should not discount the subtotal, got %s", got)
	}
}

func TestValidateWindowAndUsage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 10

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{"inactive", Rule{}, ErrInactive},
		{"not started", Rule{IsActive: true, StartsAt: &future}, ErrNotStarted},
		{"expired", Rule{IsActive: true, EndsAt: &past}, ErrExpired},
		{"exhausted", Rule{IsActive: true, UsageLimit: &limit, UsedCount: 10}, ErrUsageLimitReached},
		{"ok", Rule{IsActive: true, StartsAt: &past, EndsAt: &future, UsageLimit: &limit, UsedCount: 9}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.rule, now); err != tc.want {
				t.Fatalf("Validate = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestStackRespectsCombinability(t *testing.T) {
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 1000)}
	subtotal := pricing.Aggregate(items).Subtotal
	top := Rule{Code: "TOP", Priority: 10, Type: KindFixed, Value: decimal.NewFromInt(100), CanCombineWithOtherCoupons: true}
	mid := Rule{Code: "MID", Priority: 5, Type: KindFixed, Value: decimal.NewFromInt(50), CanCombineWithOtherCoupons: true}
	loner := Rule{Code: "LONER", Priority: 1, Type: KindFixed, Value: decimal.NewFromInt(25)}

	total, applied := Stack([]Rule{loner, mid, top}, subtotal, items)
	if len(applied) != 2 {
		t.Fatalf("applied %d coupons, want 2: %+v", len(applied), applied)
	}
	if applied[0].Code != "TOP" || applied[1].Code != "MID" {
		t.Fatalf("unexpected stacking order: %+v", applied)
	}
	if !total.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("stacked total = %s, want 150.00", total)
	}
}

func TestStackExclusiveTopCouponWins(t *testing.T) {
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 1000)}
	subtotal := pricing.Aggregate(items).Subtotal
	exclusive := Rule{Code: "EXCL", Priority: 10, Type: KindFixed, Value: decimal.NewFromInt(100)}
	other := Rule{Code: "OTHER", Priority: 5, Type: KindFixed, Value: decimal.NewFromInt(50), CanCombineWithOtherCoupons: true}

	total, applied := Stack([]Rule{other, exclusive}, subtotal, items)
	if len(applied) != 1 || applied[0].Code != "EXCL" {
		t.Fatalf("expected only the exclusive coupon, got %+v", applied)
	}
	if !total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100.00", total)
	}
}
