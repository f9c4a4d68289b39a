package offer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

func cartWith(items ...pricing.LineItem) CartContext {
	totals := pricing.Aggregate(items)
	return CartContext{Items: items, Subtotal: totals.Subtotal}
}

func item(productID uuid.UUID, qty int64, price float64, categoryIDs ...uuid.UUID) pricing.LineItem {
	return pricing.NewLineItem(productID, nil, categoryIDs, money.QuantityFromInt(qty), money.FromFloat(price), decimal.Zero, money.Zero())
}

func basicOffer(id uuid.UUID, priority int, products ...OfferProduct) CartOffer {
	return CartOffer{
		ID:        id,
		Title:     "offer",
		Placement: PlacementCart,
		Trigger:   Trigger{Kind: TriggerAllProducts},
		Priority:  priority,
		IsActive:  true,
		Products:  products,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func resolverFor(views map[uuid.UUID]ProductView) Resolver {
	return func(p OfferProduct) (ProductView, bool) {
		v, ok := views[p.ProductID]
		return v, ok
	}
}

func productView(id uuid.UUID, regular, selling float64) ProductView {
	return ProductView{
		ID:           id,
		Name:         "product",
		RegularPrice: money.FromFloat(regular),
		SellingPrice: money.FromFloat(selling),
	}
}

func TestHighestPriorityOfferWins(t *testing.T) {
	upsellA := uuid.New()
	upsellB := uuid.New()
	high := basicOffer(uuid.New(), 10, OfferProduct{ProductID: upsellA, DiscountKind: DiscountPercentage, Value: decimal.NewFromInt(10), Base: BaseSellingPrice})
	low := basicOffer(uuid.New(), 5, OfferProduct{ProductID: upsellB, DiscountKind: DiscountPercentage, Value: decimal.NewFromInt(10), Base: BaseSellingPrice})
	candidates := []CartOffer{low, high}
	SortCandidates(candidates)

	cart := cartWith(item(uuid.New(), 1, 50))
	views := map[uuid.UUID]ProductView{
		upsellA: productView(upsellA, 100, 90),
		upsellB: productView(upsellB, 100, 90),
	}
	got := ResolveBestOffer(cart, candidates, View{}, resolverFor(views))
	if got == nil || got.ID != high.ID {
		t.Fatalf("expected priority-10 offer, got %+v", got)
	}
}

func TestFallbackWhenTopOfferProductInCart(t *testing.T) {
	inCart := uuid.New()
	upsell := uuid.New()
	top := basicOffer(uuid.New(), 10, OfferProduct{ProductID: inCart, DiscountKind: DiscountPercentage, Value: decimal.NewFromInt(10), Base: BaseSellingPrice})
	fallback := basicOffer(uuid.New(), 5, OfferProduct{ProductID: upsell, DiscountKind: DiscountPercentage, Value: decimal.NewFromInt(10), Base: BaseSellingPrice})
	candidates := []CartOffer{top, fallback}
	SortCandidates(candidates)

	cart := cartWith(item(inCart, 1, 50))
	views := map[uuid.UUID]ProductView{
		inCart: productView(inCart, 60, 50),
		upsell: productView(upsell, 100, 90),
	}
	got := ResolveBestOffer(cart, candidates, View{}, resolverFor(views))
	if got == nil || got.ID != fallback.ID {
		t.Fatalf("expected fallback offer, got %+v", got)
	}
}

func TestSpecificProductsTriggerNoIntersection(t *testing.T) {
	o := basicOffer(uuid.New(), 1, OfferProduct{ProductID: uuid.New(), DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice})
	o.Trigger = Trigger{Kind: TriggerSpecificProducts, ProductIDs: []uuid.UUID{uuid.New()}}
	cart := cartWith(item(uuid.New(), 1, 50))
	got := ResolveBestOffer(cart, []CartOffer{o}, View{}, resolverFor(nil))
	if got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestSpecificCategoriesTriggerViaViewedProduct(t *testing.T) {
	upsell := uuid.New()
	cat := uuid.New()
	o := basicOffer(uuid.New(), 1, OfferProduct{ProductID: upsell, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice})
	o.Trigger = Trigger{Kind: TriggerSpecificCategories, CategoryIDs: []uuid.UUID{cat}}
	viewed := uuid.New()
	cart := cartWith(item(uuid.New(), 1, 50))
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 20, 20)}
	got := ResolveBestOffer(cart, []CartOffer{o}, View{ProductID: &viewed, CategoryIDs: []uuid.UUID{cat}}, resolverFor(views))
	if got == nil {
		t.Fatal("expected category trigger to match via viewed product")
	}
}

func TestCartTotalTriggerRange(t *testing.T) {
	upsell := uuid.New()
	minTotal := money.FromFloat(100)
	maxTotal := money.FromFloat(200)
	o := basicOffer(uuid.New(), 1, OfferProduct{ProductID: upsell, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice})
	o.Trigger = Trigger{Kind: TriggerCartTotal, MinTotal: &minTotal, MaxTotal: &maxTotal}
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 20, 20)}

	if got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 50)), []CartOffer{o}, View{}, resolverFor(views)); got != nil {
		t.Fatalf("below range should not match, got %+v", got)
	}
	if got := ResolveBestOffer(cartWith(item(uuid.New(), 3, 50)), []CartOffer{o}, View{}, resolverFor(views)); got == nil {
		t.Fatal("within range should match")
	}
}

func TestExcludeDiscountedCondition(t *testing.T) {
	upsell := uuid.New()
	o := basicOffer(uuid.New(), 1, OfferProduct{ProductID: upsell, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice})
	o.Conditions.ExcludeDiscounted = true
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 20, 20)}

	discountedItem := item(uuid.New(), 1, 40)
	discountedItem.ListPrice = money.FromFloat(50)
	if got := ResolveBestOffer(cartWith(discountedItem), []CartOffer{o}, View{}, resolverFor(views)); got != nil {
		t.Fatalf("cart with discounted item should not match, got %+v", got)
	}
	if got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 40)), []CartOffer{o}, View{}, resolverFor(views)); got == nil {
		t.Fatal("cart at list price should match")
	}
}

func TestLoggedInOnlyCondition(t *testing.T) {
	upsell := uuid.New()
	o := basicOffer(uuid.New(), 1, OfferProduct{ProductID: upsell, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice})
	o.Conditions.LoggedInOnly = true
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 20, 20)}

	anon := cartWith(item(uuid.New(), 1, 40))
	if got := ResolveBestOffer(anon, []CartOffer{o}, View{}, resolverFor(views)); got != nil {
		t.Fatalf("anonymous cart should not match, got %+v", got)
	}
	authed := anon
	authed.LoggedIn = true
	if got := ResolveBestOffer(authed, []CartOffer{o}, View{}, resolverFor(views)); got == nil {
		t.Fatal("logged-in cart should match")
	}
}

func TestPayloadPricing(t *testing.T) {
	upsell := uuid.New()
	o := basicOffer(uuid.New(), 1,
		OfferProduct{ProductID: upsell, DiscountKind: DiscountPercentage, Value: decimal.NewFromInt(25), Base: BaseRegularPrice},
	)
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 80, 60)}
	got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 40)), []CartOffer{o}, View{}, resolverFor(views))
	if got == nil || len(got.Products) != 1 {
		t.Fatalf("expected one priced product, got %+v", got)
	}
	p := got.Products[0]
	if !p.BasePrice.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("base price = %s, want 80.00", p.BasePrice)
	}
	if !p.DiscountedPrice.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("discounted price = %s, want 60.00", p.DiscountedPrice)
	}
	if !p.DiscountPercent.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("discount percent = %s, want 25", p.DiscountPercent)
	}
}

func TestFixedDiscountNeverNegative(t *testing.T) {
	upsell := uuid.New()
	o := basicOffer(uuid.New(), 1,
		OfferProduct{ProductID: upsell, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(500), Base: BaseSellingPrice},
	)
	views := map[uuid.UUID]ProductView{upsell: productView(upsell, 20, 20)}
	got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 40)), []CartOffer{o}, View{}, resolverFor(views))
	if got == nil {
		t.Fatal("expected a match")
	}
	if !got.Products[0].DiscountedPrice.IsZero() {
		t.Fatalf("discounted price = %s, want 0.00", got.Products[0].DiscountedPrice)
	}
}

func TestViewedProductExcludedFromPayload(t *testing.T) {
	viewed := uuid.New()
	o := basicOffer(uuid.New(), 1,
		OfferProduct{ProductID: viewed, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(5), Base: BaseSellingPrice},
	)
	views := map[uuid.UUID]ProductView{viewed: productView(viewed, 20, 20)}
	got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 40)), []CartOffer{o}, View{ProductID: &viewed}, resolverFor(views))
	if got != nil {
		t.Fatalf("offer whose only product is being viewed should not match, got %+v", got)
	}
}

func TestTieBreakFavoursNewestOffer(t *testing.T) {
	upsellA := uuid.New()
	upsellB := uuid.New()
	older := basicOffer(uuid.New(), 5, OfferProduct{ProductID: upsellA, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(1), Base: BaseSellingPrice})
	newer := basicOffer(uuid.New(), 5, OfferProduct{ProductID: upsellB, DiscountKind: DiscountFixed, Value: decimal.NewFromInt(1), Base: BaseSellingPrice})
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	candidates := []CartOffer{older, newer}
	SortCandidates(candidates)

	views := map[uuid.UUID]ProductView{
		upsellA: productView(upsellA, 20, 20),
		upsellB: productView(upsellB, 20, 20),
	}
	got := ResolveBestOffer(cartWith(item(uuid.New(), 1, 40)), candidates, View{}, resolverFor(views))
	if got == nil || got.ID != newer.ID {
		t.Fatalf("expected most recently created offer to win the tie, got %+v", got)
	}
}
