package offer

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

// Placement is the UI location an offer may appear in.
type Placement string

const (
	PlacementCheckout    Placement = "checkout"
	PlacementProductPage Placement = "product_page"
	PlacementCart        Placement = "cart"
)

// TriggerKind selects the matching strategy of an offer.
type TriggerKind string

const (
	TriggerAllProducts        TriggerKind = "all_products"
	TriggerSpecificProducts   TriggerKind = "specific_products"
	TriggerSpecificCategories TriggerKind = "specific_categories"
	TriggerCartTotal          TriggerKind = "cart_total"
)

// PriceBase selects which configured price the offer discount applies to.
type PriceBase string

const (
	BaseSellingPrice PriceBase = "selling_price"
	BaseRegularPrice PriceBase = "regular_price"
)

// DiscountKind is the monetary effect of an offer product entry.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Trigger holds the matching configuration of an offer.
type Trigger struct {
	Kind        TriggerKind  `json:"kind"`
	ProductIDs  []uuid.UUID  `json:"productIds,omitempty"`
	CategoryIDs []uuid.UUID  `json:"categoryIds,omitempty"`
	MinTotal    *money.Money `json:"minTotal,omitempty"`
	MaxTotal    *money.Money `json:"maxTotal,omitempty"`
}

// Conditions gate an offer on cart state. HideIfInCart defaults to true when
// unset.
type Conditions struct {
	MinCartTotal      *money.Money     `json:"minCartTotal,omitempty"`
	MaxCartTotal      *money.Money     `json:"maxCartTotal,omitempty"`
	MinItemsCount     *decimal.Decimal `json:"minItemsCount,omitempty"`
	MaxItemsCount     *decimal.Decimal `json:"maxItemsCount,omitempty"`
	ExcludeDiscounted bool             `json:"excludeDiscounted,omitempty"`
	HideIfInCart      *bool            `json:"hideIfInCart,omitempty"`
	LoggedInOnly      bool             `json:"loggedInOnly,omitempty"`
}

// OfferProduct is one configured upsell entry of an offer.
type OfferProduct struct {
	ProductID             uuid.UUID       `json:"productId"`
	VariantID             *uuid.UUID      `json:"variantId,omitempty"`
	DiscountKind          DiscountKind    `json:"discountKind"`
	Value                 decimal.Decimal `json:"value"`
	Base                  PriceBase       `json:"base"`
	DisplayOrder          int             `json:"displayOrder"`
	AllowVariantSelection bool            `json:"allowVariantSelection"`
}

// CartOffer is one configured upsell rule.
type CartOffer struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Placement     Placement      `json:"placement"`
	Trigger       Trigger        `json:"trigger"`
	Conditions    Conditions     `json:"conditions"`
	Priority      int            `json:"priority"`
	StartsAt      *time.Time     `json:"startsAt,omitempty"`
	EndsAt        *time.Time     `json:"endsAt,omitempty"`
	IsActive      bool           `json:"isActive"`
	DisplayConfig map[string]any `json:"displayConfig,omitempty"`
	Products      []OfferProduct `json:"products"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// CartContext is the immutable cart snapshot an offer is matched against.
type CartContext struct {
	Items    []pricing.LineItem
	Subtotal money.Money
	LoggedIn bool
}

// View describes the product page the shopper is currently looking at, when
// there is one.
type View struct {
	ProductID   *uuid.UUID
	CategoryIDs []uuid.UUID
}

// VariantView is a priced variant of a resolved product.
type VariantView struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	RegularPrice money.Money `json:"regularPrice"`
	SellingPrice money.Money `json:"sellingPrice"`
}

// ProductView is the resolved catalog data for an offer product.
type ProductView struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Image        string        `json:"image"`
	Unit         string        `json:"unit"`
	RegularPrice money.Money   `json:"regularPrice"`
	SellingPrice money.Money   `json:"sellingPrice"`
	CategoryIDs  []uuid.UUID   `json:"categoryIds,omitempty"`
	Variants     []VariantView `json:"variants,omitempty"`
}

// OfferProductView is one fully priced entry of a resolved offer payload.
type OfferProductView struct {
	ProductID       uuid.UUID       `json:"productId"`
	VariantID       *uuid.UUID      `json:"variantId,omitempty"`
	Name            string          `json:"name"`
	Image           string          `json:"image"`
	Unit            string          `json:"unit"`
	BasePrice       money.Money     `json:"basePrice"`
	DiscountedPrice money.Money     `json:"discountedPrice"`
	DiscountAmount  money.Money     `json:"discountAmount"`
	DiscountPercent decimal.Decimal `json:"discountPercentage"`
	Variants        []VariantView   `json:"variants,omitempty"`
}

// Payload is the single recommended offer returned to the storefront.
type Payload struct {
	ID            uuid.UUID          `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	DisplayConfig map[string]any     `json:"displayConfig,omitempty"`
	Products      []OfferProductView `json:"products"`
}

// Resolver looks up catalog data for offer products. A false return marks the
// product as unresolvable, which drops the entry rather than failing the
// match.
type Resolver func(OfferProduct) (ProductView, bool)

// SortCandidates orders offers by priority descending, then most recently
// created first.
func SortCandidates(offers []CartOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if offers[i].Priority != offers[j].Priority {
			return offers[i].Priority > offers[j].Priority
		}
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
}

// ActiveWithin reports whether the offer is enabled and inside its window.
func ActiveWithin(o CartOffer, now time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.StartsAt != nil && now.Before(*o.StartsAt) {
		return false
	}
	if o.EndsAt != nil && now.After(*o.EndsAt) {
		return false
	}
	return true
}

// ResolveBestOffer walks the pre-sorted candidates and returns the payload of
// the first offer whose conditions and trigger match and that still has at
// least one resolvable product. This is first-match-wins: zero or one offer,
// never several.
func ResolveBestOffer(cart CartContext, candidates []CartOffer, view View, resolve Resolver) *Payload {
	for _, candidate := range candidates {
		if !conditionsMatch(candidate, cart) {
			continue
		}
		if !triggerMatches(candidate.Trigger, cart, view) {
			continue
		}
		payload := buildPayload(candidate, cart, view, resolve)
		if payload != nil {
			return payload
		}
	}
	return nil
}

func conditionsMatch(o CartOffer, cart CartContext) bool {
	c := o.Conditions
	if c.MinCartTotal != nil && cart.Subtotal.Decimal.LessThan(c.MinCartTotal.Decimal) {
		return false
	}
	if c.MaxCartTotal != nil && cart.Subtotal.Decimal.GreaterThan(c.MaxCartTotal.Decimal) {
		return false
	}
	itemCount := pricing.TotalQuantity(cart.Items)
	if c.MinItemsCount != nil && itemCount.LessThan(*c.MinItemsCount) {
		return false
	}
	if c.MaxItemsCount != nil && itemCount.GreaterThan(*c.MaxItemsCount) {
		return false
	}
	if c.ExcludeDiscounted {
		for _, it := range cart.Items {
			if it.UnitPrice.Decimal.LessThan(it.ListPrice.Decimal) {
				return false
			}
		}
	}
	if hideIfInCart(c) {
		inCart := cartProductSet(cart)
		for _, p := range o.Products {
			if inCart[p.ProductID] {
				return false
			}
		}
	}
	if c.LoggedInOnly && !cart.LoggedIn {
		return false
	}
	return true
}

func triggerMatches(t Trigger, cart CartContext, view View) bool {
	switch t.Kind {
	case TriggerAllProducts:
		return true
	case TriggerSpecificProducts:
		targets := make(map[uuid.UUID]bool, len(t.ProductIDs))
		for _, id := range t.ProductIDs {
			targets[id] = true
		}
		if view.ProductID != nil && targets[*view.ProductID] {
			return true
		}
		for _, it := range cart.Items {
			if targets[it.ProductID] {
				return true
			}
		}
		return false
	case TriggerSpecificCategories:
		targets := make(map[uuid.UUID]bool, len(t.CategoryIDs))
		for _, id := range t.CategoryIDs {
			targets[id] = true
		}
		for _, id := range view.CategoryIDs {
			if targets[id] {
				return true
			}
		}
		for _, it := range cart.Items {
			for _, id := range it.CategoryIDs {
				if targets[id] {
					return true
				}
			}
		}
		return false
	case TriggerCartTotal:
		if t.MinTotal != nil && cart.Subtotal.Decimal.LessThan(t.MinTotal.Decimal) {
			return false
		}
		if t.MaxTotal != nil && cart.Subtotal.Decimal.GreaterThan(t.MaxTotal.Decimal) {
			return false
		}
		return true
	default:
		return false
	}
}

// buildPayload prices the offer's product entries. An offer whose entries all
// drop out is treated as a non-match so ranking can continue.
func buildPayload(o CartOffer, cart CartContext, view View, resolve Resolver) *Payload {
	products := make([]OfferProductView, 0, len(o.Products))
	for _, entry := range o.Products {
		if view.ProductID != nil && entry.ProductID == *view.ProductID {
			continue
		}
		resolved, ok := resolve(entry)
		if !ok {
			continue
		}
		products = append(products, priceEntry(entry, resolved))
	}
	if len(products) == 0 {
		return nil
	}
	sort.SliceStable(products, func(i, j int) bool {
		return displayOrder(o.Products, products[i].ProductID) < displayOrder(o.Products, products[j].ProductID)
	})
	return &Payload{
		ID:            o.ID,
		Title:         o.Title,
		Description:   o.Description,
		DisplayConfig: o.DisplayConfig,
		Products:      products,
	}
}

func priceEntry(entry OfferProduct, resolved ProductView) OfferProductView {
	regular := resolved.RegularPrice
	selling := resolved.SellingPrice
	if entry.VariantID != nil {
		for _, v := range resolved.Variants {
			if v.ID == *entry.VariantID {
				regular = v.RegularPrice
				selling = v.SellingPrice
				break
			}
		}
	}
	base := selling
	if entry.Base == BaseRegularPrice {
		base = regular
	}

	var discounted money.Money
	switch entry.DiscountKind {
	case DiscountPercentage:
		factor := decimal.NewFromInt(1).Sub(entry.Value.Div(decimal.NewFromInt(100)))
		discounted = money.New(base.Decimal.Mul(factor)).ClampZero()
	case DiscountFixed:
		discounted = money.New(base.Decimal.Sub(entry.Value)).ClampZero()
	default:
		discounted = base
	}

	amount := base.Sub(discounted)
	var percent decimal.Decimal
	if base.Decimal.IsPositive() {
		percent = amount.Decimal.Div(base.Decimal).Mul(decimal.NewFromInt(100)).Round(2)
	}
	view := OfferProductView{
		ProductID:       entry.ProductID,
		VariantID:       entry.VariantID,
		Name:            resolved.Name,
		Image:           resolved.Image,
		Unit:            resolved.Unit,
		BasePrice:       base,
		DiscountedPrice: discounted,
		DiscountAmount:  amount,
		DiscountPercent: percent,
	}
	if entry.AllowVariantSelection {
		view.Variants = resolved.Variants
	}
	return view
}

func hideIfInCart(c Conditions) bool {
	if c.HideIfInCart == nil {
		return true
	}
	return *c.HideIfInCart
}

func cartProductSet(cart CartContext) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(cart.Items))
	for _, it := range cart.Items {
		set[it.ProductID] = true
	}
	return set
}

func displayOrder(entries []OfferProduct, productID uuid.UUID) int {
	for _, e := range entries {
		if e.ProductID == productID {
			return e.DisplayOrder
		}
	}
	return 0
}
