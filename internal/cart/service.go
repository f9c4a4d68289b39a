package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/catalog"
	"github.com/noah-isme/backend-lapak/internal/coupon"
	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/obs"
	"github.com/noah-isme/backend-lapak/internal/offer"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrProductUnavailable indicates the product is missing, inactive or out of
// stock.
var ErrProductUnavailable = errors.New("product unavailable")

// Cart is the persistent shopping cart row.
type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	AnonID     *string    `json:"anonId,omitempty"`
	CouponCode *string    `json:"couponCode,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Item is one cart line as stored.
type Item struct {
	ID        uuid.UUID      `json:"id"`
	CartID    uuid.UUID      `json:"cartId"`
	ProductID uuid.UUID      `json:"productId"`
	VariantID *uuid.UUID     `json:"variantId,omitempty"`
	Qty       money.Quantity `json:"qty"`
	UnitPrice money.Money    `json:"unitPrice"`
	AddedAt   time.Time      `json:"addedAt"`
}

// Snapshot is the fully priced view of a cart at one instant. All totals are
// derived from the same item read.
type Snapshot struct {
	Cart           Cart             `json:"cart"`
	Items          []pricing.LineItem `json:"items"`
	Totals         pricing.Totals   `json:"totals"`
	CouponDiscount money.Money      `json:"couponDiscount"`
	AppliedCoupons []coupon.Applied `json:"appliedCoupons,omitempty"`
	FreeShipping   bool             `json:"freeShipping"`
	GrandTotal     money.Money      `json:"grandTotal"`
}

// Querier captures the store methods behind the cart service.
type Querier interface {
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error)
	GetCartByAnon(ctx context.Context, anonID string) (Cart, error)
	CreateCart(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	AdoptCart(ctx context.Context, id, userID uuid.UUID) error
	DeleteCart(ctx context.Context, id uuid.UUID) error
	SetCoupon(ctx context.Context, id uuid.UUID, code *string) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty money.Quantity, unitPrice money.Money) error
	SetItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty money.Quantity) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

// Catalog is the product read side the cart prices against.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
}

// Discounts evaluates the cart's coupon state.
type Discounts interface {
	EvaluateForCart(ctx context.Context, code *string, customerID *uuid.UUID, subtotal money.Money, items []pricing.LineItem) (money.Money, []coupon.Applied, error)
	Preview(ctx context.Context, code string, customerID *uuid.UUID, subtotal money.Money, items []pricing.LineItem) (coupon.PreviewResult, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q        Querier
	Products Catalog
	Coupons  Discounts
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or lazily creates the cart for the provided identity.
// Exactly one of userID and anonID must be set.
func (s *Service) EnsureCart(ctx context.Context, userID *uuid.UUID, anonID *string) (Cart, error) {
	if s == nil || s.Q == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	expires := s.now().Add(s.ttl())

	if userID != nil {
		c, err := s.Q.GetCartByUser(ctx, *userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, userID, nil, expires)
			}
			return Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, c.ID, expires)
		return c, nil
	}

	if anonID != nil && *anonID != "" {
		c, err := s.Q.GetCartByAnon(ctx, *anonID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, nil, anonID, expires)
			}
			return Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, c.ID, expires)
		return c, nil
	}

	return Cart{}, fmt.Errorf("cart identity required: %w", ErrInvalidInput)
}

// AddItem inserts or increments a cart line, resolving the unit price from
// the catalog at the time of the call.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty money.Quantity) error {
	if !qty.Decimal.IsPositive() {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	products, err := s.Products.GetProductsByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return err
	}
	var product *catalog.Product
	for i := range products {
		if products[i].ID == productID {
			product = &products[i]
			break
		}
	}
	if product == nil || !product.IsActive || !product.InStock {
		return ErrProductUnavailable
	}
	unitPrice := product.SellingPrice
	if variantID != nil {
		found := false
		for _, v := range product.Variants {
			if v.ID == *variantID {
				if v.Stock <= 0 {
					return ErrProductUnavailable
				}
				unitPrice = v.SellingPrice
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown variant: %w", ErrInvalidInput)
		}
	}
	return s.Q.UpsertItem(ctx, cartID, productID, variantID, qty, unitPrice)
}

// UpdateQty sets the quantity of an existing line. Zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID uuid.UUID, qty money.Quantity) error {
	if qty.Decimal.IsNegative() {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	if qty.Decimal.IsZero() {
		return s.Q.DeleteItem(ctx, cartID, itemID)
	}
	return s.Q.SetItemQty(ctx, cartID, itemID, qty)
}

// RemoveItem deletes one line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return s.Q.DeleteItem(ctx, cartID, itemID)
}

// Clear removes all lines and any applied coupon.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if err := s.Q.ClearItems(ctx, cartID); err != nil {
		return err
	}
	return s.Q.SetCoupon(ctx, cartID, nil)
}

// ApplyCoupon validates the code against the current cart contents and
// persists it on success.
func (s *Service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string, customerID *uuid.UUID) (coupon.PreviewResult, error) {
	snap, err := s.Snapshot(ctx, cartID, customerID)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	result, err := s.Coupons.Preview(ctx, code, customerID, snap.Totals.Subtotal, snap.Items)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	if err := s.Q.SetCoupon(ctx, cartID, &result.Code); err != nil {
		return coupon.PreviewResult{}, err
	}
	return result, nil
}

// RemoveCoupon clears the applied code.
func (s *Service) RemoveCoupon(ctx context.Context, cartID uuid.UUID) error {
	return s.Q.SetCoupon(ctx, cartID, nil)
}

// Merge hands an anonymous cart over to a customer. The anonymous cart is
// adopted only when the customer has no cart of their own; otherwise the
// customer's existing cart wins and the anonymous one is discarded.
func (s *Service) Merge(ctx context.Context, anonID string, userID uuid.UUID) (Cart, error) {
	anonCart, err := s.Q.GetCartByAnon(ctx, anonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			recordMerge("ensure")
			return s.EnsureCart(ctx, &userID, nil)
		}
		return Cart{}, err
	}

	existing, err := s.Q.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := s.Q.AdoptCart(ctx, anonCart.ID, userID); err != nil {
				return Cart{}, err
			}
			recordMerge("adopt")
			return s.Q.GetCart(ctx, anonCart.ID)
		}
		return Cart{}, err
	}

	if err := s.Q.DeleteCart(ctx, anonCart.ID); err != nil {
		return Cart{}, err
	}
	_ = s.Q.TouchCart(ctx, existing.ID, s.now().Add(s.ttl()))
	recordMerge("keep_existing")
	return existing, nil
}

func recordMerge(strategy string) {
	if obs.CartMergeTotal != nil {
		obs.CartMergeTotal.WithLabelValues(strategy).Inc()
	}
}

// Snapshot reads the cart once and prices it: line items from the single
// item read, aggregate totals, coupon evaluation, grand total.
func (s *Service) Snapshot(ctx context.Context, cartID uuid.UUID, customerID *uuid.UUID) (Snapshot, error) {
	start := time.Now()
	defer func() {
		if obs.CartPricingLatency != nil {
			obs.CartPricingLatency.Observe(obs.DurationMillis(time.Since(start)))
		}
	}()
	c, err := s.Q.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	stored, err := s.Q.ListItems(ctx, cartID)
	if err != nil {
		return Snapshot{}, err
	}

	lines, err := s.priceLines(ctx, stored)
	if err != nil {
		return Snapshot{}, err
	}
	totals := pricing.Aggregate(lines)

	snap := Snapshot{Cart: c, Items: lines, Totals: totals}
	if s.Coupons != nil {
		discount, applied, err := s.Coupons.EvaluateForCart(ctx, c.CouponCode, customerID, totals.Subtotal, lines)
		if err != nil {
			// a coupon that became invalid must not wedge the cart
			if isCouponRejection(err) {
				_ = s.Q.SetCoupon(ctx, cartID, nil)
				snap.Cart.CouponCode = nil
			} else {
				return Snapshot{}, err
			}
		} else {
			snap.CouponDiscount = discount
			snap.AppliedCoupons = applied
			for _, a := range applied {
				if a.FreeShipping {
					snap.FreeShipping = true
				}
			}
		}
	}
	snap.GrandTotal = totals.Grand(money.Zero(), money.Zero(), snap.CouponDiscount)
	return snap, nil
}

// OfferContext adapts a snapshot for offer matching.
func (s *Service) OfferContext(ctx context.Context, cartID uuid.UUID) (offer.CartContext, error) {
	snap, err := s.Snapshot(ctx, cartID, nil)
	if err != nil {
		return offer.CartContext{}, err
	}
	return offer.CartContext{
		Items:    snap.Items,
		Subtotal: snap.Totals.Subtotal,
		LoggedIn: snap.Cart.UserID != nil,
	}, nil
}

func (s *Service) priceLines(ctx context.Context, stored []Item) ([]pricing.LineItem, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(stored))
	seen := map[uuid.UUID]bool{}
	for _, item := range stored {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	products, err := s.Products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]pricing.LineItem, 0, len(stored))
	for _, item := range stored {
		p, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		taxRate := p.TaxRate
		unit := item.UnitPrice
		list := p.SellingPrice
		if p.RegularPrice != nil {
			list = *p.RegularPrice
		}
		line := pricing.NewLineItem(item.ProductID, item.VariantID, p.CategoryIDs, item.Qty, unit, taxRate, money.Zero())
		line.ListPrice = list
		lines = append(lines, line)
	}
	return lines, nil
}

func isCouponRejection(err error) bool {
	for _, sentinel := range []error{
		coupon.ErrInactive,
		coupon.ErrNotStarted,
		coupon.ErrExpired,
		coupon.ErrUsageLimitReached,
		coupon.ErrPerCustomerLimitReached,
		coupon.ErrNotEligible,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
