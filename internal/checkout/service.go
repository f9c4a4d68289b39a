package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-lapak/internal/cart"
	"github.com/noah-isme/backend-lapak/internal/events"
	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/obs"
	"github.com/noah-isme/backend-lapak/internal/order"
)

// ErrEmptyCart is returned when checking out a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// ErrCartOwnership is returned when the cart belongs to another customer.
var ErrCartOwnership = errors.New("cart does not belong to user")

// Repos is the transactional store surface checkout writes through.
type Repos interface {
	GetCartForUpdate(ctx context.Context, id uuid.UUID) (cart.Cart, error)
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	InsertOrderItems(ctx context.Context, items []order.Item) error
	RecordCouponUsage(ctx context.Context, code string, customerID, orderID uuid.UUID) error
	IncrementCouponUsed(ctx context.Context, code string) error
	ClearCart(ctx context.Context, id uuid.UUID) error
}

// Enqueuer schedules post-checkout background work.
type Enqueuer interface {
	EnqueueOrderCreated(ctx context.Context, orderID, userID uuid.UUID, total money.Money) error
}

// Locker serialises checkouts for the same cart across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Input is the checkout request.
type Input struct {
	CartID   uuid.UUID   `json:"cartId"`
	Shipping money.Money `json:"shipping"`
	Notes    *string     `json:"notes"`
}

// Output is the created order summary.
type Output struct {
	OrderID  uuid.UUID   `json:"orderId"`
	Status   string      `json:"status"`
	Currency string      `json:"currency"`
	Total    money.Money `json:"total"`
}

// Service finalises carts into orders.
type Service struct {
	InTx     func(ctx context.Context, fn func(Repos) error) error
	CartSvc  *cart.Service
	Events   *events.Bus
	Tasks    Enqueuer
	Locks    Locker
	LockTTL  time.Duration
	Currency string
	Now      func() time.Time
}

// Create reprices the cart from a fresh snapshot, freezes the result into an
// order, records coupon usage, clears the cart, and emits order.created. The
// order, its items, the usage rows and the cart clear commit atomically.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (Output, error) {
	if s == nil || s.InTx == nil || s.CartSvc == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if in.CartID == uuid.Nil {
		return Output{}, errors.New("cartId is required")
	}
	if in.Shipping.Decimal.IsNegative() {
		in.Shipping = money.Zero()
	}

	if s.Locks != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 15 * time.Second
		}
		var out Output
		err := s.Locks.WithLock(ctx, "checkout:cart:"+in.CartID.String(), ttl, func(ctx context.Context) error {
			var err error
			out, err = s.create(ctx, userID, in)
			return err
		})
		recordCheckout(err)
		return out, err
	}
	out, err := s.create(ctx, userID, in)
	recordCheckout(err)
	return out, err
}

func recordCheckout(err error) {
	if obs.CheckoutTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	obs.CheckoutTotal.WithLabelValues(result).Inc()
}

func (s *Service) create(ctx context.Context, userID uuid.UUID, in Input) (Output, error) {
	snap, err := s.CartSvc.Snapshot(ctx, in.CartID, &userID)
	if err != nil {
		return Output{}, err
	}
	if len(snap.Items) == 0 {
		return Output{}, ErrEmptyCart
	}
	if snap.Cart.UserID != nil && *snap.Cart.UserID != userID {
		return Output{}, ErrCartOwnership
	}

	shipping := in.Shipping
	if snap.FreeShipping {
		shipping = money.Zero()
	}
	total := snap.Totals.Grand(shipping, money.Zero(), snap.CouponDiscount)

	var created order.Order
	err = s.InTx(ctx, func(r Repos) error {
		if _, err := r.GetCartForUpdate(ctx, in.CartID); err != nil {
			return err
		}
		o := order.Order{
			UserID:         userID,
			CartID:         in.CartID,
			Status:         order.StatusPendingPayment,
			Currency:       s.Currency,
			Subtotal:       snap.Totals.Subtotal,
			Discount:       snap.CouponDiscount,
			Tax:            snap.Totals.TaxTotal,
			Shipping:       shipping,
			Total:          total,
			AppliedCoupons: snap.AppliedCoupons,
			Notes:          in.Notes,
		}
		created, err = r.CreateOrder(ctx, o)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		items := make([]order.Item, 0, len(snap.Items))
		for _, line := range snap.Items {
			items = append(items, order.Item{
				OrderID:   created.ID,
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
				Subtotal:  money.New(line.Subtotal()),
			})
		}
		if err := r.InsertOrderItems(ctx, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		for _, applied := range snap.AppliedCoupons {
			if err := r.RecordCouponUsage(ctx, applied.Code, userID, created.ID); err != nil {
				return fmt.Errorf("record coupon usage: %w", err)
			}
			if err := r.IncrementCouponUsed(ctx, applied.Code); err != nil {
				return fmt.Errorf("increment coupon usage: %w", err)
			}
		}
		return r.ClearCart(ctx, in.CartID)
	})
	if err != nil {
		return Output{}, err
	}

	if s.Events != nil {
		payload := map[string]any{
			"orderId": created.ID.String(),
			"userId":  userID.String(),
			"total":   total.String(),
		}
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, created.ID, payload)
	}
	if s.Tasks != nil {
		_ = s.Tasks.EnqueueOrderCreated(ctx, created.ID, userID, total)
	}

	return Output{
		OrderID:  created.ID,
		Status:   created.Status,
		Currency: s.Currency,
		Total:    total,
	}, nil
}
