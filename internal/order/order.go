package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-lapak/internal/coupon"
	"github.com/noah-isme/backend-lapak/internal/money"
)

// Status values an order moves through.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusCancelled      = "CANCELLED"
)

// Order is a finalised checkout with frozen pricing.
type Order struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"userId"`
	CartID         uuid.UUID        `json:"cartId"`
	Status         string           `json:"status"`
	Currency       string           `json:"currency"`
	Subtotal       money.Money      `json:"subtotal"`
	Discount       money.Money      `json:"discount"`
	Tax            money.Money      `json:"tax"`
	Shipping       money.Money      `json:"shipping"`
	Total          money.Money      `json:"total"`
	AppliedCoupons []coupon.Applied `json:"appliedCoupons,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Item is one frozen order line.
type Item struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"orderId"`
	ProductID uuid.UUID      `json:"productId"`
	VariantID *uuid.UUID     `json:"variantId,omitempty"`
	Name      string         `json:"name"`
	Qty       money.Quantity `json:"qty"`
	UnitPrice money.Money    `json:"unitPrice"`
	Subtotal  money.Money    `json:"subtotal"`
}
