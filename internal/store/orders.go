package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/order"
)

const orderColumns = `id, user_id, cart_id, status, currency, subtotal, discount, tax, shipping, total, applied_coupons, notes, created_at`

// CreateOrder inserts the frozen order row.
func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	coupons, err := json.Marshal(o.AppliedCoupons)
	if err != nil {
		return order.Order{}, fmt.Errorf("store: encode applied coupons: %w", err)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, cart_id, status, currency, subtotal, discount, tax, shipping, total, applied_coupons, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		o.UserID, o.CartID, o.Status, o.Currency,
		o.Subtotal, o.Discount, o.Tax, o.Shipping, o.Total, coupons, o.Notes)
	return scanOrder(row)
}

// InsertOrderItems writes the frozen order lines.
func (s *Store) InsertOrderItems(ctx context.Context, items []order.Item) error {
	for _, item := range items {
		_, err := s.db.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, name, qty, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.OrderID, item.ProductID, item.VariantID, item.Name, item.Qty, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("store: insert order item: %w", err)
		}
	}
	return nil
}

// GetOrder loads one order with its items.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, []order.Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return order.Order{}, nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, name, qty, unit_price, subtotal
		FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return order.Order{}, nil, fmt.Errorf("store: order items: %w", err)
	}
	defer rows.Close()
	var items []order.Item
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Name, &item.Qty, &item.UnitPrice, &item.Subtotal); err != nil {
			return order.Order{}, nil, err
		}
		items = append(items, item)
	}
	return o, items, rows.Err()
}

// ListOrdersByUser returns the customer's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]order.Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list orders: %w", err)
	}
	defer rows.Close()
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o       order.Order
		coupons []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Shipping, &o.Total, &coupons, &o.Notes, &o.CreatedAt)
	if err != nil {
		return order.Order{}, err
	}
	if len(coupons) > 0 {
		if err := json.Unmarshal(coupons, &o.AppliedCoupons); err != nil {
			return order.Order{}, fmt.Errorf("store: decode applied coupons: %w", err)
		}
	}
	return o, nil
}
