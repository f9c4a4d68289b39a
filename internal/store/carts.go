package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/cart"
	"github.com/noah-isme/backend-lapak/internal/money"
)

const cartColumns = `id, user_id, anon_id, coupon_code, expires_at, created_at, updated_at`

// GetCart loads one cart.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (cart.Cart, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// GetCartForUpdate loads one cart with a row lock for the running
// transaction.
func (s *Store) GetCartForUpdate(ctx context.Context, id uuid.UUID) (cart.Cart, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id)
	return scanCart(row)
}

// GetCartByUser loads the customer's unexpired cart.
func (s *Store) GetCartByUser(ctx context.Context, userID uuid.UUID) (cart.Cart, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE user_id = $1 AND expires_at > now()`, userID)
	return scanCart(row)
}

// GetCartByAnon loads the anonymous cart for the given id.
func (s *Store) GetCartByAnon(ctx context.Context, anonID string) (cart.Cart, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE anon_id = $1 AND expires_at > now()`, anonID)
	return scanCart(row)
}

// CreateCart inserts a cart for exactly one identity.
func (s *Store) CreateCart(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (cart.Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (user_id, anon_id, expires_at) VALUES ($1, $2, $3)
		RETURNING `+cartColumns, userID, anonID, expiresAt)
	return scanCart(row)
}

// TouchCart extends the cart's expiry.
func (s *Store) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("store: touch cart: %w", err)
	}
	return nil
}

// AdoptCart hands an anonymous cart over to a customer.
func (s *Store) AdoptCart(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE carts SET user_id = $2, anon_id = NULL, updated_at = now() WHERE id = $1`, id, userID)
	if err != nil {
		return fmt.Errorf("store: adopt cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteCart removes a cart and, via cascade, its items.
func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete cart: %w", err)
	}
	return nil
}

// SetCoupon sets or clears the cart's applied coupon code.
func (s *Store) SetCoupon(ctx context.Context, id uuid.UUID, code *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, id, code)
	if err != nil {
		return fmt.Errorf("store: set cart coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListItems returns the cart's lines in insertion order.
func (s *Store) ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, cart_id, product_id, variant_id, qty, unit_price, added_at
		FROM cart_items WHERE cart_id = $1 ORDER BY added_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("store: list cart items: %w", err)
	}
	defer rows.Close()
	var out []cart.Item
	for rows.Next() {
		var item cart.Item
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID,
			&item.Qty, &item.UnitPrice, &item.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpsertItem inserts the line or adds to its quantity when the same product
// and variant is already in the cart.
func (s *Store) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty money.Quantity, unitPrice money.Money) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, variant_id, qty, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, unit_price = EXCLUDED.unit_price`,
		cartID, productID, variantID, qty, unitPrice)
	if err != nil {
		return fmt.Errorf("store: upsert cart item: %w", err)
	}
	return nil
}

// SetItemQty replaces the line's quantity.
func (s *Store) SetItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty money.Quantity) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE cart_items SET qty = $3 WHERE cart_id = $1 AND id = $2`, cartID, itemID, qty)
	if err != nil {
		return fmt.Errorf("store: set cart item qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteItem removes one line.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("store: delete cart item: %w", err)
	}
	return nil
}

// ClearItems removes all lines.
func (s *Store) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("store: clear cart items: %w", err)
	}
	return nil
}

// ClearCart empties the cart and drops its coupon in one go, used at the end
// of checkout.
func (s *Store) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.ClearItems(ctx, cartID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`UPDATE carts SET coupon_code = NULL, updated_at = now() WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("store: clear cart: %w", err)
	}
	return nil
}

func scanCart(row pgx.Row) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.CouponCode, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
