package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/coupon"
	"github.com/noah-isme/backend-lapak/internal/order"
)

const couponColumns = `id, code, type, value, discount_kind, applies_to,
	product_ids, category_ids, exclude_product_ids, exclude_category_ids,
	min_requirement, min_requirement_value, min_spend,
	eligibility, customer_ids, group_ids,
	combine_coupons, combine_auto_discounts, priority,
	usage_limit, usage_limit_per_customer, used_count,
	starts_at, ends_at, is_active, is_automatic,
	buy_quantity, get_quantity, get_discount_percent, buy_product_ids, get_product_ids,
	tiers, created_at`

// GetCouponByCode loads one coupon rule. Codes are stored lowercase.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (coupon.Rule, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`,
		strings.ToLower(strings.TrimSpace(code)))
	return scanCoupon(row)
}

// ListAutomaticCoupons returns all active automatic coupons.
func (s *Store) ListAutomaticCoupons(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE is_automatic AND is_active ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list automatic coupons: %w", err)
	}
	return scanCoupons(rows)
}

// ListCoupons returns a page of coupons for administration.
func (s *Store) ListCoupons(ctx context.Context, limit, offset int) ([]coupon.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list coupons: %w", err)
	}
	return scanCoupons(rows)
}

// CreateCoupon inserts a coupon rule.
func (s *Store) CreateCoupon(ctx context.Context, r coupon.Rule) (coupon.Rule, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO coupons (
			code, type, value, discount_kind, applies_to,
			product_ids, category_ids, exclude_product_ids, exclude_category_ids,
			min_requirement, min_requirement_value, min_spend,
			eligibility, customer_ids, group_ids,
			combine_coupons, combine_auto_discounts, priority,
			usage_limit, usage_limit_per_customer,
			starts_at, ends_at, is_active, is_automatic,
			buy_quantity, get_quantity, get_discount_percent, buy_product_ids, get_product_ids,
			tiers
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28, $29,
			$30
		)
		RETURNING `+couponColumns,
		strings.ToLower(strings.TrimSpace(r.Code)), r.Type, r.Value, r.DiscountKind, r.AppliesTo,
		idsJSON(r.ProductIDs), idsJSON(r.CategoryIDs), idsJSON(r.ExcludeProductIDs), idsJSON(r.ExcludeCategoryIDs),
		r.MinRequirement, r.MinRequirementValue, r.MinSpend,
		r.Eligibility, idsJSON(r.CustomerIDs), idsJSON(r.GroupIDs),
		r.CanCombineWithOtherCoupons, r.CanCombineWithAutoDiscounts, r.Priority,
		r.UsageLimit, r.UsageLimitPerCustomer,
		r.StartsAt, r.EndsAt, r.IsActive, r.IsAutomatic,
		r.BuyQuantity, r.GetQuantity, r.GetDiscountPercent, idsJSON(r.BuyProductIDs), idsJSON(r.GetProductIDs),
		tiersJSON(r.Tiers))
	return scanCoupon(row)
}

// UpdateCoupon replaces a coupon's configuration, keyed by code.
func (s *Store) UpdateCoupon(ctx context.Context, r coupon.Rule) (coupon.Rule, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE coupons SET
			type = $2, value = $3, discount_kind = $4, applies_to = $5,
			product_ids = $6, category_ids = $7, exclude_product_ids = $8, exclude_category_ids = $9,
			min_requirement = $10, min_requirement_value = $11, min_spend = $12,
			eligibility = $13, customer_ids = $14, group_ids = $15,
			combine_coupons = $16, combine_auto_discounts = $17, priority = $18,
			usage_limit = $19, usage_limit_per_customer = $20,
			starts_at = $21, ends_at = $22, is_active = $23, is_automatic = $24,
			buy_quantity = $25, get_quantity = $26, get_discount_percent = $27,
			buy_product_ids = $28, get_product_ids = $29, tiers = $30
		WHERE code = $1
		RETURNING `+couponColumns,
		strings.ToLower(strings.TrimSpace(r.Code)), r.Type, r.Value, r.DiscountKind, r.AppliesTo,
		idsJSON(r.ProductIDs), idsJSON(r.CategoryIDs), idsJSON(r.ExcludeProductIDs), idsJSON(r.ExcludeCategoryIDs),
		r.MinRequirement, r.MinRequirementValue, r.MinSpend,
		r.Eligibility, idsJSON(r.CustomerIDs), idsJSON(r.GroupIDs),
		r.CanCombineWithOtherCoupons, r.CanCombineWithAutoDiscounts, r.Priority,
		r.UsageLimit, r.UsageLimitPerCustomer,
		r.StartsAt, r.EndsAt, r.IsActive, r.IsAutomatic,
		r.BuyQuantity, r.GetQuantity, r.GetDiscountPercent,
		idsJSON(r.BuyProductIDs), idsJSON(r.GetProductIDs), tiersJSON(r.Tiers))
	return scanCoupon(row)
}

// DeleteCoupon removes a coupon by code.
func (s *Store) DeleteCoupon(ctx context.Context, code string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM coupons WHERE code = $1`,
		strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return fmt.Errorf("store: delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountCustomerOrdersWithCoupon counts the customer's non-cancelled orders
// carrying the code. Cancelled orders release the allowance.
func (s *Store) CountCustomerOrdersWithCoupon(ctx context.Context, customerID uuid.UUID, code string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*)
		 FROM coupon_usages cu
		 JOIN orders o ON o.id = cu.order_id
		 WHERE cu.customer_id = $1 AND cu.coupon_code = $2 AND o.status <> $3`,
		customerID, strings.ToLower(strings.TrimSpace(code)), order.StatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count coupon usages: %w", err)
	}
	return count, nil
}

// ListCustomerGroupIDs returns the groups the customer belongs to.
func (s *Store) ListCustomerGroupIDs(ctx context.Context, customerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT group_id FROM customer_group_members WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, fmt.Errorf("store: customer groups: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RecordCouponUsage writes one usage row for a committed order.
func (s *Store) RecordCouponUsage(ctx context.Context, code string, customerID, orderID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO coupon_usages (coupon_code, customer_id, order_id) VALUES ($1, $2, $3)`,
		strings.ToLower(strings.TrimSpace(code)), customerID, orderID)
	if err != nil {
		return fmt.Errorf("store: record coupon usage: %w", err)
	}
	return nil
}

// IncrementCouponUsed bumps the coupon's global usage counter.
func (s *Store) IncrementCouponUsed(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`,
		strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return fmt.Errorf("store: increment coupon usage: %w", err)
	}
	return nil
}

func scanCoupon(row pgx.Row) (coupon.Rule, error) {
	var (
		r                  coupon.Rule
		productIDs         []byte
		categoryIDs        []byte
		excludeProductIDs  []byte
		excludeCategoryIDs []byte
		customerIDs        []byte
		groupIDs           []byte
		buyProductIDs      []byte
		getProductIDs      []byte
		tiers              []byte
	)
	err := row.Scan(
		&r.ID, &r.Code, &r.Type, &r.Value, &r.DiscountKind, &r.AppliesTo,
		&productIDs, &categoryIDs, &excludeProductIDs, &excludeCategoryIDs,
		&r.MinRequirement, &r.MinRequirementValue, &r.MinSpend,
		&r.Eligibility, &customerIDs, &groupIDs,
		&r.CanCombineWithOtherCoupons, &r.CanCombineWithAutoDiscounts, &r.Priority,
		&r.UsageLimit, &r.UsageLimitPerCustomer, &r.UsedCount,
		&r.StartsAt, &r.EndsAt, &r.IsActive, &r.IsAutomatic,
		&r.BuyQuantity, &r.GetQuantity, &r.GetDiscountPercent, &buyProductIDs, &getProductIDs,
		&tiers, &r.CreatedAt)
	if err != nil {
		return coupon.Rule{}, err
	}
	if r.ProductIDs, err = idsFromJSON(productIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.CategoryIDs, err = idsFromJSON(categoryIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.ExcludeProductIDs, err = idsFromJSON(excludeProductIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.ExcludeCategoryIDs, err = idsFromJSON(excludeCategoryIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.CustomerIDs, err = idsFromJSON(customerIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.GroupIDs, err = idsFromJSON(groupIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.BuyProductIDs, err = idsFromJSON(buyProductIDs); err != nil {
		return coupon.Rule{}, err
	}
	if r.GetProductIDs, err = idsFromJSON(getProductIDs); err != nil {
		return coupon.Rule{}, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &r.Tiers); err != nil {
			return coupon.Rule{}, fmt.Errorf("store: decode tiers: %w", err)
		}
	}
	return r, nil
}

func scanCoupons(rows pgx.Rows) ([]coupon.Rule, error) {
	defer rows.Close()
	var out []coupon.Rule
	for rows.Next() {
		r, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func idsJSON(ids []uuid.UUID) []byte {
	if len(ids) == 0 {
		return []byte("[]")
	}
	b, _ := json.Marshal(ids)
	return b
}

func idsFromJSON(b []byte) ([]uuid.UUID, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("store: decode id list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func tiersJSON(tiers []coupon.Tier) []byte {
	if len(tiers) == 0 {
		return []byte("[]")
	}
	b, _ := json.Marshal(tiers)
	return b
}
