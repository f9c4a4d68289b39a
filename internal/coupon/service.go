package coupon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/obs"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

// Querier captures the store methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, code string) (Rule, error)
	ListAutomaticCoupons(ctx context.Context) ([]Rule, error)
	// CountCustomerOrdersWithCoupon counts the customer's non-cancelled
	// orders carrying the given coupon code.
	CountCustomerOrdersWithCoupon(ctx context.Context, customerID uuid.UUID, code string) (int64, error)
	ListCustomerGroupIDs(ctx context.Context, customerID uuid.UUID) ([]uuid.UUID, error)
}

// PreviewResult describes the outcome of evaluating a coupon without
// mutating state.
type PreviewResult struct {
	Code         string      `json:"code"`
	Discount     money.Money `json:"discount"`
	FreeShipping bool        `json:"freeShipping"`
}

// Service evaluates coupon rules against cart snapshots.
type Service struct {
	Q   Querier
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview performs a dry-run evaluation of a coupon code for the given cart
// snapshot. Codes are matched case-insensitively.
func (s *Service) Preview(ctx context.Context, code string, customerID *uuid.UUID, subtotal money.Money, items []pricing.LineItem) (PreviewResult, error) {
	if s == nil || s.Q == nil {
		return PreviewResult{}, errors.New("coupon service not configured")
	}
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return PreviewResult{}, fmt.Errorf("code is required: %w", ErrNotEligible)
	}
	rule, err := s.Q.GetCouponByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PreviewResult{}, ErrNotEligible
		}
		return PreviewResult{}, err
	}
	kind := string(rule.Type)
	if err := Validate(rule, s.now()); err != nil {
		recordEvaluation(kind, "rejected")
		return PreviewResult{}, err
	}
	if customerID != nil {
		ok, err := s.CanBeUsedByCustomer(ctx, rule, *customerID)
		if err != nil {
			return PreviewResult{}, err
		}
		if !ok {
			recordEvaluation(kind, "limit_reached")
			return PreviewResult{}, ErrPerCustomerLimitReached
		}
	}
	discount := CalculateDiscount(rule, subtotal, items)
	free := freeShippingEligible(rule, subtotal, items)
	if !discount.Decimal.IsPositive() && !free {
		recordEvaluation(kind, "not_eligible")
		return PreviewResult{}, ErrNotEligible
	}
	recordEvaluation(kind, "applied")
	recordDiscount(kind, discount)
	return PreviewResult{Code: rule.Code, Discount: discount, FreeShipping: free}, nil
}

func recordEvaluation(kind, result string) {
	if obs.CouponEvaluationTotal != nil {
		obs.CouponEvaluationTotal.WithLabelValues(kind, result).Inc()
	}
}

func recordDiscount(kind string, amount money.Money) {
	if obs.CouponDiscountTotal != nil {
		obs.CouponDiscountTotal.WithLabelValues(kind).Add(amount.Decimal.InexactFloat64())
	}
}

// CanBeUsedByCustomer runs the customer-side eligibility checks in order:
// per-customer usage cap, explicit membership, then group intersection.
func (s *Service) CanBeUsedByCustomer(ctx context.Context, r Rule, customerID uuid.UUID) (bool, error) {
	if s == nil || s.Q == nil {
		return false, errors.New("coupon service not configured")
	}
	if r.UsageLimitPerCustomer != nil && *r.UsageLimitPerCustomer > 0 {
		used, err := s.Q.CountCustomerOrdersWithCoupon(ctx, customerID, r.Code)
		if err != nil {
			return false, err
		}
		if used >= int64(*r.UsageLimitPerCustomer) {
			return false, nil
		}
	}
	switch r.Eligibility {
	case EligibleCustomers:
		for _, id := range r.CustomerIDs {
			if id == customerID {
				return true, nil
			}
		}
		return false, nil
	case EligibleGroups:
		groups, err := s.Q.ListCustomerGroupIDs(ctx, customerID)
		if err != nil {
			return false, err
		}
		targeted := idSet(r.GroupIDs)
		for _, g := range groups {
			if targeted[g] {
				return true, nil
			}
		}
		return false, nil
	default:
		return true, nil
	}
}

// ApplicableCoupons filters the automatic coupon catalog down to the ones the
// given cart and customer can use right now, ranked by priority descending.
// Conflict resolution among the returned coupons is the caller's concern.
func (s *Service) ApplicableCoupons(ctx context.Context, items []pricing.LineItem, subtotal money.Money, customerID *uuid.UUID) ([]Rule, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("coupon service not configured")
	}
	candidates, err := s.Q.ListAutomaticCoupons(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	applicable := make([]Rule, 0, len(candidates))
	for _, r := range candidates {
		if !r.IsAutomatic {
			continue
		}
		if err := Validate(r, now); err != nil {
			continue
		}
		if customerID != nil {
			ok, err := s.CanBeUsedByCustomer(ctx, r, *customerID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if !CalculateDiscount(r, subtotal, items).Decimal.IsPositive() && !freeShippingEligible(r, subtotal, items) {
			continue
		}
		applicable = append(applicable, r)
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})
	return applicable, nil
}

// EvaluateForCart resolves the discount for a cart that has a manually
// applied code, folding in automatic coupons when combinability permits.
func (s *Service) EvaluateForCart(ctx context.Context, code *string, customerID *uuid.UUID, subtotal money.Money, items []pricing.LineItem) (money.Money, []Applied, error) {
	var (
		manual     *Rule
		manualAmt  money.Money
		manualFree bool
	)
	if code != nil && strings.TrimSpace(*code) != "" {
		result, err := s.Preview(ctx, *code, customerID, subtotal, items)
		if err != nil {
			return money.Zero(), nil, err
		}
		rule, err := s.Q.GetCouponByCode(ctx, strings.ToLower(strings.TrimSpace(*code)))
		if err != nil {
			return money.Zero(), nil, err
		}
		manual = &rule
		manualAmt = result.Discount
		manualFree = result.FreeShipping
	}
	if manual != nil && !CombinesWithAutomatic(*manual) {
		return manualAmt, []Applied{{Code: manual.Code, Discount: manualAmt, FreeShipping: manualFree}}, nil
	}
	autos, err := s.ApplicableCoupons(ctx, items, subtotal, customerID)
	if err != nil {
		return money.Zero(), nil, err
	}
	autoTotal, applied := Stack(autos, subtotal, items)
	kinds := make(map[string]string, len(autos))
	for _, r := range autos {
		kinds[r.Code] = string(r.Type)
	}
	for _, a := range applied {
		recordEvaluation(kinds[a.Code], "applied")
		recordDiscount(kinds[a.Code], a.Discount)
	}
	if manual != nil {
		applied = append([]Applied{{Code: manual.Code, Discount: manualAmt, FreeShipping: manualFree}}, applied...)
		return manualAmt.Add(autoTotal), applied, nil
	}
	return autoTotal, applied, nil
}
