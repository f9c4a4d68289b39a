package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/obs"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

type stubQuerier struct {
	byCode     map[string]Rule
	automatic  []Rule
	orderCount int64
	groups     []uuid.UUID
}

func (s *stubQuerier) GetCouponByCode(ctx context.Context, code string) (Rule, error) {
	if r, ok := s.byCode[code]; ok {
		return r, nil
	}
	return Rule{}, pgx.ErrNoRows
}

func (s *stubQuerier) ListAutomaticCoupons(ctx context.Context) ([]Rule, error) {
	return s.automatic, nil
}

func (s *stubQuerier) CountCustomerOrdersWithCoupon(ctx context.Context, customerID uuid.UUID, code string) (int64, error) {
	return s.orderCount, nil
}

func (s *stubQuerier) ListCustomerGroupIDs(ctx context.Context, customerID uuid.UUID) ([]uuid.UUID, error) {
	return s.groups, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func activeRule(code string, priority int) Rule {
	starts := fixedClock().Add(-24 * time.Hour)
	ends := fixedClock().Add(24 * time.Hour)
	return Rule{
		Code:         code,
		Type:         KindPercentage,
		Value:        decimal.NewFromInt(10),
		DiscountKind: DiscountSimple,
		AppliesTo:    AppliesAll,
		Priority:     priority,
		IsActive:     true,
		IsAutomatic:  true,
		StartsAt:     &starts,
		EndsAt:       &ends,
	}
}

func TestPreviewUnknownCode(t *testing.T) {
	svc := &Service{Q: &stubQuerier{}, Now: fixedClock}
	_, err := svc.Preview(context.Background(), "NOPE", nil, money.FromFloat(100), nil)
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestPreviewNormalisesCase(t *testing.T) {
	rule := activeRule("promo", 0)
	svc := &Service{Q: &stubQuerier{byCode: map[string]Rule{"promo": rule}}, Now: fixedClock}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}
	result, err := svc.Preview(context.Background(), "  PrOmO ", nil, money.FromFloat(100), items)
	require.NoError(t, err)
	require.True(t, result.Discount.Equal(decimal.NewFromInt(10)))
}

func TestPreviewExpiredCoupon(t *testing.T) {
	rule := activeRule("promo", 0)
	past := fixedClock().Add(-time.Hour)
	rule.EndsAt = &past
	svc := &Service{Q: &stubQuerier{byCode: map[string]Rule{"promo": rule}}, Now: fixedClock}
	_, err := svc.Preview(context.Background(), "promo", nil, money.FromFloat(100), nil)
	require.ErrorIs(t, err, ErrExpired)
}

func TestCanBeUsedByCustomerPerCustomerCap(t *testing.T) {
	limit := 2
	rule := activeRule("promo", 0)
	rule.UsageLimitPerCustomer = &limit
	svc := &Service{Q: &stubQuerier{orderCount: 2}, Now: fixedClock}
	ok, err := svc.CanBeUsedByCustomer(context.Background(), rule, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPreviewRecordsEvaluationMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("lapaktest", prometheus.NewRegistry())

	rule := activeRule("promo", 0)
	svc := &Service{Q: &stubQuerier{byCode: map[string]Rule{"promo": rule}}, Now: fixedClock}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}

	applied := testutil.ToFloat64(obs.CouponEvaluationTotal.WithLabelValues("percentage", "applied"))
	granted := testutil.ToFloat64(obs.CouponDiscountTotal.WithLabelValues("percentage"))

	_, err := svc.Preview(context.Background(), "promo", nil, money.FromFloat(100), items)
	require.NoError(t, err)

	require.Equal(t, applied+1, testutil.ToFloat64(obs.CouponEvaluationTotal.WithLabelValues("percentage", "applied")))
	require.Equal(t, granted+10, testutil.ToFloat64(obs.CouponDiscountTotal.WithLabelValues("percentage")))

	rejected := testutil.ToFloat64(obs.CouponEvaluationTotal.WithLabelValues("percentage", "rejected"))
	past := fixedClock().Add(-time.Hour)
	expired := activeRule("lama", 0)
	expired.EndsAt = &past
	svc.Q = &stubQuerier{byCode: map[string]Rule{"lama": expired}}
	_, err = svc.Preview(context.Background(), "lama", nil, money.FromFloat(100), items)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, rejected+1, testutil.ToFloat64(obs.CouponEvaluationTotal.WithLabelValues("percentage", "rejected")))
}

type usageRow struct {
	customer uuid.UUID
	code     string
	status   string
}

// usageLedgerQuerier mirrors the store contract: cancelled orders do not
// consume the customer's allowance.
type usageLedgerQuerier struct {
	stubQuerier
	usages []usageRow
}

func (q *usageLedgerQuerier) CountCustomerOrdersWithCoupon(ctx context.Context, customerID uuid.UUID, code string) (int64, error) {
	var count int64
	for _, u := range q.usages {
		if u.customer == customerID && u.code == code && u.status != "CANCELLED" {
			count++
		}
	}
	return count, nil
}

func TestCanBeUsedByCustomerCancelledOrderReleasesAllowance(t *testing.T) {
	limit := 1
	customer := uuid.New()
	rule := activeRule("promo", 0)
	rule.UsageLimitPerCustomer = &limit

	q := &usageLedgerQuerier{usages: []usageRow{{customer: customer, code: "promo", status: "CANCELLED"}}}
	svc := &Service{Q: q, Now: fixedClock}

	ok, err := svc.CanBeUsedByCustomer(context.Background(), rule, customer)
	require.NoError(t, err)
	require.True(t, ok)

	q.usages = append(q.usages, usageRow{customer: customer, code: "promo", status: "PAID"})
	ok, err = svc.CanBeUsedByCustomer(context.Background(), rule, customer)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanBeUsedByCustomerExplicitMembership(t *testing.T) {
	customer := uuid.New()
	rule := activeRule("promo", 0)
	rule.Eligibility = EligibleCustomers
	rule.CustomerIDs = []uuid.UUID{uuid.New()}
	svc := &Service{Q: &stubQuerier{}, Now: fixedClock}

	ok, err := svc.CanBeUsedByCustomer(context.Background(), rule, customer)
	require.NoError(t, err)
	require.False(t, ok)

	rule.CustomerIDs = append(rule.CustomerIDs, customer)
	ok, err = svc.CanBeUsedByCustomer(context.Background(), rule, customer)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanBeUsedByCustomerGroupIntersection(t *testing.T) {
	shared := uuid.New()
	rule := activeRule("promo", 0)
	rule.Eligibility = EligibleGroups
	rule.GroupIDs = []uuid.UUID{shared, uuid.New()}
	svc := &Service{Q: &stubQuerier{groups: []uuid.UUID{uuid.New(), shared}}, Now: fixedClock}
	ok, err := svc.CanBeUsedByCustomer(context.Background(), rule, uuid.New())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestApplicableCouponsFiltersAndRanks(t *testing.T) {
	expired := activeRule("expired", 99)
	past := fixedClock().Add(-time.Hour)
	expired.EndsAt = &past

	exhausted := activeRule("exhausted", 50)
	limit := 5
	exhausted.UsageLimit = &limit
	exhausted.UsedCount = 5

	worthless := activeRule("worthless", 40)
	worthless.Value = decimal.Zero

	low := activeRule("low", 1)
	high := activeRule("high", 10)

	svc := &Service{
		Q:   &stubQuerier{automatic: []Rule{expired, exhausted, worthless, low, high}},
		Now: fixedClock,
	}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}
	got, err := svc.ApplicableCoupons(context.Background(), items, money.FromFloat(100), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "high", got[0].Code)
	require.Equal(t, "low", got[1].Code)
}

func TestEvaluateForCartExclusiveManualCoupon(t *testing.T) {
	manual := activeRule("manual", 0)
	manual.IsAutomatic = false
	manual.Type = KindFixed
	manual.Value = decimal.NewFromInt(20)

	auto := activeRule("auto", 5)
	auto.CanCombineWithOtherCoupons = true

	code := "manual"
	svc := &Service{
		Q:   &stubQuerier{byCode: map[string]Rule{"manual": manual}, automatic: []Rule{auto}},
		Now: fixedClock,
	}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}
	total, applied, err := svc.EvaluateForCart(context.Background(), &code, nil, money.FromFloat(100), items)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	require.Equal(t, "manual", applied[0].Code)
	require.True(t, total.Equal(decimal.NewFromInt(20)))
}

func TestEvaluateForCartManualPlusAutomatic(t *testing.T) {
	manual := activeRule("manual", 0)
	manual.IsAutomatic = false
	manual.Type = KindFixed
	manual.Value = decimal.NewFromInt(20)
	manual.CanCombineWithAutoDiscounts = true

	auto := activeRule("auto", 5)

	code := "MANUAL"
	svc := &Service{
		Q:   &stubQuerier{byCode: map[string]Rule{"manual": manual}, automatic: []Rule{auto}},
		Now: fixedClock,
	}
	items := []pricing.LineItem{lineItem(uuid.New(), 1, 100)}
	total, applied, err := svc.EvaluateForCart(context.Background(), &code, nil, money.FromFloat(100), items)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	require.True(t, total.Equal(decimal.NewFromInt(30)), "total = %s", total)
}

func TestEvaluateForCartPropagatesStoreErrors(t *testing.T) {
	svc := &Service{Q: &stubQuerier{}, Now: fixedClock}
	code := "ghost"
	_, _, err := svc.EvaluateForCart(context.Background(), &code, nil, money.FromFloat(100), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotEligible))
}
