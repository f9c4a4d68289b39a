package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/common"
	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

// Repo captures the store methods behind the administrative endpoints.
type Repo interface {
	CreateCoupon(ctx context.Context, rule Rule) (Rule, error)
	UpdateCoupon(ctx context.Context, rule Rule) (Rule, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, limit, offset int) ([]Rule, error)
	GetCouponByCode(ctx context.Context, code string) (Rule, error)
}

// Handler exposes coupon management and preview endpoints.
type Handler struct {
	Repo     Repo
	Svc      *Service
	Validate *validator.Validate
}

type tierPayload struct {
	Min   float64 `json:"min" validate:"gte=0"`
	Type  string  `json:"type" validate:"oneof=percentage fixed"`
	Value float64 `json:"value" validate:"gte=0"`
}

type couponPayload struct {
	Code                        string        `json:"code" validate:"required"`
	Type                        string        `json:"type" validate:"oneof=fixed percentage free_shipping"`
	Value                       float64       `json:"value" validate:"gte=0"`
	DiscountKind                string        `json:"discountKind" validate:"omitempty,oneof=simple bxgy tiered"`
	AppliesTo                   string        `json:"appliesTo" validate:"omitempty,oneof=all specific_products specific_categories"`
	ProductIDs                  []string      `json:"productIds"`
	CategoryIDs                 []string      `json:"categoryIds"`
	ExcludeProductIDs           []string      `json:"excludeProductIds"`
	ExcludeCategoryIDs          []string      `json:"excludeCategoryIds"`
	MinRequirementType          string        `json:"minRequirementType" validate:"omitempty,oneof=none amount quantity"`
	MinRequirementValue         float64       `json:"minRequirementValue" validate:"gte=0"`
	MinSpend                    float64       `json:"minSpend" validate:"gte=0"`
	CustomerEligibility         string        `json:"customerEligibility" validate:"omitempty,oneof=all specific_groups specific_customers"`
	CustomerIDs                 []string      `json:"customerIds"`
	GroupIDs                    []string      `json:"groupIds"`
	CanCombineWithOtherCoupons  bool          `json:"canCombineWithOtherCoupons"`
	CanCombineWithAutoDiscounts bool          `json:"canCombineWithAutoDiscounts"`
	Priority                    int           `json:"priority"`
	UsageLimit                  *int          `json:"usageLimit"`
	UsageLimitPerCustomer       *int          `json:"usageLimitPerCustomer"`
	StartsAt                    *time.Time    `json:"startsAt"`
	EndsAt                      *time.Time    `json:"endsAt"`
	IsActive                    *bool         `json:"isActive"`
	IsAutomatic                 bool          `json:"isAutomatic"`
	BuyQuantity                 int           `json:"buyQuantity" validate:"gte=0"`
	GetQuantity                 int           `json:"getQuantity" validate:"gte=0"`
	GetDiscountPercent          *float64      `json:"getDiscountPercent"`
	BuyProductIDs               []string      `json:"buyProductIds"`
	GetProductIDs               []string      `json:"getProductIds"`
	Tiers                       []tierPayload `json:"tiers" validate:"dive"`
}

type previewPayload struct {
	Code       string            `json:"code" validate:"required"`
	CustomerID *string           `json:"customerId"`
	Items      []previewLineItem `json:"items" validate:"required,dive"`
}

type previewLineItem struct {
	ProductID   string   `json:"productId" validate:"required,uuid"`
	VariantID   *string  `json:"variantId"`
	CategoryIDs []string `json:"categoryIds"`
	Qty         float64  `json:"qty" validate:"gt=0"`
	UnitPrice   float64  `json:"unitPrice" validate:"gte=0"`
	TaxRate     float64  `json:"taxRate" validate:"gte=0"`
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repo not configured", nil)
		return
	}
	rule, ok := h.decodeRule(w, r, "")
	if !ok {
		return
	}
	created, err := h.Repo.CreateCoupon(r.Context(), rule)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repo not configured", nil)
		return
	}
	code := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "code")))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	rule, ok := h.decodeRule(w, r, code)
	if !ok {
		return
	}
	updated, err := h.Repo.UpdateCoupon(r.Context(), rule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a coupon by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repo not configured", nil)
		return
	}
	code := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "code")))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if err := h.Repo.DeleteCoupon(r.Context(), code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": code}})
}

// List returns a page of coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repo not configured", nil)
		return
	}
	page := common.ParsePagination(r, 20, 100)
	rules, err := h.Repo.ListCoupons(r.Context(), page.Limit, page.Offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules, "page": page})
}

// Preview evaluates a coupon against a submitted cart snapshot without
// persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	items := make([]pricing.LineItem, 0, len(payload.Items))
	for _, in := range payload.Items {
		pid, err := uuid.Parse(in.ProductID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return
		}
		var vid *uuid.UUID
		if in.VariantID != nil && *in.VariantID != "" {
			parsed, err := uuid.Parse(*in.VariantID)
			if err != nil {
				common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
				return
			}
			vid = &parsed
		}
		cats, err := parseIDs(in.CategoryIDs)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
			return
		}
		items = append(items, pricing.NewLineItem(pid, vid, cats,
			money.QuantityFromFloat(in.Qty),
			money.FromFloat(in.UnitPrice),
			decimal.NewFromFloat(in.TaxRate),
			money.Zero()))
	}
	var customerID *uuid.UUID
	if payload.CustomerID != nil && *payload.CustomerID != "" {
		parsed, err := uuid.Parse(*payload.CustomerID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
			return
		}
		customerID = &parsed
	}
	totals := pricing.Aggregate(items)
	result, err := h.Svc.Preview(r.Context(), payload.Code, customerID, totals.Subtotal, items)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) decodeRule(w http.ResponseWriter, r *http.Request, code string) (Rule, bool) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Rule{}, false
	}
	if code != "" {
		payload.Code = code
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return Rule{}, false
		}
	}
	rule, err := payload.toRule()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return Rule{}, false
	}
	return rule, true
}

func (p couponPayload) toRule() (Rule, error) {
	productIDs, err := parseIDs(p.ProductIDs)
	if err != nil {
		return Rule{}, err
	}
	categoryIDs, err := parseIDs(p.CategoryIDs)
	if err != nil {
		return Rule{}, err
	}
	excludeProducts, err := parseIDs(p.ExcludeProductIDs)
	if err != nil {
		return Rule{}, err
	}
	excludeCategories, err := parseIDs(p.ExcludeCategoryIDs)
	if err != nil {
		return Rule{}, err
	}
	customerIDs, err := parseIDs(p.CustomerIDs)
	if err != nil {
		return Rule{}, err
	}
	groupIDs, err := parseIDs(p.GroupIDs)
	if err != nil {
		return Rule{}, err
	}
	buyIDs, err := parseIDs(p.BuyProductIDs)
	if err != nil {
		return Rule{}, err
	}
	getIDs, err := parseIDs(p.GetProductIDs)
	if err != nil {
		return Rule{}, err
	}
	tiers := make([]Tier, 0, len(p.Tiers))
	for _, t := range p.Tiers {
		tiers = append(tiers, Tier{
			Min:   money.FromFloat(t.Min),
			Type:  Kind(t.Type),
			Value: decimal.NewFromFloat(t.Value),
		})
	}
	var pct *decimal.Decimal
	if p.GetDiscountPercent != nil {
		v := decimal.NewFromFloat(*p.GetDiscountPercent)
		pct = &v
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	rule := Rule{
		Code:                strings.ToLower(strings.TrimSpace(p.Code)),
		Type:                Kind(defaultString(p.Type, string(KindFixed))),
		Value:               decimal.NewFromFloat(p.Value),
		DiscountKind:        DiscountKind(defaultString(p.DiscountKind, string(DiscountSimple))),
		AppliesTo:           AppliesTo(defaultString(p.AppliesTo, string(AppliesAll))),
		ProductIDs:          productIDs,
		CategoryIDs:         categoryIDs,
		ExcludeProductIDs:   excludeProducts,
		ExcludeCategoryIDs:  excludeCategories,
		MinRequirement:      MinRequirement(defaultString(p.MinRequirementType, string(MinNone))),
		MinRequirementValue: decimal.NewFromFloat(p.MinRequirementValue),
		MinSpend:            money.FromFloat(p.MinSpend),
		Eligibility:         Eligibility(defaultString(p.CustomerEligibility, string(EligibleAll))),
		CustomerIDs:         customerIDs,
		GroupIDs:            groupIDs,
		CanCombineWithOtherCoupons:  p.CanCombineWithOtherCoupons,
		CanCombineWithAutoDiscounts: p.CanCombineWithAutoDiscounts,
		Priority:            p.Priority,
		UsageLimit:          p.UsageLimit,
		UsageLimitPerCustomer: p.UsageLimitPerCustomer,
		StartsAt:            p.StartsAt,
		EndsAt:              p.EndsAt,
		IsActive:            active,
		IsAutomatic:         p.IsAutomatic,
		BuyQuantity:         p.BuyQuantity,
		GetQuantity:         p.GetQuantity,
		GetDiscountPercent:  pct,
		BuyProductIDs:       buyIDs,
		GetProductIDs:       getIDs,
		Tiers:               tiers,
	}
	return rule, nil
}

func parseIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		id, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
