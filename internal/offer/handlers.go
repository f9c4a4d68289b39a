package offer

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
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/common"
	"github.com/noah-isme/backend-lapak/internal/money"
)

// SnapshotLoader provides the immutable cart context the matcher runs over.
type SnapshotLoader interface {
	OfferContext(ctx context.Context, cartID uuid.UUID) (CartContext, error)
}

// Repo captures the store methods behind the administrative endpoints.
type Repo interface {
	CreateOffer(ctx context.Context, o CartOffer) (CartOffer, error)
	UpdateOffer(ctx context.Context, o CartOffer) (CartOffer, error)
	DeleteOffer(ctx context.Context, id uuid.UUID) error
	ListOffers(ctx context.Context, limit, offset int) ([]CartOffer, error)
}

// Handler exposes the storefront best-offer endpoint and offer management.
type Handler struct {
	Svc      *Service
	Carts    SnapshotLoader
	Repo     Repo
	Validate *validator.Validate
}

// Best returns the single recommended offer for the given cart and placement.
func (h *Handler) Best(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("cartId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	placement := Placement(strings.TrimSpace(r.URL.Query().Get("placement")))
	if placement == "" {
		placement = PlacementCart
	}
	cart, err := h.Carts.OfferContext(r.Context(), cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}
	if _, ok := common.UserID(r.Context()); ok {
		cart.LoggedIn = true
	}

	view := View{}
	if raw := strings.TrimSpace(r.URL.Query().Get("productId")); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
			return
		}
		view.ProductID = &pid
		if h.Svc.Products != nil {
			views, err := h.Svc.Products.Views(r.Context(), []uuid.UUID{pid})
			if err == nil {
				if v, ok := views[pid]; ok {
					view.CategoryIDs = v.CategoryIDs
				}
			}
		}
	}

	payload, err := h.Svc.Resolve(r.Context(), cart, placement, view)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve offers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

type offerProductPayload struct {
	ProductID             string  `json:"productId" validate:"required,uuid"`
	VariantID             *string `json:"variantId"`
	DiscountKind          string  `json:"discountKind" validate:"oneof=percentage fixed"`
	Value                 float64 `json:"value" validate:"gte=0"`
	Base                  string  `json:"base" validate:"omitempty,oneof=selling_price regular_price"`
	DisplayOrder          int     `json:"displayOrder"`
	AllowVariantSelection bool    `json:"allowVariantSelection"`
}

type offerPayload struct {
	Title         string                `json:"title" validate:"required"`
	Description   string                `json:"description"`
	Placement     string                `json:"placement" validate:"oneof=checkout product_page cart"`
	TriggerKind   string                `json:"triggerKind" validate:"oneof=all_products specific_products specific_categories cart_total"`
	ProductIDs    []string              `json:"productIds"`
	CategoryIDs   []string              `json:"categoryIds"`
	MinTotal      *float64              `json:"minTotal"`
	MaxTotal      *float64              `json:"maxTotal"`
	Conditions    offerConditionsPayload `json:"conditions"`
	Priority      int                   `json:"priority"`
	StartsAt      *time.Time            `json:"startsAt"`
	EndsAt        *time.Time            `json:"endsAt"`
	IsActive      *bool                 `json:"isActive"`
	DisplayConfig map[string]any        `json:"displayConfig"`
	Products      []offerProductPayload `json:"products" validate:"required,min=1,dive"`
}

type offerConditionsPayload struct {
	MinCartTotal      *float64 `json:"minCartTotal"`
	MaxCartTotal      *float64 `json:"maxCartTotal"`
	MinItemsCount     *float64 `json:"minItemsCount"`
	MaxItemsCount     *float64 `json:"maxItemsCount"`
	ExcludeDiscounted bool     `json:"excludeDiscounted"`
	HideIfInCart      *bool    `json:"hideIfInCart"`
	LoggedInOnly      bool     `json:"loggedInOnly"`
}

// Create inserts a new cart offer.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer repo not configured", nil)
		return
	}
	o, ok := h.decodeOffer(w, r)
	if !ok {
		return
	}
	created, err := h.Repo.CreateOffer(r.Context(), o)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create offer", nil)
		return
	}
	h.Svc.InvalidatePlacement(r.Context(), created.Placement)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing offer.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer repo not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	o, ok := h.decodeOffer(w, r)
	if !ok {
		return
	}
	o.ID = id
	updated, err := h.Repo.UpdateOffer(r.Context(), o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update offer", nil)
		return
	}
	h.Svc.InvalidatePlacement(r.Context(), updated.Placement)
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes an offer.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer repo not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	if err := h.Repo.DeleteOffer(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete offer", nil)
		return
	}
	// placement is unknown after the row is gone
	for _, p := range []Placement{PlacementCart, PlacementCheckout, PlacementProductPage} {
		h.Svc.InvalidatePlacement(r.Context(), p)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id.String()}})
}

// List returns a page of offers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer repo not configured", nil)
		return
	}
	page := common.ParsePagination(r, 20, 100)
	offers, err := h.Repo.ListOffers(r.Context(), page.Limit, page.Offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list offers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": offers, "page": page})
}

func (h *Handler) decodeOffer(w http.ResponseWriter, r *http.Request) (CartOffer, bool) {
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return CartOffer{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return CartOffer{}, false
		}
	}
	o, err := payload.toOffer()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return CartOffer{}, false
	}
	return o, true
}

func (p offerPayload) toOffer() (CartOffer, error) {
	productIDs, err := parseIDList(p.ProductIDs)
	if err != nil {
		return CartOffer{}, err
	}
	categoryIDs, err := parseIDList(p.CategoryIDs)
	if err != nil {
		return CartOffer{}, err
	}
	products := make([]OfferProduct, 0, len(p.Products))
	for _, in := range p.Products {
		pid, err := uuid.Parse(in.ProductID)
		if err != nil {
			return CartOffer{}, err
		}
		var vid *uuid.UUID
		if in.VariantID != nil && *in.VariantID != "" {
			parsed, err := uuid.Parse(*in.VariantID)
			if err != nil {
				return CartOffer{}, err
			}
			vid = &parsed
		}
		products = append(products, OfferProduct{
			ProductID:             pid,
			VariantID:             vid,
			DiscountKind:          DiscountKind(in.DiscountKind),
			Value:                 decimal.NewFromFloat(in.Value),
			Base:                  PriceBase(defaultBase(in.Base)),
			DisplayOrder:          in.DisplayOrder,
			AllowVariantSelection: in.AllowVariantSelection,
		})
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	o := CartOffer{
		Title:       p.Title,
		Description: p.Description,
		Placement:   Placement(p.Placement),
		Trigger: Trigger{
			Kind:        TriggerKind(p.TriggerKind),
			ProductIDs:  productIDs,
			CategoryIDs: categoryIDs,
			MinTotal:    optionalMoney(p.MinTotal),
			MaxTotal:    optionalMoney(p.MaxTotal),
		},
		Conditions: Conditions{
			MinCartTotal:      optionalMoney(p.Conditions.MinCartTotal),
			MaxCartTotal:      optionalMoney(p.Conditions.MaxCartTotal),
			MinItemsCount:     optionalDecimal(p.Conditions.MinItemsCount),
			MaxItemsCount:     optionalDecimal(p.Conditions.MaxItemsCount),
			ExcludeDiscounted: p.Conditions.ExcludeDiscounted,
			HideIfInCart:      p.Conditions.HideIfInCart,
			LoggedInOnly:      p.Conditions.LoggedInOnly,
		},
		Priority:      p.Priority,
		StartsAt:      p.StartsAt,
		EndsAt:        p.EndsAt,
		IsActive:      active,
		DisplayConfig: p.DisplayConfig,
		Products:      products,
	}
	return o, nil
}

func parseIDList(values []string) ([]uuid.UUID, error) {
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

func optionalMoney(v *float64) *money.Money {
	if v == nil {
		return nil
	}
	m := money.FromFloat(*v)
	return &m
}

func optionalDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

func defaultBase(v string) string {
	if strings.TrimSpace(v) == "" {
		return string(BaseSellingPrice)
	}
	return v
}
