package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-lapak/internal/common"
	"github.com/noah-isme/backend-lapak/internal/money"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc *Service
}

// Create creates or returns a cart for the caller's identity. Authenticated
// callers get their user cart; everyone else gets an anonymous cart keyed by
// the supplied or generated anonId.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if uid, ok := customerID(r); ok {
		c, err := h.Svc.EnsureCart(r.Context(), uid, nil)
		if err != nil {
			h.writeError(w, err)
			return
		}
		common.JSON(w, http.StatusCreated, map[string]any{"data": c})
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	c, err := h.Svc.EnsureCart(r.Context(), nil, &anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data":   c,
		"anonId": anonID,
	})
}

// Get returns the priced snapshot of a cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	uid, _ := customerID(r)
	snap, err := h.Svc.Snapshot(r.Context(), cartID, uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// AddItem handles POST /v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string  `json:"productId"`
		VariantID *string `json:"variantId"`
		Qty       float64 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var variantID *uuid.UUID
	if payload.VariantID != nil && *payload.VariantID != "" {
		parsed, err := uuid.Parse(*payload.VariantID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variant id", nil)
			return
		}
		variantID = &parsed
	}
	qty := money.QuantityFromFloat(payload.Qty)
	if err := h.Svc.AddItem(r.Context(), cartID, productID, variantID, qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// UpdateItem handles PATCH /v1/carts/{id}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty float64 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, itemID, money.QuantityFromFloat(payload.Qty)); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// RemoveItem handles DELETE /v1/carts/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// Clear handles DELETE /v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// ApplyCoupon handles POST /v1/carts/{id}/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.Code) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	uid, _ := customerID(r)
	if _, err := h.Svc.ApplyCoupon(r.Context(), cartID, payload.Code, uid); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// RemoveCoupon handles DELETE /v1/carts/{id}/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSnapshot(w, r, cartID)
}

// Merge handles POST /v1/carts/merge for freshly authenticated customers.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	uid, ok := customerID(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.AnonID) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "anonId is required", nil)
		return
	}
	c, err := h.Svc.Merge(r.Context(), strings.TrimSpace(payload.AnonID), *uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondSnapshot(w http.ResponseWriter, r *http.Request, cartID uuid.UUID) {
	uid, _ := customerID(r)
	snap, err := h.Svc.Snapshot(r.Context(), cartID, uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrProductUnavailable):
		common.JSONError(w, http.StatusConflict, "UNAVAILABLE", "product unavailable", nil)
	case isCouponRejection(err):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_REJECTED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}

func customerID(r *http.Request) (*uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
