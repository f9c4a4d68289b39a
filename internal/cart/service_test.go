package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lapak/internal/catalog"
	"github.com/noah-isme/backend-lapak/internal/coupon"
	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/obs"
	"github.com/noah-isme/backend-lapak/internal/pricing"
)

type stubStore struct {
	carts   map[uuid.UUID]Cart
	items   map[uuid.UUID][]Item
	created int
	deleted []uuid.UUID
	adopted []uuid.UUID
}

func newStubStore() *stubStore {
	return &stubStore{
		carts: map[uuid.UUID]Cart{},
		items: map[uuid.UUID][]Item{},
	}
}

func (s *stubStore) GetCart(_ context.Context, id uuid.UUID) (Cart, error) {
	c, ok := s.carts[id]
	if !ok {
		return Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubStore) GetCartByUser(_ context.Context, userID uuid.UUID) (Cart, error) {
	for _, c := range s.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return Cart{}, pgx.ErrNoRows
}

func (s *stubStore) GetCartByAnon(_ context.Context, anonID string) (Cart, error) {
	for _, c := range s.carts {
		if c.AnonID != nil && *c.AnonID == anonID {
			return c, nil
		}
	}
	return Cart{}, pgx.ErrNoRows
}

func (s *stubStore) CreateCart(_ context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	c := Cart{ID: uuid.New(), UserID: userID, AnonID: anonID, ExpiresAt: expiresAt}
	s.carts[c.ID] = c
	s.created++
	return c, nil
}

func (s *stubStore) TouchCart(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	c, ok := s.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = expiresAt
	s.carts[id] = c
	return nil
}

func (s *stubStore) AdoptCart(_ context.Context, id, userID uuid.UUID) error {
	c, ok := s.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.UserID = &userID
	c.AnonID = nil
	s.carts[id] = c
	s.adopted = append(s.adopted, id)
	return nil
}

func (s *stubStore) DeleteCart(_ context.Context, id uuid.UUID) error {
	delete(s.carts, id)
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubStore) SetCoupon(_ context.Context, id uuid.UUID, code *string) error {
	c, ok := s.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.CouponCode = code
	s.carts[id] = c
	return nil
}

func (s *stubStore) ListItems(_ context.Context, cartID uuid.UUID) ([]Item, error) {
	return s.items[cartID], nil
}

func (s *stubStore) UpsertItem(_ context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID, qty money.Quantity, unitPrice money.Money) error {
	for i, item := range s.items[cartID] {
		if item.ProductID == productID && equalVariant(item.VariantID, variantID) {
			s.items[cartID][i].Qty = item.Qty.Add(qty)
			return nil
		}
	}
	s.items[cartID] = append(s.items[cartID], Item{
		ID: uuid.New(), CartID: cartID, ProductID: productID,
		VariantID: variantID, Qty: qty, UnitPrice: unitPrice,
	})
	return nil
}

func (s *stubStore) SetItemQty(_ context.Context, cartID, itemID uuid.UUID, qty money.Quantity) error {
	for i, item := range s.items[cartID] {
		if item.ID == itemID {
			s.items[cartID][i].Qty = qty
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *stubStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	kept := s.items[cartID][:0]
	for _, item := range s.items[cartID] {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	s.items[cartID] = kept
	return nil
}

func (s *stubStore) ClearItems(_ context.Context, cartID uuid.UUID) error {
	s.items[cartID] = nil
	return nil
}

func equalVariant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type stubCatalog struct {
	products map[uuid.UUID]catalog.Product
}

func (s *stubCatalog) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubDiscounts struct {
	discount money.Money
	applied  []coupon.Applied
	err      error
}

func (s *stubDiscounts) EvaluateForCart(_ context.Context, _ *string, _ *uuid.UUID, _ money.Money, _ []pricing.LineItem) (money.Money, []coupon.Applied, error) {
	if s.err != nil {
		return money.Zero(), nil, s.err
	}
	return s.discount, s.applied, nil
}

func (s *stubDiscounts) Preview(_ context.Context, code string, _ *uuid.UUID, _ money.Money, _ []pricing.LineItem) (coupon.PreviewResult, error) {
	if s.err != nil {
		return coupon.PreviewResult{}, s.err
	}
	return coupon.PreviewResult{Code: code, Discount: s.discount}, nil
}

func stubProduct(price float64) catalog.Product {
	return catalog.Product{
		ID:           uuid.New(),
		Name:         "produk",
		Slug:         "produk",
		SellingPrice: money.FromFloat(price),
		TaxRate:      decimal.Zero,
		InStock:      true,
		IsActive:     true,
	}
}

func newTestService(store *stubStore, cat *stubCatalog, disc *stubDiscounts) *Service {
	return &Service{
		Q:        store,
		Products: cat,
		Coupons:  disc,
		TTL:      time.Hour,
		Now:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestEnsureCartCreatesOncePerIdentity(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCatalog{}, &stubDiscounts{})
	anon := "anon-1"

	first, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	second, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, store.created)
}

func TestEnsureCartRequiresIdentity(t *testing.T) {
	svc := newTestService(newStubStore(), &stubCatalog{}, &stubDiscounts{})
	_, err := svc.EnsureCart(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemMergesQuantities(t *testing.T) {
	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})

	anon := "anon-2"
	c, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	require.NoError(t, svc.AddItem(context.Background(), c.ID, p.ID, nil, money.QuantityFromInt(2)))
	require.NoError(t, svc.AddItem(context.Background(), c.ID, p.ID, nil, money.QuantityFromInt(3)))

	items := store.items[c.ID]
	require.Len(t, items, 1)
	require.True(t, items[0].Qty.Decimal.Equal(decimal.NewFromInt(5)))
}

func TestAddItemRejectsUnknownProduct(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCatalog{products: map[uuid.UUID]catalog.Product{}}, &stubDiscounts{})
	anon := "anon-3"
	c, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	err = svc.AddItem(context.Background(), c.ID, uuid.New(), nil, money.QuantityFromInt(1))
	require.ErrorIs(t, err, ErrProductUnavailable)
}

func TestUpdateQtyZeroRemovesLine(t *testing.T) {
	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})
	anon := "anon-4"
	c, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), c.ID, p.ID, nil, money.QuantityFromInt(2)))

	itemID := store.items[c.ID][0].ID
	require.NoError(t, svc.UpdateQty(context.Background(), c.ID, itemID, money.QuantityFromInt(0)))
	require.Empty(t, store.items[c.ID])
}

func TestSnapshotPricesSingleRead(t *testing.T) {
	store := newStubStore()
	p := stubProduct(19.99)
	p.TaxRate = decimal.NewFromInt(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})

	anon := "anon-5"
	c, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), c.ID, p.ID, nil, money.QuantityFromInt(2)))

	snap, err := svc.Snapshot(context.Background(), c.ID, nil)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	require.Equal(t, "39.98", snap.Totals.Subtotal.String())
	require.Equal(t, "4.00", snap.Totals.TaxTotal.String())
	require.Equal(t, "43.98", snap.GrandTotal.String())
}

func TestSnapshotDropsInvalidCoupon(t *testing.T) {
	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	disc := &stubDiscounts{err: coupon.ErrExpired}
	svc := newTestService(store, cat, disc)

	anon := "anon-6"
	c, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	code := "lebaran"
	require.NoError(t, store.SetCoupon(context.Background(), c.ID, &code))

	snap, err := svc.Snapshot(context.Background(), c.ID, nil)
	require.NoError(t, err)
	require.Nil(t, snap.Cart.CouponCode)
	require.Nil(t, store.carts[c.ID].CouponCode)
	require.True(t, snap.CouponDiscount.Decimal.IsZero())
}

func TestMergeAdoptsAnonCartWhenCustomerHasNone(t *testing.T) {
	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})

	anon := "anon-7"
	anonCart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), anonCart.ID, p.ID, nil, money.QuantityFromInt(1)))

	userID := uuid.New()
	merged, err := svc.Merge(context.Background(), anon, userID)
	require.NoError(t, err)
	require.Equal(t, anonCart.ID, merged.ID)
	require.NotNil(t, merged.UserID)
	require.Equal(t, userID, *merged.UserID)
	require.Nil(t, merged.AnonID)
}

func TestMergeKeepsExistingCustomerCart(t *testing.T) {
	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})

	userID := uuid.New()
	userCart, err := svc.EnsureCart(context.Background(), &userID, nil)
	require.NoError(t, err)

	anon := "anon-8"
	anonCart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	merged, err := svc.Merge(context.Background(), anon, userID)
	require.NoError(t, err)
	require.Equal(t, userCart.ID, merged.ID)
	require.Contains(t, store.deleted, anonCart.ID)
}

func TestMergeWithoutAnonCartFallsBackToEnsure(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCatalog{}, &stubDiscounts{})

	userID := uuid.New()
	merged, err := svc.Merge(context.Background(), "missing", userID)
	require.NoError(t, err)
	require.NotNil(t, merged.UserID)
	require.Equal(t, userID, *merged.UserID)
}

func TestMergeAndSnapshotRecordMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("lapaktest", prometheus.NewRegistry())

	store := newStubStore()
	p := stubProduct(10)
	cat := &stubCatalog{products: map[uuid.UUID]catalog.Product{p.ID: p}}
	svc := newTestService(store, cat, &stubDiscounts{})

	adopt := testutil.ToFloat64(obs.CartMergeTotal.WithLabelValues("adopt"))
	ensure := testutil.ToFloat64(obs.CartMergeTotal.WithLabelValues("ensure"))

	anon := "anon-9"
	anonCart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	_, err = svc.Merge(context.Background(), anon, uuid.New())
	require.NoError(t, err)
	require.Equal(t, adopt+1, testutil.ToFloat64(obs.CartMergeTotal.WithLabelValues("adopt")))

	_, err = svc.Merge(context.Background(), "missing", uuid.New())
	require.NoError(t, err)
	require.Equal(t, ensure+1, testutil.ToFloat64(obs.CartMergeTotal.WithLabelValues("ensure")))

	_, err = svc.Snapshot(context.Background(), anonCart.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CollectAndCount(obs.CartPricingLatency))
}
