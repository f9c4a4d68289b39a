package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/offer"
)

// Product is the catalog view of a sellable item.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Unit         string          `json:"unit"`
	Image        *string         `json:"image,omitempty"`
	SellingPrice money.Money     `json:"sellingPrice"`
	RegularPrice *money.Money    `json:"regularPrice,omitempty"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	InStock      bool            `json:"inStock"`
	IsActive     bool            `json:"isActive"`
	CategoryIDs  []uuid.UUID     `json:"categoryIds,omitempty"`
	Variants     []Variant       `json:"variants,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Variant is a purchasable variation of a product with its own price.
type Variant struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	SKU          *string      `json:"sku,omitempty"`
	SellingPrice money.Money  `json:"sellingPrice"`
	RegularPrice *money.Money `json:"regularPrice,omitempty"`
	Stock        int          `json:"stock"`
}

// Category is a public category entry.
type Category struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	InStock  *bool
	Limit    int
	Offset   int
}

// Querier is the subset of store methods the catalog needs.
type Querier interface {
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	Q     Querier
	Cache *Cache
}

// List returns a filtered page of products along with the total count.
func (s *Service) List(ctx context.Context, params ListParams) ([]Product, int64, error) {
	return s.Q.ListProducts(ctx, params)
}

// GetBySlug returns one product, consulting the cache first.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Product, error) {
	key := "catalog:product:" + slug
	var p Product
	if hit, err := s.Cache.GetJSON(ctx, key, &p); err == nil && hit {
		return p, nil
	}
	p, err := s.Q.GetProductBySlug(ctx, slug)
	if err != nil {
		return Product{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, p)
	return p, nil
}

// Categories returns all public categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	key := "catalog:categories"
	var cached []Category
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	cats, err := s.Q.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, key, cats)
	return cats, nil
}

// InvalidateProduct evicts cached entries after an admin mutation.
func (s *Service) InvalidateProduct(ctx context.Context, slug string, id uuid.UUID) error {
	return s.Cache.Invalidate(ctx, "catalog:product:"+slug, productKey(id), viewKey(id), "catalog:categories")
}

// GetProductsByIDs resolves full products for cart pricing, consulting the
// per-product cache before falling back to the store. Unknown ids are simply
// absent from the result.
func (s *Service) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	out := make([]Product, 0, len(ids))
	missing := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		var p Product
		if hit, err := s.Cache.GetJSON(ctx, productKey(id), &p); err == nil && hit {
			out = append(out, p)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	products, err := s.Q.GetProductsByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		_ = s.Cache.SetJSON(ctx, productKey(p.ID), p)
	}
	return append(out, products...), nil
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("catalog:productid:%s", id)
}

// Views resolves priced product views for the given ids. Missing or inactive
// products are simply absent from the result.
func (s *Service) Views(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]offer.ProductView, error) {
	out := make(map[uuid.UUID]offer.ProductView, len(ids))
	missing := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		var v offer.ProductView
		if hit, err := s.Cache.GetJSON(ctx, viewKey(id), &v); err == nil && hit {
			out[id] = v
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	products, err := s.Q.GetProductsByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		v := toView(p)
		out[p.ID] = v
		_ = s.Cache.SetJSON(ctx, viewKey(p.ID), v)
	}
	return out, nil
}

func viewKey(id uuid.UUID) string {
	return fmt.Sprintf("catalog:view:%s", id)
}

func toView(p Product) offer.ProductView {
	regular := p.SellingPrice
	if p.RegularPrice != nil {
		regular = *p.RegularPrice
	}
	image := ""
	if p.Image != nil {
		image = *p.Image
	}
	v := offer.ProductView{
		ID:           p.ID,
		Name:         p.Name,
		Image:        image,
		Unit:         p.Unit,
		RegularPrice: regular,
		SellingPrice: p.SellingPrice,
		CategoryIDs:  p.CategoryIDs,
	}
	for _, variant := range p.Variants {
		vr := variant.SellingPrice
		if variant.RegularPrice != nil {
			vr = *variant.RegularPrice
		}
		v.Variants = append(v.Variants, offer.VariantView{
			ID:           variant.ID,
			Name:         variant.Name,
			RegularPrice: vr,
			SellingPrice: variant.SellingPrice,
		})
	}
	return v
}
