package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/catalog"
)

const productColumns = `id, name, slug, unit, image, selling_price, regular_price, tax_rate, in_stock, is_active, created_at`

// GetProductsByIDs loads products with their categories and variants.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: products by ids: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProductBySlug loads one product with its categories and variants.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, err
	}
	products := []catalog.Product{p}
	if err := s.attachRelations(ctx, products); err != nil {
		return catalog.Product{}, err
	}
	return products[0], nil
}

// ListProducts returns a filtered page of active products plus the total
// count for that filter.
func (s *Store) ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, int64, error) {
	where := `WHERE p.is_active`
	args := []any{}
	n := 1
	if params.Query != "" {
		where += fmt.Sprintf(` AND p.name ILIKE $%d`, n)
		args = append(args, "%"+params.Query+"%")
		n++
	}
	if params.Category != "" {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM product_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id AND c.slug = $%d)`, n)
		args = append(args, params.Category)
		n++
	}
	if params.InStock != nil {
		where += fmt.Sprintf(` AND p.in_stock = $%d`, n)
		args = append(args, *params.InStock)
		n++
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM products p `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count products: %w", err)
	}

	query := `SELECT ` + prefixColumns("p", productColumns) + ` FROM products p ` + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, n, n+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachRelations(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListCategories returns all categories.
func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, slug, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	defer rows.Close()
	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateProduct inserts a product row.
func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (name, slug, unit, image, selling_price, regular_price, tax_rate, in_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.Name, p.Slug, p.Unit, p.Image, p.SellingPrice, p.RegularPrice, p.TaxRate, p.InStock, p.IsActive)
	created, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("store: create product: %w", err)
	}
	for _, v := range p.Variants {
		if err := s.db.QueryRow(ctx, `
			INSERT INTO product_variants (product_id, name, sku, selling_price, regular_price, stock)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			created.ID, v.Name, v.SKU, v.SellingPrice, v.RegularPrice, v.Stock).Scan(&v.ID); err != nil {
			return catalog.Product{}, fmt.Errorf("store: create variant: %w", err)
		}
		created.Variants = append(created.Variants, v)
	}
	for _, categoryID := range p.CategoryIDs {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, created.ID, categoryID); err != nil {
			return catalog.Product{}, fmt.Errorf("store: assign category: %w", err)
		}
	}
	created.CategoryIDs = p.CategoryIDs
	return created, nil
}

// CreateCategory inserts a category row.
func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (name, slug, parent_id) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Slug, c.ParentID).Scan(&c.ID)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("store: create category: %w", err)
	}
	return c, nil
}

func (s *Store) attachRelations(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(products))
	ids := make([]uuid.UUID, 0, len(products))
	for i, p := range products {
		index[p.ID] = i
		ids = append(ids, p.ID)
	}

	catRows, err := s.db.Query(ctx, `SELECT product_id, category_id FROM product_categories WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("store: product categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var productID, categoryID uuid.UUID
		if err := catRows.Scan(&productID, &categoryID); err != nil {
			return err
		}
		if i, ok := index[productID]; ok {
			products[i].CategoryIDs = append(products[i].CategoryIDs, categoryID)
		}
	}
	if err := catRows.Err(); err != nil {
		return err
	}

	varRows, err := s.db.Query(ctx, `
		SELECT id, product_id, name, sku, selling_price, regular_price, stock
		FROM product_variants WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("store: product variants: %w", err)
	}
	defer varRows.Close()
	for varRows.Next() {
		var (
			v         catalog.Variant
			productID uuid.UUID
		)
		if err := varRows.Scan(&v.ID, &productID, &v.Name, &v.SKU, &v.SellingPrice, &v.RegularPrice, &v.Stock); err != nil {
			return err
		}
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	return varRows.Err()
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Unit, &p.Image, &p.SellingPrice,
		&p.RegularPrice, &p.TaxRate, &p.InStock, &p.IsActive, &p.CreatedAt)
	return p, err
}

func scanProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
