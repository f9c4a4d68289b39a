package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-lapak/internal/offer"
)

const offerColumns = `id, title, description, placement, trigger_rule, conditions,
	priority, starts_at, ends_at, is_active, display_config, products, created_at`

// ListOffersByPlacement returns active offers for one placement.
func (s *Store) ListOffersByPlacement(ctx context.Context, placement offer.Placement) ([]offer.CartOffer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+offerColumns+` FROM cart_offers
		 WHERE placement = $1 AND is_active
		 ORDER BY priority DESC, created_at DESC`, placement)
	if err != nil {
		return nil, fmt.Errorf("store: offers by placement: %w", err)
	}
	return scanOffers(rows)
}

// ListOffers returns a page of offers for administration.
func (s *Store) ListOffers(ctx context.Context, limit, offset int) ([]offer.CartOffer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+offerColumns+` FROM cart_offers ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list offers: %w", err)
	}
	return scanOffers(rows)
}

// CreateOffer inserts an offer row.
func (s *Store) CreateOffer(ctx context.Context, o offer.CartOffer) (offer.CartOffer, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_offers (title, description, placement, trigger_rule, conditions,
			priority, starts_at, ends_at, is_active, display_config, products)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+offerColumns,
		o.Title, o.Description, o.Placement, mustJSON(o.Trigger), mustJSON(o.Conditions),
		o.Priority, o.StartsAt, o.EndsAt, o.IsActive, mustJSON(o.DisplayConfig), mustJSON(o.Products))
	return scanOffer(row)
}

// UpdateOffer replaces an offer's configuration.
func (s *Store) UpdateOffer(ctx context.Context, o offer.CartOffer) (offer.CartOffer, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE cart_offers SET
			title = $2, description = $3, placement = $4, trigger_rule = $5, conditions = $6,
			priority = $7, starts_at = $8, ends_at = $9, is_active = $10,
			display_config = $11, products = $12
		WHERE id = $1
		RETURNING `+offerColumns,
		o.ID, o.Title, o.Description, o.Placement, mustJSON(o.Trigger), mustJSON(o.Conditions),
		o.Priority, o.StartsAt, o.EndsAt, o.IsActive, mustJSON(o.DisplayConfig), mustJSON(o.Products))
	return scanOffer(row)
}

// DeleteOffer removes an offer.
func (s *Store) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_offers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanOffer(row pgx.Row) (offer.CartOffer, error) {
	var (
		o             offer.CartOffer
		trigger       []byte
		conditions    []byte
		displayConfig []byte
		products      []byte
	)
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Placement, &trigger, &conditions,
		&o.Priority, &o.StartsAt, &o.EndsAt, &o.IsActive, &displayConfig, &products, &o.CreatedAt)
	if err != nil {
		return offer.CartOffer{}, err
	}
	if len(trigger) > 0 {
		if err := json.Unmarshal(trigger, &o.Trigger); err != nil {
			return offer.CartOffer{}, fmt.Errorf("store: decode offer trigger: %w", err)
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &o.Conditions); err != nil {
			return offer.CartOffer{}, fmt.Errorf("store: decode offer conditions: %w", err)
		}
	}
	if len(displayConfig) > 0 {
		if err := json.Unmarshal(displayConfig, &o.DisplayConfig); err != nil {
			return offer.CartOffer{}, fmt.Errorf("store: decode offer display config: %w", err)
		}
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &o.Products); err != nil {
			return offer.CartOffer{}, fmt.Errorf("store: decode offer products: %w", err)
		}
	}
	return o, nil
}

func scanOffers(rows pgx.Rows) ([]offer.CartOffer, error) {
	defer rows.Close()
	var out []offer.CartOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func mustJSON(v any) []byte {
	if v == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
