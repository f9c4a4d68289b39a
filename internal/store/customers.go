package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EmailForUser resolves a customer's email address. Used by the notification
// worker.
func (s *Store) EmailForUser(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("store: invalid customer id: %w", err)
	}
	var email string
	if err := s.db.QueryRow(ctx, `SELECT email FROM customers WHERE id = $1`, id).Scan(&email); err != nil {
		return "", fmt.Errorf("store: customer email: %w", err)
	}
	return email, nil
}

// CreateCustomer inserts a customer row, used by the seeder.
func (s *Store) CreateCustomer(ctx context.Context, email, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO customers (email, name) VALUES ($1, $2) RETURNING id`, email, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: create customer: %w", err)
	}
	return id, nil
}

// CreateCustomerGroup inserts a group row, used by the seeder.
func (s *Store) CreateCustomerGroup(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO customer_groups (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: create customer group: %w", err)
	}
	return id, nil
}

// AddCustomerToGroup links a customer to a group.
func (s *Store) AddCustomerToGroup(ctx context.Context, customerID, groupID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO customer_group_members (customer_id, group_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, customerID, groupID)
	if err != nil {
		return fmt.Errorf("store: add customer to group: %w", err)
	}
	return nil
}
