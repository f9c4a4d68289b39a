package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-lapak/internal/events"
)

// InsertEvent persists a domain event row.
func (s *Store) InsertEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	var ev events.Event
	err := s.db.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("store: insert domain event: %w", err)
	}
	return ev, nil
}

// ListEventsByTopic returns recent events for a topic, newest first.
func (s *Store) ListEventsByTopic(ctx context.Context, topic string, limit int) ([]events.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, topic, aggregate_id, payload, occurred_at
		FROM domain_events WHERE topic = $1 ORDER BY occurred_at DESC LIMIT $2`,
		topic, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list domain events: %w", err)
	}
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		var ev events.Event
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
