package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

func (r *BookingRepository) AppendEvent(ctx context.Context, ev domain.BookingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	var metadata []byte
	if ev.Metadata != nil {
		var err error
		metadata, err = json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
	}

	const stmt = `
INSERT INTO booking_events (id, booking_id, type, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, ev.ID, ev.BookingID, ev.Type, metadata, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns a booking's history oldest first.
func (r *BookingRepository) ListEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error) {
	const query = `
SELECT id, booking_id, type, metadata, created_at
FROM booking_events WHERE booking_id = $1
ORDER BY created_at, id`

	rows, err := r.query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.BookingEvent
	for rows.Next() {
		var ev domain.BookingEvent
		var evType string
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.BookingID, &evType, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = domain.EventType(evType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
