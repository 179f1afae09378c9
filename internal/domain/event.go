package domain

import "time"

type EventType string

const (
	EventConfirmed     EventType = "CONFIRMED"
	EventCancelled     EventType = "CANCELLED"
	EventRescheduled   EventType = "RESCHEDULED"
	EventExpired       EventType = "EXPIRED"
	EventTokensCreated EventType = "TOKENS_CREATED"
	EventEmailFailed   EventType = "EMAIL_FAILED"
)

// BookingEvent is an append-only audit fact. Events are never mutated or
// deleted.
type BookingEvent struct {
	ID        string
	BookingID string
	Type      EventType
	Metadata  map[string]any
	CreatedAt time.Time
}
