package domain

import "time"

type TokenKind string

const (
	TokenKindSession    TokenKind = "session"
	TokenKindCancel     TokenKind = "cancel"
	TokenKindReschedule TokenKind = "reschedule"
)

// BookingToken is a single-use capability over one booking. Only the hash of
// the opaque secret is ever persisted.
type BookingToken struct {
	Hash      string
	BookingID string
	Kind      TokenKind
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t BookingToken) Used() bool {
	return t.UsedAt != nil
}

func (t BookingToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
