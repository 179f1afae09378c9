package domain

import "time"

type BookingStatus string

const (
	BookingStatusHeld      BookingStatus = "held"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Booking is a reservation for a single appointment slot. Rows are never
// deleted; status transitions preserve the audit history.
type Booking struct {
	ID       string
	UID      string
	StartAt  time.Time
	EndAt    time.Time
	Timezone string

	Status    BookingStatus
	ExpiresAt *time.Time

	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	RescheduledAt *time.Time

	Locale        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	FormData      []byte
	ROIData       []byte
	Notes         string

	CreatedAt time.Time
}

// Live reports whether the booking occupies its slot: a confirmed booking,
// or a hold that has not passed its TTL.
func (b Booking) Live(now time.Time) bool {
	switch b.Status {
	case BookingStatusConfirmed:
		return true
	case BookingStatusHeld:
		return b.ExpiresAt == nil || b.ExpiresAt.After(now)
	default:
		return false
	}
}

// CanTransitionTo enforces the legal lifecycle moves. Confirmed-to-confirmed
// is a reschedule (same state, new time window). Expired and cancelled are
// terminal.
func (b Booking) CanTransitionTo(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusHeld:
		return next == BookingStatusConfirmed || next == BookingStatusExpired || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled || next == BookingStatusConfirmed
	default:
		return false
	}
}
