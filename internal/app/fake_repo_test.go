package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/notify"
	"github.com/jmmolins87/NeuronIA-sub001/internal/schedule"
)

// fakeRepo implements every repository interface in this package, mimicking
// the storage layer's live-slot uniqueness guarantee in memory.
type fakeRepo struct {
	bookings map[string]domain.Booking
	tokens   map[string]domain.BookingToken
	events   []domain.BookingEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bookings: make(map[string]domain.Booking),
		tokens:   make(map[string]domain.BookingToken),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeRepo) ExpireOverdueHolds(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	for id, b := range f.bookings {
		if b.Status == domain.BookingStatusHeld && b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			b.Status = domain.BookingStatusExpired
			f.bookings[id] = b
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRepo) slotOccupied(startAt time.Time, exceptID string) bool {
	for id, b := range f.bookings {
		if id == exceptID {
			continue
		}
		if !b.StartAt.Equal(startAt) {
			continue
		}
		if b.Status == domain.BookingStatusHeld || b.Status == domain.BookingStatusConfirmed {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateBooking(_ context.Context, booking domain.Booking) error {
	if f.slotOccupied(booking.StartAt, booking.ID) {
		return domain.ErrSlotTaken
	}
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeRepo) GetBookingForUpdate(_ context.Context, id string) (domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeRepo) ConfirmBooking(_ context.Context, booking domain.Booking) error {
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeRepo) CancelBooking(_ context.Context, id string, cancelledAt time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledAt = &cancelledAt
	f.bookings[id] = b
	return nil
}

func (f *fakeRepo) RescheduleBooking(_ context.Context, id string, startAt, endAt, rescheduledAt time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if f.slotOccupied(startAt, id) {
		return domain.ErrSlotTaken
	}
	b.StartAt = startAt
	b.EndAt = endAt
	b.RescheduledAt = &rescheduledAt
	f.bookings[id] = b
	return nil
}

func (f *fakeRepo) ListLiveStarts(_ context.Context, from, to, now time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, b := range f.bookings {
		if b.StartAt.Before(from) || b.StartAt.After(to) {
			continue
		}
		if b.Live(now) {
			out = append(out, b.StartAt)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateToken(_ context.Context, tok domain.BookingToken) error {
	if _, exists := f.tokens[tok.Hash]; exists {
		return fmt.Errorf("duplicate token hash")
	}
	f.tokens[tok.Hash] = tok
	return nil
}

func (f *fakeRepo) GetTokenByHash(_ context.Context, hash string) (domain.BookingToken, error) {
	tok, ok := f.tokens[hash]
	if !ok {
		return domain.BookingToken{}, domain.ErrTokenInvalid
	}
	return tok, nil
}

func (f *fakeRepo) MarkTokenUsed(_ context.Context, hash string, usedAt time.Time) error {
	tok, ok := f.tokens[hash]
	if !ok {
		return domain.ErrTokenInvalid
	}
	tok.UsedAt = &usedAt
	f.tokens[hash] = tok
	return nil
}

func (f *fakeRepo) AppendEvent(_ context.Context, event domain.BookingEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRepo) eventsOfType(t domain.EventType) []domain.BookingEvent {
	var out []domain.BookingEvent
	for _, ev := range f.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeRepo) tokensOfKind(k domain.TokenKind) []domain.BookingToken {
	var out []domain.BookingToken
	for _, tok := range f.tokens {
		if tok.Kind == k {
			out = append(out, tok)
		}
	}
	return out
}

type fakeNotifier struct {
	confirmations []notify.ConfirmationJob
	cancellations []notify.CancellationJob
	err           error
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, job notify.ConfirmationJob) error {
	if f.err != nil {
		return f.err
	}
	f.confirmations = append(f.confirmations, job)
	return nil
}

func (f *fakeNotifier) BookingCancelled(_ context.Context, job notify.CancellationJob) error {
	if f.err != nil {
		return f.err
	}
	f.cancellations = append(f.cancellations, job)
	return nil
}

func testSchedule(t *testing.T) *schedule.Schedule {
	t.Helper()
	s, err := schedule.New("Europe/Madrid", "09:00", "18:00", 30)
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	return s
}

// madridTime builds an instant from business-zone wall-clock components.
func madridTime(t *testing.T, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}
