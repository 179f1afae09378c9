package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/storage/postgres"
	"github.com/jmmolins87/NeuronIA-sub001/internal/testutil"
)

func newBooking(start time.Time, status domain.BookingStatus, expiresAt *time.Time) domain.Booking {
	id := uuid.NewString()
	return domain.Booking{
		ID:        id,
		UID:       "bk_" + id[:8],
		StartAt:   start,
		EndAt:     start.Add(30 * time.Minute),
		Timezone:  "Europe/Madrid",
		Status:    status,
		ExpiresAt: expiresAt,
		Locale:    "es",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestBookingRepository_CreateBooking(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	start := now.Add(24 * time.Hour)

	t.Run("rejects a second live booking on the same slot", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		expiry := now.Add(15 * time.Minute)
		if err := repo.CreateBooking(ctx, newBooking(start, domain.BookingStatusHeld, &expiry)); err != nil {
			t.Fatalf("first create: %v", err)
		}

		err := repo.CreateBooking(ctx, newBooking(start, domain.BookingStatusHeld, &expiry))
		if !errors.Is(err, domain.ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("a cancelled booking frees its slot", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		dead := newBooking(start, domain.BookingStatusCancelled, nil)
		dead.CancelledAt = &now
		testutil.InsertBooking(t, ctx, pool, dead)

		expiry := now.Add(15 * time.Minute)
		if err := repo.CreateBooking(ctx, newBooking(start, domain.BookingStatusHeld, &expiry)); err != nil {
			t.Fatalf("expected freed slot to accept a new hold, got %v", err)
		}
	})
}

func TestBookingRepository_GetBookingForUpdate(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("returns the stored booking", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		expiry := now.Add(15 * time.Minute)
		want := newBooking(now.Add(24*time.Hour), domain.BookingStatusHeld, &expiry)
		testutil.InsertBooking(t, ctx, pool, want)

		got, err := repo.GetBookingForUpdate(ctx, want.ID)
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		if got.UID != want.UID || got.Status != domain.BookingStatusHeld || !got.StartAt.Equal(want.StartAt) {
			t.Fatalf("unexpected booking: %+v", got)
		}
	})

	t.Run("unknown id maps to not found", func(t *testing.T) {
		_, err := repo.GetBookingForUpdate(ctx, uuid.NewString())
		if !errors.Is(err, domain.ErrBookingNotFound) {
			t.Fatalf("expected ErrBookingNotFound, got %v", err)
		}
	})

	t.Run("malformed id maps to not found", func(t *testing.T) {
		_, err := repo.GetBookingForUpdate(ctx, "definitely-not-a-uuid")
		if !errors.Is(err, domain.ErrBookingNotFound) {
			t.Fatalf("expected ErrBookingNotFound, got %v", err)
		}
	})
}

func TestBookingRepository_Lifecycle(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	start := now.Add(24 * time.Hour)

	t.Run("confirm clears the hold expiry and stores the contact", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		expiry := now.Add(15 * time.Minute)
		b := newBooking(start, domain.BookingStatusHeld, &expiry)
		testutil.InsertBooking(t, ctx, pool, b)

		b.Status = domain.BookingStatusConfirmed
		b.ConfirmedAt = &now
		b.CustomerName = "Ana"
		b.CustomerEmail = "ana@example.com"
		b.FormData = []byte(`{"company":"Acme"}`)
		if err := repo.ConfirmBooking(ctx, b); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		got, err := repo.GetBookingForUpdate(ctx, b.ID)
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		if got.Status != domain.BookingStatusConfirmed || got.ExpiresAt != nil {
			t.Fatalf("expected confirmed with no expiry, got %+v", got)
		}
		if got.CustomerEmail != "ana@example.com" || string(got.FormData) != `{"company":"Acme"}` {
			t.Fatalf("expected contact persisted, got %+v", got)
		}
	})

	t.Run("cancel stamps cancelled_at", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		b := newBooking(start, domain.BookingStatusConfirmed, nil)
		b.ConfirmedAt = &now
		testutil.InsertBooking(t, ctx, pool, b)

		if err := repo.CancelBooking(ctx, b.ID, now); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		got, err := repo.GetBookingForUpdate(ctx, b.ID)
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		if got.Status != domain.BookingStatusCancelled || got.CancelledAt == nil {
			t.Fatalf("expected cancelled, got %+v", got)
		}
	})

	t.Run("reschedule into an occupied slot surfaces slot taken", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		b := newBooking(start, domain.BookingStatusConfirmed, nil)
		b.ConfirmedAt = &now
		testutil.InsertBooking(t, ctx, pool, b)

		rival := newBooking(start.Add(time.Hour), domain.BookingStatusConfirmed, nil)
		rival.ConfirmedAt = &now
		testutil.InsertBooking(t, ctx, pool, rival)

		err := repo.RescheduleBooking(ctx, b.ID, rival.StartAt, rival.EndAt, now)
		if !errors.Is(err, domain.ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}

		if err := repo.RescheduleBooking(ctx, b.ID, start.Add(2*time.Hour), start.Add(2*time.Hour+30*time.Minute), now); err != nil {
			t.Fatalf("reschedule to free slot: %v", err)
		}
	})
}

func TestBookingRepository_ExpireOverdueHolds(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	overdue := now.Add(-time.Minute)
	atBoundary := now
	fresh := now.Add(time.Minute)

	b1 := newBooking(now.Add(24*time.Hour), domain.BookingStatusHeld, &overdue)
	b2 := newBooking(now.Add(25*time.Hour), domain.BookingStatusHeld, &atBoundary)
	b3 := newBooking(now.Add(26*time.Hour), domain.BookingStatusHeld, &fresh)
	testutil.InsertBooking(t, ctx, pool, b1)
	testutil.InsertBooking(t, ctx, pool, b2)
	testutil.InsertBooking(t, ctx, pool, b3)

	ids, err := repo.ExpireOverdueHolds(ctx, now)
	if err != nil {
		t.Fatalf("expire overdue holds: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 expired (overdue and at-boundary), got %d", len(ids))
	}

	got, err := repo.GetBookingForUpdate(ctx, b3.ID)
	if err != nil || got.Status != domain.BookingStatusHeld {
		t.Fatalf("expected fresh hold untouched, got %+v (%v)", got, err)
	}

	ids, err = repo.ExpireOverdueHolds(ctx, now)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected idempotent second sweep, got %v (%v)", ids, err)
	}
}

func TestBookingRepository_ListLiveStarts(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	dayStart := now.Add(24 * time.Hour)
	dayEnd := dayStart.Add(9 * time.Hour)

	liveExpiry := now.Add(10 * time.Minute)
	staleExpiry := now.Add(-10 * time.Minute)

	confirmed := newBooking(dayStart, domain.BookingStatusConfirmed, nil)
	confirmed.ConfirmedAt = &now
	held := newBooking(dayStart.Add(time.Hour), domain.BookingStatusHeld, &liveExpiry)
	stale := newBooking(dayStart.Add(2*time.Hour), domain.BookingStatusHeld, &staleExpiry)
	cancelled := newBooking(dayStart.Add(3*time.Hour), domain.BookingStatusCancelled, nil)
	outside := newBooking(dayEnd.Add(time.Hour), domain.BookingStatusConfirmed, nil)
	outside.ConfirmedAt = &now

	for _, b := range []domain.Booking{confirmed, held, stale, cancelled, outside} {
		testutil.InsertBooking(t, ctx, pool, b)
	}

	starts, err := repo.ListLiveStarts(ctx, dayStart, dayEnd, now)
	if err != nil {
		t.Fatalf("list live starts: %v", err)
	}
	if len(starts) != 2 {
		t.Fatalf("expected 2 live starts, got %d: %v", len(starts), starts)
	}
}

func TestBookingRepository_Tokens(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("round trip", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		b := newBooking(now.Add(24*time.Hour), domain.BookingStatusConfirmed, nil)
		testutil.InsertBooking(t, ctx, pool, b)

		tok := domain.BookingToken{
			Hash:      "deadbeef",
			BookingID: b.ID,
			Kind:      domain.TokenKindCancel,
			ExpiresAt: now.Add(720 * time.Hour),
			CreatedAt: now,
		}
		if err := repo.CreateToken(ctx, tok); err != nil {
			t.Fatalf("create token: %v", err)
		}

		got, err := repo.GetTokenByHash(ctx, "deadbeef")
		if err != nil {
			t.Fatalf("get token: %v", err)
		}
		if got.BookingID != b.ID || got.Kind != domain.TokenKindCancel || got.Used() {
			t.Fatalf("unexpected token: %+v", got)
		}
	})

	t.Run("unknown hash maps to token invalid", func(t *testing.T) {
		_, err := repo.GetTokenByHash(ctx, "no-such-hash")
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("a token can only be consumed once", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		b := newBooking(now.Add(24*time.Hour), domain.BookingStatusConfirmed, nil)
		testutil.InsertBooking(t, ctx, pool, b)
		testutil.InsertToken(t, ctx, pool, domain.BookingToken{
			Hash: "once", BookingID: b.ID, Kind: domain.TokenKindSession,
			ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		})

		if err := repo.MarkTokenUsed(ctx, "once", now); err != nil {
			t.Fatalf("first use: %v", err)
		}
		if err := repo.MarkTokenUsed(ctx, "once", now); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid on second use, got %v", err)
		}
	})
}

func TestBookingRepository_Events(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	b := newBooking(now.Add(24*time.Hour), domain.BookingStatusConfirmed, nil)
	testutil.InsertBooking(t, ctx, pool, b)

	if err := repo.AppendEvent(ctx, domain.BookingEvent{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		Type:      domain.EventConfirmed,
		Metadata:  map[string]any{"email": "ana@example.com"},
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := repo.AppendEvent(ctx, domain.BookingEvent{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		Type:      domain.EventCancelled,
		CreatedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("append second event: %v", err)
	}

	evs, err := repo.ListEvents(ctx, b.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != domain.EventConfirmed || evs[1].Type != domain.EventCancelled {
		t.Fatalf("unexpected events: %+v", evs)
	}
	if evs[0].Metadata["email"] != "ana@example.com" {
		t.Fatalf("expected metadata round trip, got %+v", evs[0].Metadata)
	}
}

func TestBookingRepository_WithTx(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := postgres.NewBookingRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	expiry := now.Add(15 * time.Minute)
	b := newBooking(now.Add(24*time.Hour), domain.BookingStatusHeld, &expiry)

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.CreateBooking(ctx, b); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error surfaced, got %v", err)
	}

	if _, err := repo.GetBookingForUpdate(ctx, b.ID); !errors.Is(err, domain.ErrBookingNotFound) {
		t.Fatalf("expected rollback to discard the booking, got %v", err)
	}
}
