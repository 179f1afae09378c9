package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

// BookingRepository is the single storage adapter behind every workflow.
// The partial unique index on live bookings' start_at is what turns a
// concurrent double-book into one success and one ErrSlotTaken.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const bookingColumns = `id, uid, start_at, end_at, timezone, status, expires_at,
confirmed_at, cancelled_at, rescheduled_at, locale,
customer_name, customer_email, customer_phone, form_data, roi_data, notes, created_at`

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, uid, start_at, end_at, timezone, status, expires_at, locale, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		b.ID,
		b.UID,
		b.StartAt,
		b.EndAt,
		b.Timezone,
		b.Status,
		b.ExpiresAt,
		b.Locale,
		b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	b, err := r.scanBooking(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) || err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) ConfirmBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
UPDATE bookings
SET status = $2, expires_at = NULL, confirmed_at = $3,
    customer_name = $4, customer_email = $5, customer_phone = $6,
    form_data = $7, roi_data = $8
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		b.ID,
		b.Status,
		b.ConfirmedAt,
		b.CustomerName,
		b.CustomerEmail,
		b.CustomerPhone,
		b.FormData,
		b.ROIData,
	)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) CancelBooking(ctx context.Context, id string, cancelledAt time.Time) error {
	const stmt = `UPDATE bookings SET status = 'cancelled', cancelled_at = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, cancelledAt)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) RescheduleBooking(ctx context.Context, id string, startAt, endAt, rescheduledAt time.Time) error {
	const stmt = `
UPDATE bookings SET start_at = $2, end_at = $3, rescheduled_at = $4 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, startAt, endAt, rescheduledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("reschedule booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// ExpireOverdueHolds flips every overdue hold to expired and reports the
// affected booking ids.
func (r *BookingRepository) ExpireOverdueHolds(ctx context.Context, now time.Time) ([]string, error) {
	const stmt = `
UPDATE bookings SET status = 'expired'
WHERE status = 'held' AND expires_at <= $1
RETURNING id`

	rows, err := r.query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("expire overdue holds: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired hold: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListLiveStarts returns the start instants occupied by confirmed bookings
// or unexpired holds within [from, to].
func (r *BookingRepository) ListLiveStarts(ctx context.Context, from, to, now time.Time) ([]time.Time, error) {
	const query = `
SELECT start_at FROM bookings
WHERE start_at >= $1 AND start_at <= $2
  AND (status = 'confirmed' OR (status = 'held' AND expires_at > $3))`

	rows, err := r.query(ctx, query, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("list live starts: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan live start: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *BookingRepository) scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.UID, &b.StartAt, &b.EndAt, &b.Timezone, &status, &b.ExpiresAt,
		&b.ConfirmedAt, &b.CancelledAt, &b.RescheduledAt, &b.Locale,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.FormData, &b.ROIData, &b.Notes, &b.CreatedAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
