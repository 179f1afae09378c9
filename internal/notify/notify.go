// Package notify hands finished bookings to the out-of-process email
// collaborator. Delivery is best effort: workflows record a failure but
// never roll back the state change that triggered it.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ConfirmationJob carries everything the email collaborator needs to send a
// confirmation: the raw management links (never persisted server-side) and
// the rendered calendar attachment.
type ConfirmationJob struct {
	BookingID string `json:"booking_id"`
	UID       string `json:"uid"`

	Email  string `json:"email"`
	Name   string `json:"name"`
	Locale string `json:"locale"`

	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Timezone string    `json:"timezone"`

	CancelURL     string `json:"cancel_url"`
	RescheduleURL string `json:"reschedule_url"`
	ICS           string `json:"ics"`
}

// CancellationJob notifies a customer their booking was cancelled. When an
// operational address is configured an internal copy is dispatched too,
// independent of the customer copy's outcome.
type CancellationJob struct {
	BookingID string `json:"booking_id"`

	Email  string `json:"email"`
	Name   string `json:"name"`
	Locale string `json:"locale"`

	StartAt  time.Time `json:"start_at"`
	Timezone string    `json:"timezone"`
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, job ConfirmationJob) error
	BookingCancelled(ctx context.Context, job CancellationJob) error
}

type noopNotifier struct {
	logger zerolog.Logger
}

// NewNoop returns a notifier that only logs. Used when no broker is
// configured.
func NewNoop(logger zerolog.Logger) Notifier {
	return noopNotifier{logger: logger}
}

func (n noopNotifier) BookingConfirmed(_ context.Context, job ConfirmationJob) error {
	n.logger.Debug().Str("booking_id", job.BookingID).Msg("notification dispatch disabled, dropping confirmation job")
	return nil
}

func (n noopNotifier) BookingCancelled(_ context.Context, job CancellationJob) error {
	n.logger.Debug().Str("booking_id", job.BookingID).Msg("notification dispatch disabled, dropping cancellation job")
	return nil
}
