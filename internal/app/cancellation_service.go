package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/notify"
	"github.com/jmmolins87/NeuronIA-sub001/internal/token"
)

type CancellationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTokenByHash(ctx context.Context, hash string) (domain.BookingToken, error)
	GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error)
	CancelBooking(ctx context.Context, id string, cancelledAt time.Time) error
	MarkTokenUsed(ctx context.Context, hash string, usedAt time.Time) error
	AppendEvent(ctx context.Context, event domain.BookingEvent) error
}

// CancellationService consumes a cancel token. A customer clicking the same
// link twice sees a calm "already cancelled" success, never an error.
type CancellationService struct {
	repo     CancellationRepository
	sweeper  *Sweeper
	clock    clock.Clock
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewCancellationService(repo CancellationRepository, sweeper *Sweeper, clk clock.Clock, notifier notify.Notifier, logger zerolog.Logger) *CancellationService {
	return &CancellationService{
		repo:     repo,
		sweeper:  sweeper,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
	}
}

type CancelInput struct {
	Token string
	Now   *time.Time
}

type CancelResult struct {
	Booking domain.Booking

	// Cancelled is false when the booking was already cancelled and this
	// call changed nothing.
	Cancelled bool
}

func (s *CancellationService) Cancel(ctx context.Context, in CancelInput) (CancelResult, error) {
	now := resolveNow(s.clock, in.Now)
	if _, err := s.sweeper.Sweep(ctx, now); err != nil {
		return CancelResult{}, err
	}

	var result CancelResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tok, err := s.repo.GetTokenByHash(txCtx, token.Hash(in.Token))
		if err != nil {
			return err
		}

		switch err := token.Check(tok, domain.TokenKindCancel, now); {
		case err == nil:
		case err == domain.ErrTokenUsed:
			booking, err := s.repo.GetBookingForUpdate(txCtx, tok.BookingID)
			if err != nil {
				return err
			}
			if booking.Status == domain.BookingStatusCancelled {
				result = CancelResult{Booking: booking, Cancelled: false}
				return nil
			}
			return domain.ErrTokenInvalid
		default:
			return err
		}

		booking, err := s.repo.GetBookingForUpdate(txCtx, tok.BookingID)
		if err != nil {
			return err
		}

		// Cancelled through another path: consume the token, skip the
		// duplicate event.
		if booking.Status == domain.BookingStatusCancelled {
			if err := s.repo.MarkTokenUsed(txCtx, tok.Hash, now); err != nil {
				return err
			}
			result = CancelResult{Booking: booking, Cancelled: false}
			return nil
		}

		if !booking.CanTransitionTo(domain.BookingStatusCancelled) {
			return domain.ErrTokenInvalid
		}

		if err := s.repo.CancelBooking(txCtx, booking.ID, now); err != nil {
			return err
		}
		if err := s.repo.MarkTokenUsed(txCtx, tok.Hash, now); err != nil {
			return err
		}
		if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
			BookingID: booking.ID,
			Type:      domain.EventCancelled,
			Metadata:  map[string]any{"start_at": booking.StartAt},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		booking.Status = domain.BookingStatusCancelled
		booking.CancelledAt = &now
		result = CancelResult{Booking: booking, Cancelled: true}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	if result.Cancelled && result.Booking.CustomerEmail != "" {
		if err := s.notifier.BookingCancelled(ctx, notify.CancellationJob{
			BookingID: result.Booking.ID,
			Email:     result.Booking.CustomerEmail,
			Name:      result.Booking.CustomerName,
			Locale:    result.Booking.Locale,
			StartAt:   result.Booking.StartAt,
			Timezone:  result.Booking.Timezone,
		}); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", result.Booking.ID).Msg("cancellation dispatch failed")
			s.recordEmailFailure(ctx, result.Booking.ID, now, err)
		}
	}
	return result, nil
}

func (s *CancellationService) recordEmailFailure(ctx context.Context, bookingID string, now time.Time, cause error) {
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.AppendEvent(txCtx, domain.BookingEvent{
			BookingID: bookingID,
			Type:      domain.EventEmailFailed,
			Metadata:  map[string]any{"error": cause.Error()},
			CreatedAt: now,
		})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("recording email failure event failed")
	}
}
