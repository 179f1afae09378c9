package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/ics"
	"github.com/jmmolins87/NeuronIA-sub001/internal/notify"
	"github.com/jmmolins87/NeuronIA-sub001/internal/token"
)

type ConfirmationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTokenByHash(ctx context.Context, hash string) (domain.BookingToken, error)
	GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error)
	ConfirmBooking(ctx context.Context, booking domain.Booking) error
	MarkTokenUsed(ctx context.Context, hash string, usedAt time.Time) error
	CreateToken(ctx context.Context, tok domain.BookingToken) error
	AppendEvent(ctx context.Context, event domain.BookingEvent) error
}

// ConfirmationService consumes a session token, finalizes contact details
// and mints the cancel/reschedule capabilities. The whole transition is one
// transaction; the confirmation email is dispatched after commit and its
// failure never rolls the booking back.
type ConfirmationService struct {
	repo          ConfirmationRepository
	sweeper       *Sweeper
	clock         clock.Clock
	notifier      notify.Notifier
	logger        zerolog.Logger
	cancelTTL     time.Duration
	rescheduleTTL time.Duration
	baseURL       string
}

const defaultManagementTokenTTL = 30 * 24 * time.Hour

type ConfirmationOption func(*ConfirmationService)

// WithCancelTokenTTL overrides the cancel token lifetime.
func WithCancelTokenTTL(d time.Duration) ConfirmationOption {
	return func(s *ConfirmationService) {
		if d > 0 {
			s.cancelTTL = d
		}
	}
}

// WithRescheduleTokenTTL overrides the reschedule token lifetime.
func WithRescheduleTokenTTL(d time.Duration) ConfirmationOption {
	return func(s *ConfirmationService) {
		if d > 0 {
			s.rescheduleTTL = d
		}
	}
}

// WithPublicBaseURL sets the prefix for the management links embedded in the
// confirmation email.
func WithPublicBaseURL(u string) ConfirmationOption {
	return func(s *ConfirmationService) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

func NewConfirmationService(repo ConfirmationRepository, sweeper *Sweeper, clk clock.Clock, notifier notify.Notifier, logger zerolog.Logger, opts ...ConfirmationOption) *ConfirmationService {
	svc := &ConfirmationService{
		repo:          repo,
		sweeper:       sweeper,
		clock:         clk,
		notifier:      notifier,
		logger:        logger,
		cancelTTL:     defaultManagementTokenTTL,
		rescheduleTTL: defaultManagementTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ConfirmInput struct {
	Token string

	Name  string
	Email string
	Phone string

	FormData []byte
	ROIData  []byte

	Now *time.Time
}

type ConfirmResult struct {
	Booking         domain.Booking
	CancelToken     string
	RescheduleToken string

	// Created is false on the idempotent path: the booking was already
	// confirmed by this token and no new tokens or emails are produced.
	Created bool
}

func (s *ConfirmationService) Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error) {
	now := resolveNow(s.clock, in.Now)
	if _, err := s.sweeper.Sweep(ctx, now); err != nil {
		return ConfirmResult{}, err
	}

	var result ConfirmResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tok, err := s.repo.GetTokenByHash(txCtx, token.Hash(in.Token))
		if err != nil {
			return err
		}

		switch err := token.Check(tok, domain.TokenKindSession, now); {
		case err == nil:
		case err == domain.ErrTokenUsed:
			// Double-submits of an already-applied confirmation succeed
			// quietly. A used token on a booking that never confirmed means
			// a prior partial run and must not be retried.
			booking, err := s.repo.GetBookingForUpdate(txCtx, tok.BookingID)
			if err != nil {
				return err
			}
			if booking.Status == domain.BookingStatusConfirmed {
				result = ConfirmResult{Booking: booking, Created: false}
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
		if booking.Status != domain.BookingStatusHeld {
			return domain.ErrTokenInvalid
		}
		if booking.ExpiresAt != nil && !booking.ExpiresAt.After(now) {
			return domain.ErrTokenExpired
		}

		email := strings.ToLower(strings.TrimSpace(in.Email))
		if email == "" {
			return domain.NewInputError("email", "is required")
		}

		booking.Status = domain.BookingStatusConfirmed
		booking.ExpiresAt = nil
		booking.ConfirmedAt = &now
		booking.CustomerName = strings.TrimSpace(in.Name)
		booking.CustomerEmail = email
		booking.CustomerPhone = strings.TrimSpace(in.Phone)
		booking.FormData = in.FormData
		booking.ROIData = in.ROIData

		if err := s.repo.ConfirmBooking(txCtx, booking); err != nil {
			return err
		}
		if err := s.repo.MarkTokenUsed(txCtx, tok.Hash, now); err != nil {
			return err
		}

		cancelRaw, err := token.Generate()
		if err != nil {
			return err
		}
		rescheduleRaw, err := token.Generate()
		if err != nil {
			return err
		}
		if err := s.repo.CreateToken(txCtx, domain.BookingToken{
			Hash:      token.Hash(cancelRaw),
			BookingID: booking.ID,
			Kind:      domain.TokenKindCancel,
			ExpiresAt: now.Add(s.cancelTTL),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.repo.CreateToken(txCtx, domain.BookingToken{
			Hash:      token.Hash(rescheduleRaw),
			BookingID: booking.ID,
			Kind:      domain.TokenKindReschedule,
			ExpiresAt: now.Add(s.rescheduleTTL),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
			BookingID: booking.ID,
			Type:      domain.EventConfirmed,
			Metadata: map[string]any{
				"start_at": booking.StartAt,
				"end_at":   booking.EndAt,
				"timezone": booking.Timezone,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
			BookingID: booking.ID,
			Type:      domain.EventTokensCreated,
			Metadata:  map[string]any{"kinds": []string{string(domain.TokenKindCancel), string(domain.TokenKindReschedule)}},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = ConfirmResult{
			Booking:         booking,
			CancelToken:     cancelRaw,
			RescheduleToken: rescheduleRaw,
			Created:         true,
		}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	if !result.Created {
		return result, nil
	}

	if err := s.dispatchConfirmation(ctx, result, now); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", result.Booking.ID).Msg("confirmation dispatch failed")
		s.recordEmailFailure(ctx, result.Booking.ID, now, err)
		return result, fmt.Errorf("%w: %v", domain.ErrEmailFailed, err)
	}
	return result, nil
}

func (s *ConfirmationService) dispatchConfirmation(ctx context.Context, res ConfirmResult, now time.Time) error {
	b := res.Booking
	return s.notifier.BookingConfirmed(ctx, notify.ConfirmationJob{
		BookingID:     b.ID,
		UID:           b.UID,
		Email:         b.CustomerEmail,
		Name:          b.CustomerName,
		Locale:        b.Locale,
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
		Timezone:      b.Timezone,
		CancelURL:     s.baseURL + "/booking/cancel?token=" + res.CancelToken,
		RescheduleURL: s.baseURL + "/booking/reschedule?token=" + res.RescheduleToken,
		ICS: ics.Render(ics.Event{
			UID:      b.UID,
			Summary:  "Demo appointment",
			StartAt:  b.StartAt,
			EndAt:    b.EndAt,
			Timezone: b.Timezone,
		}, now),
	})
}

func (s *ConfirmationService) recordEmailFailure(ctx context.Context, bookingID string, now time.Time, cause error) {
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
