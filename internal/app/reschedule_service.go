package app

import (
	"context"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/schedule"
	"github.com/jmmolins87/NeuronIA-sub001/internal/token"
)

type RescheduleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTokenByHash(ctx context.Context, hash string) (domain.BookingToken, error)
	GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error)
	RescheduleBooking(ctx context.Context, id string, startAt, endAt, rescheduledAt time.Time) error
	MarkTokenUsed(ctx context.Context, hash string, usedAt time.Time) error
	CreateToken(ctx context.Context, tok domain.BookingToken) error
	AppendEvent(ctx context.Context, event domain.BookingEvent) error
}

// RescheduleService moves a confirmed booking to a new slot. Reschedule
// tokens are strictly single-use; a second use fails instead of succeeding
// idempotently. Re-issuing a fresh token on success is configurable and off
// by default.
type RescheduleService struct {
	repo    RescheduleRepository
	sweeper *Sweeper
	sched   *schedule.Schedule
	clock   clock.Clock

	cutoff        string
	reissue       bool
	rescheduleTTL time.Duration
}

const defaultSameDayCutoff = "12:00"

type RescheduleOption func(*RescheduleService)

// WithSameDayCutoff sets the business-zone wall-clock deadline after which
// same-day changes are refused.
func WithSameDayCutoff(clock string) RescheduleOption {
	return func(s *RescheduleService) {
		if clock != "" {
			s.cutoff = clock
		}
	}
}

// WithTokenReissue mints a replacement reschedule token on success.
func WithTokenReissue(ttl time.Duration) RescheduleOption {
	return func(s *RescheduleService) {
		s.reissue = true
		if ttl > 0 {
			s.rescheduleTTL = ttl
		}
	}
}

func NewRescheduleService(repo RescheduleRepository, sweeper *Sweeper, sched *schedule.Schedule, clk clock.Clock, opts ...RescheduleOption) *RescheduleService {
	svc := &RescheduleService{
		repo:          repo,
		sweeper:       sweeper,
		sched:         sched,
		clock:         clk,
		cutoff:        defaultSameDayCutoff,
		rescheduleTTL: defaultManagementTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type RescheduleInput struct {
	Token string
	Date  string
	Time  string
	Now   *time.Time
}

type RescheduleResult struct {
	Booking domain.Booking

	// RescheduleToken is a fresh capability, only set when re-issuance is
	// enabled.
	RescheduleToken string
}

func (s *RescheduleService) Reschedule(ctx context.Context, in RescheduleInput) (RescheduleResult, error) {
	now := resolveNow(s.clock, in.Now)
	if _, err := s.sweeper.Sweep(ctx, now); err != nil {
		return RescheduleResult{}, err
	}

	var result RescheduleResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tok, err := s.repo.GetTokenByHash(txCtx, token.Hash(in.Token))
		if err != nil {
			return err
		}
		if err := token.Check(tok, domain.TokenKindReschedule, now); err != nil {
			if err == domain.ErrTokenUsed {
				return domain.ErrTokenInvalid
			}
			return err
		}

		booking, err := s.repo.GetBookingForUpdate(txCtx, tok.BookingID)
		if err != nil {
			return err
		}
		if booking.Status != domain.BookingStatusConfirmed {
			return domain.ErrTokenInvalid
		}

		slot, err := s.sched.Resolve(in.Date, in.Time)
		if err != nil {
			return err
		}
		if !slot.StartAt.After(now) {
			return domain.NewInputError("time", "is in the past")
		}
		if err := s.checkCutoff(slot.StartAt, now); err != nil {
			return err
		}

		fromStart, fromEnd := booking.StartAt, booking.EndAt
		if err := s.repo.RescheduleBooking(txCtx, booking.ID, slot.StartAt, slot.EndAt, now); err != nil {
			return err
		}
		if err := s.repo.MarkTokenUsed(txCtx, tok.Hash, now); err != nil {
			return err
		}
		if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
			BookingID: booking.ID,
			Type:      domain.EventRescheduled,
			Metadata: map[string]any{
				"from_start_at": fromStart,
				"from_end_at":   fromEnd,
				"to_start_at":   slot.StartAt,
				"to_end_at":     slot.EndAt,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		booking.StartAt = slot.StartAt
		booking.EndAt = slot.EndAt
		booking.RescheduledAt = &now
		result = RescheduleResult{Booking: booking}

		if s.reissue {
			raw, err := token.Generate()
			if err != nil {
				return err
			}
			if err := s.repo.CreateToken(txCtx, domain.BookingToken{
				Hash:      token.Hash(raw),
				BookingID: booking.ID,
				Kind:      domain.TokenKindReschedule,
				ExpiresAt: now.Add(s.rescheduleTTL),
				CreatedAt: now,
			}); err != nil {
				return err
			}
			if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
				BookingID: booking.ID,
				Type:      domain.EventTokensCreated,
				Metadata:  map[string]any{"kinds": []string{string(domain.TokenKindReschedule)}},
				CreatedAt: now,
			}); err != nil {
				return err
			}
			result.RescheduleToken = raw
		}
		return nil
	})
	if err != nil {
		return RescheduleResult{}, err
	}
	return result, nil
}

// checkCutoff refuses same-day changes once the business-zone wall clock
// passes the configured deadline.
func (s *RescheduleService) checkCutoff(newStart, now time.Time) error {
	today := s.sched.DateOf(now)
	if s.sched.DateOf(newStart) != today {
		return nil
	}
	cutoffAt, err := s.sched.InstantAt(today, s.cutoff)
	if err != nil {
		return err
	}
	if !now.Before(cutoffAt) {
		return domain.ErrSameDayCutoff
	}
	return nil
}
