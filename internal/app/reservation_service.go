package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/schedule"
	"github.com/jmmolins87/NeuronIA-sub001/internal/token"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateBooking(ctx context.Context, booking domain.Booking) error
	CreateToken(ctx context.Context, tok domain.BookingToken) error
}

// ReservationService turns a (date, time) request into a held booking. It is
// the only path that creates booking rows. Double-booking is prevented by
// the storage layer's uniqueness guarantee on live start instants, not by a
// pre-check.
type ReservationService struct {
	repo       ReservationRepository
	sweeper    *Sweeper
	sched      *schedule.Schedule
	clock      clock.Clock
	holdTTL    time.Duration
	sessionTTL time.Duration
}

const (
	defaultHoldTTL    = 15 * time.Minute
	defaultSessionTTL = 30 * time.Minute
)

type ReservationOption func(*ReservationService)

// WithHoldTTL overrides how long a hold keeps its slot before expiring.
func WithHoldTTL(d time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithSessionTokenTTL overrides the session token lifetime.
func WithSessionTokenTTL(d time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

func NewReservationService(repo ReservationRepository, sweeper *Sweeper, sched *schedule.Schedule, clk clock.Clock, opts ...ReservationOption) *ReservationService {
	svc := &ReservationService{
		repo:       repo,
		sweeper:    sweeper,
		sched:      sched,
		clock:      clk,
		holdTTL:    defaultHoldTTL,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReserveInput struct {
	Date     string
	Time     string
	Timezone string
	Locale   string
	Now      *time.Time
}

type ReserveResult struct {
	Booking      domain.Booking
	SessionToken string
}

func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	if in.Timezone != s.sched.Zone() {
		return ReserveResult{}, domain.NewInputError("timezone", "must be "+s.sched.Zone())
	}

	now := resolveNow(s.clock, in.Now)
	if _, err := s.sweeper.Sweep(ctx, now); err != nil {
		return ReserveResult{}, err
	}

	slot, err := s.sched.Resolve(in.Date, in.Time)
	if err != nil {
		return ReserveResult{}, err
	}
	if !slot.StartAt.After(now) {
		return ReserveResult{}, domain.NewInputError("time", "is in the past")
	}

	raw, err := token.Generate()
	if err != nil {
		return ReserveResult{}, err
	}

	expiresAt := now.Add(s.holdTTL)
	booking := domain.Booking{
		ID:        uuid.NewString(),
		UID:       uuid.NewString(),
		StartAt:   slot.StartAt,
		EndAt:     slot.EndAt,
		Timezone:  s.sched.Zone(),
		Status:    domain.BookingStatusHeld,
		ExpiresAt: &expiresAt,
		Locale:    in.Locale,
		CreatedAt: now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateBooking(txCtx, booking); err != nil {
			return err
		}
		return s.repo.CreateToken(txCtx, domain.BookingToken{
			Hash:      token.Hash(raw),
			BookingID: booking.ID,
			Kind:      domain.TokenKindSession,
			ExpiresAt: now.Add(s.sessionTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return ReserveResult{}, err
	}

	return ReserveResult{Booking: booking, SessionToken: raw}, nil
}
