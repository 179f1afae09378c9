package app

import (
	"context"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/clock"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
	"github.com/jmmolins87/NeuronIA-sub001/internal/schedule"
)

type AvailabilityRepository interface {
	ListLiveStarts(ctx context.Context, from, to, now time.Time) ([]time.Time, error)
}

// AvailabilityService computes the full-day slot list tagged with occupancy.
// A slot is unavailable while a confirmed booking or an unexpired hold owns
// its start instant.
type AvailabilityService struct {
	repo    AvailabilityRepository
	sweeper *Sweeper
	sched   *schedule.Schedule
	clock   clock.Clock
}

func NewAvailabilityService(repo AvailabilityRepository, sweeper *Sweeper, sched *schedule.Schedule, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{
		repo:    repo,
		sweeper: sweeper,
		sched:   sched,
		clock:   clk,
	}
}

type DayInput struct {
	Date string
	Now  *time.Time
}

func (s *AvailabilityService) Day(ctx context.Context, in DayInput) ([]domain.SlotAvailability, error) {
	now := resolveNow(s.clock, in.Now)

	slots, err := s.sched.Day(in.Date)
	if err != nil {
		return nil, err
	}
	// ISO dates compare lexicographically.
	if in.Date < s.sched.DateOf(now) {
		return nil, domain.NewInputError("date", "is in the past")
	}

	if _, err := s.sweeper.Sweep(ctx, now); err != nil {
		return nil, err
	}

	taken, err := s.repo.ListLiveStarts(ctx, slots[0].StartAt, slots[len(slots)-1].EndAt, now)
	if err != nil {
		return nil, err
	}
	occupied := make(map[int64]struct{}, len(taken))
	for _, t := range taken {
		occupied[t.Unix()] = struct{}{}
	}

	out := make([]domain.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		_, busy := occupied[slot.StartAt.Unix()]
		out = append(out, domain.SlotAvailability{Slot: slot, Available: !busy})
	}
	return out, nil
}
