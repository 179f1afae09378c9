package app

import (
	"context"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

type SweeperRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ExpireOverdueHolds(ctx context.Context, now time.Time) ([]string, error)
	AppendEvent(ctx context.Context, event domain.BookingEvent) error
}

// Sweeper transitions overdue holds to expired. It runs as the first step of
// every read and write path so stale holds vacate their slot before any
// occupancy decision.
type Sweeper struct {
	repo SweeperRepository
}

func NewSweeper(repo SweeperRepository) *Sweeper {
	return &Sweeper{repo: repo}
}

// Sweep is idempotent; it returns how many holds were expired. Each swept
// booking gets an EXPIRED audit event in the same transaction.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	var swept int
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ids, err := s.repo.ExpireOverdueHolds(txCtx, now)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := s.repo.AppendEvent(txCtx, domain.BookingEvent{
				BookingID: id,
				Type:      domain.EventExpired,
				Metadata:  map[string]any{"expired_at": now},
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		swept = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}
