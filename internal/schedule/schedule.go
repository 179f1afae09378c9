// Package schedule computes the quantized appointment grid for a business
// day. All wall-clock values are interpreted in the configured business zone,
// so slot instants stay correct across daylight-saving transitions.
package schedule

import (
	"fmt"
	"time"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Schedule is an immutable description of business hours. It is pure: the
// same inputs always yield the same slots.
type Schedule struct {
	loc          *time.Location
	openMinutes  int
	closeMinutes int
	slotMinutes  int
}

func New(timezone, open, close string, slotMinutes int) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", timezone, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("business open: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("business close: %w", err)
	}
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("slot minutes must be positive, got %d", slotMinutes)
	}
	if openMin+slotMinutes > closeMin {
		return nil, fmt.Errorf("business hours %s-%s cannot fit a %d minute slot", open, close, slotMinutes)
	}
	return &Schedule{
		loc:          loc,
		openMinutes:  openMin,
		closeMinutes: closeMin,
		slotMinutes:  slotMinutes,
	}, nil
}

// Zone returns the IANA name of the business zone.
func (s *Schedule) Zone() string {
	return s.loc.String()
}

// SlotDuration returns the fixed appointment length.
func (s *Schedule) SlotDuration() time.Duration {
	return time.Duration(s.slotMinutes) * time.Minute
}

// Day returns the ordered slot grid for a calendar date. A slot is included
// only when it ends at or before close of business.
func (s *Schedule) Day(date string) ([]domain.Slot, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}

	var slots []domain.Slot
	for mins := s.openMinutes; mins+s.slotMinutes <= s.closeMinutes; mins += s.slotMinutes {
		slots = append(slots, s.slotAt(day, mins))
	}
	return slots, nil
}

// Resolve maps a (date, wall-clock time) pair onto its slot. The time must
// align exactly to the slot grid and fall inside business hours.
func (s *Schedule) Resolve(date, clock string) (domain.Slot, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return domain.Slot{}, err
	}
	mins, err := parseClock(clock)
	if err != nil {
		return domain.Slot{}, domain.NewInputError("time", "must be HH:MM")
	}
	if mins < s.openMinutes || mins+s.slotMinutes > s.closeMinutes {
		return domain.Slot{}, domain.NewInputError("time", "outside business hours")
	}
	if (mins-s.openMinutes)%s.slotMinutes != 0 {
		return domain.Slot{}, domain.NewInputError("time", "not aligned to a slot boundary")
	}
	return s.slotAt(day, mins), nil
}

// InstantAt converts a wall-clock time on a calendar date to the absolute
// instant in the business zone, without any grid alignment check.
func (s *Schedule) InstantAt(date, clock string) (time.Time, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	mins, err := parseClock(clock)
	if err != nil {
		return time.Time{}, domain.NewInputError("time", "must be HH:MM")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, s.loc), nil
}

// DateOf returns the business-zone calendar date of an instant.
func (s *Schedule) DateOf(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}

func (s *Schedule) parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, domain.NewInputError("date", "must be YYYY-MM-DD")
	}
	return day, nil
}

// slotAt builds instants from wall-clock minutes so a 09:00 slot stays 09:00
// local even on a DST transition day.
func (s *Schedule) slotAt(day time.Time, mins int) domain.Slot {
	end := mins + s.slotMinutes
	return domain.Slot{
		StartAt: time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, s.loc),
		EndAt:   time.Date(day.Year(), day.Month(), day.Day(), end/60, end%60, 0, 0, s.loc),
		Label:   fmt.Sprintf("%02d:%02d", mins/60, mins%60),
	}
}

func parseClock(clock string) (int, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
