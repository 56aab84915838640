package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/scheduling/internal/schedule"
)

// maxSlotRange caps one GetAvailableSlots walk; calendar UIs page by
// week or month, never more.
const maxSlotRange = 31 * 24 * time.Hour

// GetAvailableSlots walks the doctor's availability windows between from
// and to in slotDuration steps and returns every bookable interval.
// Recomputed on every call; purely advisory.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, slotDuration time.Duration) ([]Interval, error) {
	if slotDuration <= 0 {
		slotDuration = s.cfg.SlotStep
	}
	if !to.After(from) {
		return nil, fmt.Errorf("invalid range: %s is not before %s", from, to)
	}
	if to.Sub(from) > maxSlotRange {
		to = from.Add(maxSlotRange)
	}

	doctor, err := s.store.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(doctor.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load doctor zone %q: %w", doctor.Timezone, err)
	}

	tpl, err := s.schedules.GetWeeklyTemplate(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: load weekly template: %w", ErrStoreUnavailable, err)
	}
	blocks, err := s.schedules.ListBlockedDates(ctx, doctorID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: load blocked dates: %w", ErrStoreUnavailable, err)
	}
	resolver := schedule.NewResolver(tpl, blocks, loc)

	now := s.clock.Now()
	existing, err := s.store.ListActiveInRange(ctx, doctorID, from.Add(-s.cfg.MaxDuration), to, now)
	if err != nil {
		return nil, err
	}

	var slots []Interval

	// Walk local calendar days; within each day walk the open windows
	// in slot steps, skipping past starts, blocked time and conflicts.
	localFrom := from.In(loc)
	day := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), 0, 0, 0, 0, loc)

	for day.Before(to) {
		state := resolver.DayStateAt(day)
		if state.Enabled && !state.BlockedAllDay {
			for _, w := range state.Windows {
				for startMin := w.Start; startMin+int(slotDuration.Minutes()) <= w.End; startMin += int(slotDuration.Minutes()) {
					slotStart := day.Add(time.Duration(startMin) * time.Minute)
					candidate := NewInterval(slotStart, slotDuration)

					if !slotStart.After(now) || slotStart.Before(from) || candidate.End.After(to) {
						continue
					}
					if _, ok := resolver.FitsWindow(slotStart, slotDuration); !ok {
						continue
					}
					if overlapsAny(candidate, existing, now) {
						continue
					}
					slots = append(slots, candidate)
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return slots, nil
}

func overlapsAny(candidate Interval, existing []Appointment, now time.Time) bool {
	for _, appt := range existing {
		if !appt.OccupiesAt(now) {
			continue
		}
		if candidate.Overlaps(appt.Interval()) {
			return true
		}
	}
	return false
}
