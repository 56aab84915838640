package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/scheduling/internal/schedule"
)

// Validator decides whether a candidate booking is acceptable. It owns
// no state and performs no writes, so it can be called speculatively any
// number of times. Checks run in a fixed order and the first failure
// wins; the cheap pure checks run before anything touches the store.
type Validator struct {
	store       Repository
	schedules   schedule.Repository
	maxHorizon  time.Duration
	maxDuration time.Duration
}

func NewValidator(store Repository, schedules schedule.Repository, maxHorizon, maxDuration time.Duration) *Validator {
	return &Validator{
		store:       store,
		schedules:   schedules,
		maxHorizon:  maxHorizon,
		maxDuration: maxDuration,
	}
}

// Validate runs the ordered rule chain for one candidate:
//  1. start must be strictly in the future
//  2. start must not exceed now+maxHorizon (boundary itself accepted)
//  3. the whole interval must fit an open availability window
//  4. the interval must not overlap any live appointment
//
// excludeID skips one appointment in the conflict check so an edit can
// be re-validated against its own current time.
func (v *Validator) Validate(ctx context.Context, doctor *Doctor, start time.Time, durationMinutes int, now time.Time, excludeID *uuid.UUID) (Decision, error) {
	if durationMinutes <= 0 {
		return Decision{}, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	duration := time.Duration(durationMinutes) * time.Minute
	if duration > v.maxDuration {
		return Decision{}, fmt.Errorf("duration %s exceeds maximum %s", duration, v.maxDuration)
	}

	start = start.Truncate(time.Minute)

	if !start.After(now) {
		return rejectInThePast(), nil
	}
	if start.After(now.Add(v.maxHorizon)) {
		return rejectTooFarInFuture(v.maxHorizon), nil
	}

	resolver, err := v.resolverFor(ctx, doctor, start)
	if err != nil {
		return Decision{}, err
	}

	state, ok := resolver.FitsWindow(start, duration)
	if !ok {
		return rejectOutsideAvailability(state), nil
	}

	conflict, err := v.hasConflict(ctx, doctor.ID, NewInterval(start, duration), now, excludeID)
	if err != nil {
		return Decision{}, err
	}
	if conflict {
		return rejectSlotTaken(), nil
	}

	return accept(), nil
}

// hasConflict tests the candidate against live appointments whose start
// falls in [candidate.Start - maxDuration, candidate.End), a bounded
// window rather than a full scan. The overlap test itself runs in memory.
func (v *Validator) hasConflict(ctx context.Context, doctorID uuid.UUID, candidate Interval, now time.Time, excludeID *uuid.UUID) (bool, error) {
	from := candidate.Start.Add(-v.maxDuration)
	existing, err := v.store.ListActiveInRange(ctx, doctorID, from, candidate.End, now)
	if err != nil {
		return false, err
	}

	for _, appt := range existing {
		if excludeID != nil && appt.ID == *excludeID {
			continue
		}
		if candidate.Overlaps(appt.Interval()) {
			return true, nil
		}
	}
	return false, nil
}

// resolverFor loads the doctor's template and the blocked dates around
// the candidate date into a pure Resolver.
func (v *Validator) resolverFor(ctx context.Context, doctor *Doctor, around time.Time) (*schedule.Resolver, error) {
	loc, err := time.LoadLocation(doctor.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load doctor zone %q: %w", doctor.Timezone, err)
	}

	tpl, err := v.schedules.GetWeeklyTemplate(ctx, doctor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load weekly template: %w", ErrStoreUnavailable, err)
	}

	// Pad a day on each side so zone offsets cannot hide an override.
	blocks, err := v.schedules.ListBlockedDates(ctx, doctor.ID, around.AddDate(0, 0, -1), around.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: load blocked dates: %w", ErrStoreUnavailable, err)
	}

	return schedule.NewResolver(tpl, blocks, loc), nil
}
