package schedule

import "time"

// DayState is the resolved availability context for one local date. It
// rides along with rejections so callers can render "doctor not
// available on Monday" with the actual windows.
type DayState struct {
	Weekday       time.Weekday
	Enabled       bool
	Windows       []TimeWindow
	BlockedAllDay bool
}

// Resolver answers availability questions for one doctor from an
// explicit template, blocked-date overrides and the doctor's zone.
// Pure reads, no side effects.
type Resolver struct {
	tpl    WeeklyTemplate
	blocks []BlockedDate
	loc    *time.Location
}

func NewResolver(tpl WeeklyTemplate, blocks []BlockedDate, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{tpl: tpl, blocks: blocks, loc: loc}
}

// IsAvailable reports whether a single instant falls inside an open
// window after applying overrides. Window start is inclusive, end
// exclusive.
func (r *Resolver) IsAvailable(instant time.Time) bool {
	local := instant.In(r.loc)
	minute := local.Hour()*60 + local.Minute()

	state := r.dayState(local)
	if !state.Enabled || state.BlockedAllDay {
		return false
	}

	inWindow := false
	for _, w := range state.Windows {
		if w.Contains(minute) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return false
	}

	year, month, day := local.Date()
	for _, b := range r.blocks {
		if b.Window != nil && b.SameDate(year, month, day) && b.Window.Contains(minute) {
			return false
		}
	}
	return true
}

// FitsWindow reports whether the whole interval starting at start with
// the given duration fits inside a single open window on a single local
// day, with no blocked override touching it. The returned DayState
// describes the local date regardless of the outcome.
func (r *Resolver) FitsWindow(start time.Time, duration time.Duration) (DayState, bool) {
	local := start.In(r.loc)
	state := r.dayState(local)

	startMin := local.Hour()*60 + local.Minute()
	endMin := startMin + int(duration.Minutes())

	if !state.Enabled || state.BlockedAllDay {
		return state, false
	}
	if endMin > minutesPerDay {
		// Runs past local midnight; no window can hold it.
		return state, false
	}

	fits := false
	for _, w := range state.Windows {
		if w.ContainsRange(startMin, endMin) {
			fits = true
			break
		}
	}
	if !fits {
		return state, false
	}

	year, month, day := local.Date()
	for _, b := range r.blocks {
		if b.Window != nil && b.SameDate(year, month, day) && b.Window.OverlapsRange(startMin, endMin) {
			return state, false
		}
	}
	return state, true
}

// Location exposes the doctor's zone for callers walking calendar days.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// DayStateAt resolves the availability context of the local date
// containing the instant.
func (r *Resolver) DayStateAt(instant time.Time) DayState {
	return r.dayState(instant.In(r.loc))
}

func (r *Resolver) dayState(local time.Time) DayState {
	day := r.tpl.Days[local.Weekday()]
	state := DayState{
		Weekday: local.Weekday(),
		Enabled: day.Enabled,
		Windows: day.Windows,
	}

	year, month, d := local.Date()
	for _, b := range r.blocks {
		if b.Window == nil && b.SameDate(year, month, d) {
			state.BlockedAllDay = true
			break
		}
	}
	return state
}
