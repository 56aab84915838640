package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const minutesPerDay = 24 * 60

var (
	ErrInvalidWindow   = errors.New("invalid time window")
	ErrWindowsOverlap  = errors.New("windows within a day must not overlap")
	ErrBlockedNotFound = errors.New("blocked date not found")
)

// TimeWindow is a half-open [Start, End) time-of-day range expressed in
// minutes since local midnight. A window ending at 17:00 does not
// include 17:00, so a booking ending exactly at 17:00 still fits.
type TimeWindow struct {
	Start int
	End   int
}

func (w TimeWindow) Valid() bool {
	return w.Start >= 0 && w.End <= minutesPerDay && w.Start < w.End
}

// Contains reports whether the minute-of-day falls inside the window.
func (w TimeWindow) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// ContainsRange reports whether [start, end) fits entirely inside the window.
func (w TimeWindow) ContainsRange(start, end int) bool {
	return start >= w.Start && end <= w.End
}

// OverlapsRange is the half-open overlap test against [start, end).
func (w TimeWindow) OverlapsRange(start, end int) bool {
	return w.Start < end && start < w.End
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s-%s", FormatMinute(w.Start), FormatMinute(w.End))
}

// FormatMinute renders a minute-of-day as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinute parses HH:MM into a minute-of-day.
func ParseMinute(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || h*60+m > minutesPerDay {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return h*60 + m, nil
}

// DaySchedule is the availability of one weekday. A disabled day carries
// no windows.
type DaySchedule struct {
	Enabled bool
	Windows []TimeWindow // sorted by Start, non-overlapping
}

// WeeklyTemplate is a doctor's static weekly availability.
type WeeklyTemplate struct {
	DoctorID uuid.UUID
	Days     map[time.Weekday]DaySchedule
}

// DefaultTemplate is assigned when a doctor registers: Mon-Fri
// 09:00-17:00, weekend closed.
func DefaultTemplate(doctorID uuid.UUID) WeeklyTemplate {
	days := make(map[time.Weekday]DaySchedule, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd == time.Saturday || wd == time.Sunday {
			days[wd] = DaySchedule{}
			continue
		}
		days[wd] = DaySchedule{
			Enabled: true,
			Windows: []TimeWindow{{Start: 9 * 60, End: 17 * 60}},
		}
	}
	return WeeklyTemplate{DoctorID: doctorID, Days: days}
}

// Validate checks window bounds, ordering and the disabled-day invariant.
func (t WeeklyTemplate) Validate() error {
	for wd, day := range t.Days {
		if !day.Enabled {
			if len(day.Windows) != 0 {
				return fmt.Errorf("%s: disabled day must have no windows", wd)
			}
			continue
		}
		prevEnd := -1
		for _, w := range day.Windows {
			if !w.Valid() {
				return fmt.Errorf("%s window %s: %w", wd, w, ErrInvalidWindow)
			}
			if w.Start < prevEnd {
				return fmt.Errorf("%s window %s: %w", wd, w, ErrWindowsOverlap)
			}
			prevEnd = w.End
		}
	}
	return nil
}

// BlockedDate subtracts availability for one calendar date. A nil Window
// blocks the entire date.
type BlockedDate struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Date     time.Time // calendar date; only year/month/day are meaningful
	Window   *TimeWindow
}

// SameDate reports whether the block applies to the given local date.
func (b BlockedDate) SameDate(year int, month time.Month, day int) bool {
	by, bm, bd := b.Date.Date()
	return by == year && bm == month && bd == day
}
