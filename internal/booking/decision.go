package booking

import (
	"fmt"
	"time"

	"github.com/medibook/scheduling/internal/schedule"
)

// RejectionCode enumerates the user-correctable reasons a booking is
// refused. These are values, never errors; store failures travel
// separately as ErrStoreUnavailable.
type RejectionCode string

const (
	CodeInThePast           RejectionCode = "in_the_past"
	CodeTooFarInFuture      RejectionCode = "too_far_in_future"
	CodeOutsideAvailability RejectionCode = "outside_availability"
	CodeSlotTaken           RejectionCode = "slot_taken"
)

// Rejection carries the first violated rule plus enough context for the
// caller to render a specific message.
type Rejection struct {
	Code    RejectionCode
	Message string

	// Set for outside_availability: the resolved local-day state.
	Weekday       *time.Weekday
	Windows       []schedule.TimeWindow
	BlockedAllDay bool
}

// Decision is the outcome of validating a candidate booking. Accepted
// implies a nil Rejection.
type Decision struct {
	Accepted  bool
	Rejection *Rejection
}

func accept() Decision {
	return Decision{Accepted: true}
}

func rejectInThePast() Decision {
	return Decision{Rejection: &Rejection{
		Code:    CodeInThePast,
		Message: "appointment start must be in the future",
	}}
}

func rejectTooFarInFuture(maxHorizon time.Duration) Decision {
	days := int(maxHorizon.Hours() / 24)
	return Decision{Rejection: &Rejection{
		Code:    CodeTooFarInFuture,
		Message: fmt.Sprintf("appointments can be booked at most %d days ahead", days),
	}}
}

func rejectOutsideAvailability(state schedule.DayState) Decision {
	msg := fmt.Sprintf("doctor is not available on %s", state.Weekday)
	switch {
	case state.BlockedAllDay:
		msg = fmt.Sprintf("doctor has blocked this %s", state.Weekday)
	case state.Enabled:
		msg = fmt.Sprintf("requested time is outside the doctor's %s hours", state.Weekday)
	}

	wd := state.Weekday
	return Decision{Rejection: &Rejection{
		Code:          CodeOutsideAvailability,
		Message:       msg,
		Weekday:       &wd,
		Windows:       state.Windows,
		BlockedAllDay: state.BlockedAllDay,
	}}
}

func rejectSlotTaken() Decision {
	return Decision{Rejection: &Rejection{
		Code:    CodeSlotTaken,
		Message: "this time was just booked, pick another slot",
	}}
}
