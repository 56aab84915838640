package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Occupies reports whether an appointment in this status holds its time
// range against new bookings. Cancelled frees the slot; completed is
// terminal and its interval lies in the past.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Timezone  string // IANA zone name, e.g. Europe/Berlin
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	ExpiresAt       *time.Time // set while pending; payment deadline
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime()}
}

// OccupiesAt reports whether the appointment is in the conflict set at
// the given instant. A pending booking whose payment deadline has passed
// no longer holds its slot even before the expiry sweep cancels it.
func (a *Appointment) OccupiesAt(now time.Time) bool {
	if !a.Status.Occupies() {
		return false
	}
	if a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
		return false
	}
	return true
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
