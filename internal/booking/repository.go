package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by InsertPending when the store's
	// exclusion guarantee fires; the service reports it as the
	// slot_taken rejection, never as a system error.
	ErrSlotTaken = errors.New("time range already booked")

	// ErrStoreUnavailable wraps infrastructure failures so callers can
	// retry or surface a 5xx instead of misreading them as conflicts.
	ErrStoreUnavailable = errors.New("booking store unavailable")
)

// Repository contains all DB interactions needed by the booking engine.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveInRange returns the doctor's appointments in the
	// conflict set whose start_time falls in [from, to): pending (not
	// expired relative to now) and confirmed rows.
	ListActiveInRange(ctx context.Context, doctorID uuid.UUID, from, to, now time.Time) ([]Appointment, error)

	// InsertPending writes the appointment row. The implementation must
	// enforce the per-doctor non-overlap guarantee and return
	// ErrSlotTaken when it would be violated.
	InsertPending(ctx context.Context, doctorID, patientID uuid.UUID, start time.Time, durationMinutes int, expiresAt time.Time) (*Appointment, error)

	// UpdateStatus transitions id from one status to another,
	// compare-and-set style; ErrAppointmentNotFound when the row is not
	// in the expected prior status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// CancelExpiredPending cancels pending rows whose expires_at has
	// passed; doctorID narrows the sweep, uuid.Nil sweeps every doctor.
	CancelExpiredPending(ctx context.Context, doctorID uuid.UUID, now time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
