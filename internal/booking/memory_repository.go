package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for unit tests and the
// simulator's offline mode. InsertPending enforces the same per-doctor
// exclusion guarantee the Postgres constraint provides.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) AddDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListActiveInRange(_ context.Context, doctorID uuid.UUID, from, to, now time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.OccupiesAt(now) {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (r *MemoryRepository) InsertPending(_ context.Context, doctorID, patientID uuid.UUID, start time.Time, durationMinutes int, expiresAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := NewInterval(start, time.Duration(durationMinutes)*time.Minute)
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.Status.Occupies() {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			return nil, ErrSlotTaken
		}
	}

	now := time.Now()
	exp := expiresAt
	appt := Appointment{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		PatientID:       patientID,
		StartTime:       start,
		DurationMinutes: durationMinutes,
		Status:          StatusPending,
		ExpiresAt:       &exp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) CancelExpiredPending(_ context.Context, doctorID uuid.UUID, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for id, a := range r.appointments {
		if a.Status != StatusPending || a.ExpiresAt == nil || !a.ExpiresAt.Before(now) {
			continue
		}
		if doctorID != uuid.Nil && a.DoctorID != doctorID {
			continue
		}
		a.Status = StatusCancelled
		a.UpdatedAt = time.Now()
		r.appointments[id] = a
		result = append(result, a)
	}
	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Appointments snapshots every stored appointment; test helper.
func (r *MemoryRepository) Appointments() []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Appointment, 0, len(r.appointments))
	for _, a := range r.appointments {
		result = append(result, a)
	}
	return result
}
