package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medibook/scheduling/internal/config"
	"github.com/medibook/scheduling/internal/metrics"
	redisclient "github.com/medibook/scheduling/internal/redis"
	"github.com/medibook/scheduling/internal/schedule"
)

var bookingTracer = otel.Tracer("medibook.internal.booking")

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

var (
	// ErrDoctorBusy means the reservation never got into the critical
	// section; the caller should retry shortly. Distinct from the
	// slot_taken rejection, which means the range is actually occupied.
	ErrDoctorBusy = errors.New("doctor calendar is busy, please retry")

	ErrAppointmentExpiredState = errors.New("appointment hold has expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAppointmentNotEnded     = errors.New("appointment has not ended yet")
)

// Service is the booking engine surface the HTTP layer calls. Reserve is
// the only path that writes new appointment rows.
type Service struct {
	store     Repository
	schedules schedule.Repository
	locker    redisclient.Locker
	clock     Clock
	validator *Validator
	logger    zerolog.Logger
	metrics   *metrics.BookingMetrics
	cfg       config.Config
}

func NewService(store Repository, schedules schedule.Repository, locker redisclient.Locker, clock Clock, logger zerolog.Logger, m *metrics.BookingMetrics, cfg config.Config) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{
		store:     store,
		schedules: schedules,
		locker:    locker,
		clock:     clock,
		validator: NewValidator(store, schedules, cfg.MaxHorizon, cfg.MaxDuration),
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// Validate is the advisory, read-only pre-flight check. It is safe to
// call any number of times; nothing it reads is locked.
func (s *Service) Validate(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) (Decision, error) {
	doctor, err := s.store.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return Decision{}, err
	}
	return s.validator.Validate(ctx, doctor, start, durationMinutes, s.clock.Now(), excludeID)
}

// Reserve validates and persists a new appointment atomically with
// respect to other Reserve calls for the same doctor. Among racing
// attempts for overlapping intervals exactly one succeeds; the rest get
// the slot_taken rejection. A returned Appointment is durable; a
// returned Rejection means no row was written.
func (s *Service) Reserve(ctx context.Context, doctorID, patientID uuid.UUID, start time.Time, durationMinutes int) (*Appointment, *Rejection, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("medibook.doctor_id", doctorID.String()),
		attribute.String("medibook.patient_id", patientID.String()),
	)

	began := time.Now()
	appt, rejection, err := s.reserve(ctx, doctorID, patientID, start, durationMinutes)
	s.observeReserve(began, rejection, err)

	if err != nil {
		span.RecordError(err)
	}
	return appt, rejection, err
}

func (s *Service) reserve(ctx context.Context, doctorID, patientID uuid.UUID, start time.Time, durationMinutes int) (*Appointment, *Rejection, error) {
	if _, err := s.store.GetPatientByID(ctx, patientID); err != nil {
		return nil, nil, err
	}
	doctor, err := s.store.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}

	var created *Appointment
	var rejection *Rejection

	err = s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		now := s.clock.Now()

		// Free any abandoned holds so the exclusion constraint does not
		// keep a dead pending row in the way.
		expired, err := s.store.CancelExpiredPending(lockCtx, doctorID, now)
		if err != nil {
			return err
		}
		for _, appt := range expired {
			s.logEvent(lockCtx, appt.ID, EventAppointmentExpired, map[string]any{"reason": "reserve_path"})
		}

		// Decide inside the critical section: the read and the insert
		// below form one unit with respect to this doctor.
		decision, err := s.validator.Validate(lockCtx, doctor, start, durationMinutes, now, nil)
		if err != nil {
			return err
		}
		if !decision.Accepted {
			rejection = decision.Rejection
			return nil
		}

		expiresAt := now.Add(s.cfg.AppointmentTTL)
		appt, err := s.store.InsertPending(lockCtx, doctorID, patientID, start.Truncate(time.Minute), durationMinutes, expiresAt)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				r := rejectSlotTaken().Rejection
				rejection = r
				return nil
			}
			return err
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"start_time": appt.StartTime,
			"duration":   durationMinutes,
			"expires_at": expiresAt,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrDoctorBusy
		}
		return nil, nil, err
	}
	if rejection != nil {
		return nil, rejection, nil
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Time("start_time", created.StartTime).
		Msg("appointment reserved")

	return created, nil, nil
}

// Confirm moves a pending appointment to confirmed; called by payment
// settlement. Confirming after the hold expired cancels the row instead.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if appt.Status == StatusPending && appt.ExpiresAt != nil && appt.ExpiresAt.Before(now) {
		if _, updErr := s.store.UpdateStatus(ctx, appt.ID, StatusPending, StatusCancelled); updErr != nil && !errors.Is(updErr, ErrAppointmentNotFound) {
			s.logger.Warn().Err(updErr).Str("appointment_id", appt.ID.String()).Msg("cancel after expired confirm failed")
		}
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{"reason": "confirm_after_expiry"})
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.store.UpdateStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Raced with the expiry sweep.
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// Cancel frees the slot. Allowed from pending or confirmed; terminal
// states never revert.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.store.UpdateStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{"from": string(appt.Status)})
	return updated, nil
}

// Complete marks a confirmed appointment completed once its end time has
// passed; called by the time-based sweep.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}
	if appt.EndTime().After(s.clock.Now()) {
		return nil, ErrAppointmentNotEnded
	}

	updated, err := s.store.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ExpirePendingAppointments cancels abandoned holds; called by the
// expiry worker periodically.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	expired, err := s.store.CancelExpiredPending(ctx, uuid.Nil, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("cancel expired pending appointments: %w", err)
	}

	for _, appt := range expired {
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{"reason": "worker"})
	}
	return len(expired), nil
}

func (s *Service) observeReserve(began time.Time, rejection *Rejection, err error) {
	outcome := "reserved"
	switch {
	case errors.Is(err, ErrDoctorBusy):
		outcome = "busy"
	case err != nil:
		outcome = "error"
	case rejection != nil:
		outcome = string(rejection.Code)
	}
	s.metrics.ObserveReservation(outcome, time.Since(began).Seconds())
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("marshal event payload failed")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log failed")
	}
}
