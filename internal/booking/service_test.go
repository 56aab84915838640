package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/scheduling/internal/config"
	redisclient "github.com/medibook/scheduling/internal/redis"
	"github.com/medibook/scheduling/internal/schedule"
)

func testConfig() config.Config {
	return config.Config{
		MaxHorizon:     testHorizon,
		MaxDuration:    testMaxLength,
		SlotStep:       30 * time.Minute,
		AppointmentTTL: 15 * time.Minute,
		LockTTL:        5 * time.Second,
		LockWait:       2 * time.Second,
	}
}

type serviceEnv struct {
	svc     *Service
	store   *MemoryRepository
	doctor  Doctor
	patient Patient
}

func newServiceEnv(t *testing.T, clock Clock) *serviceEnv {
	t.Helper()

	store := NewMemoryRepository()
	schedules := schedule.NewMemoryRepository()

	doctor := Doctor{ID: uuid.New(), Name: "Dr. Imani", Timezone: "UTC"}
	patient := Patient{ID: uuid.New(), Name: "Noor Vale"}
	store.AddDoctor(doctor)
	store.AddPatient(patient)
	require.NoError(t, schedules.SaveWeeklyTemplate(context.Background(), schedule.DefaultTemplate(doctor.ID)))

	svc := NewService(store, schedules, redisclient.NewLocalLocker(), clock, zerolog.Nop(), nil, testConfig())

	return &serviceEnv{svc: svc, store: store, doctor: doctor, patient: patient}
}

func TestReserve_CreatesPendingHold(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})

	appt, rejection, err := env.svc.Reserve(context.Background(), env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)
	require.Nil(t, rejection)
	require.NotNil(t, appt)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, tuesdayTen, appt.StartTime)
	assert.Equal(t, 30, appt.DurationMinutes)
	require.NotNil(t, appt.ExpiresAt)
	assert.Equal(t, testNow.Add(15*time.Minute), *appt.ExpiresAt)
}

func TestReserve_RejectionWritesNothing(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})

	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	appt, rejection, err := env.svc.Reserve(context.Background(), env.doctor.ID, env.patient.ID, sunday, 30)
	require.NoError(t, err)
	assert.Nil(t, appt)
	require.NotNil(t, rejection)
	assert.Equal(t, CodeOutsideAvailability, rejection.Code)

	assert.Empty(t, env.store.Appointments())
}

func TestReserve_UnknownParticipants(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})

	_, _, err := env.svc.Reserve(context.Background(), uuid.New(), env.patient.ID, tuesdayTen, 30)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, _, err = env.svc.Reserve(context.Background(), env.doctor.ID, uuid.New(), tuesdayTen, 30)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestReserve_SecondAttemptLoses(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	_, rejection, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)
	require.Nil(t, rejection)

	// Partial overlap loses too.
	_, rejection, err = env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen.Add(15*time.Minute), 30)
	require.NoError(t, err)
	require.NotNil(t, rejection)
	assert.Equal(t, CodeSlotTaken, rejection.Code)

	// Back to back wins.
	appt, rejection, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen.Add(30*time.Minute), 30)
	require.NoError(t, err)
	require.Nil(t, rejection)
	require.NotNil(t, appt)
}

func TestReserve_ConcurrentRaceHasOneWinner(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		won       int
		slotTaken int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt, rejection, err := env.svc.Reserve(context.Background(), env.doctor.ID, env.patient.ID, tuesdayTen, 30)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case appt != nil:
				won++
			case rejection != nil && rejection.Code == CodeSlotTaken:
				slotTaken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, slotTaken)

	live := 0
	for _, a := range env.store.Appointments() {
		if a.Status.Occupies() {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestReserve_FreesExpiredHoldFirst(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	stale, err := env.store.InsertPending(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(-time.Minute))
	require.NoError(t, err)

	appt, rejection, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)
	require.Nil(t, rejection)
	require.NotNil(t, appt)

	old, err := env.store.GetAppointmentByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, old.Status)
}

func TestConfirm(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	appt, _, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)

	confirmed, err := env.svc.Confirm(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	// Confirming twice is a no-op violation.
	_, err = env.svc.Confirm(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestConfirm_AfterExpiryCancels(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	appt, err := env.store.InsertPending(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(-time.Minute))
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentExpiredState)

	got, err := env.store.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCancel_FreesTheSlot(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	appt, _, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// The slot is immediately bookable again.
	again, rejection, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)
	require.Nil(t, rejection)
	require.NotNil(t, again)

	// Cancellation is terminal.
	_, err = env.svc.Cancel(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestComplete(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	appt, _, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30)
	require.NoError(t, err)
	_, err = env.svc.Confirm(ctx, appt.ID)
	require.NoError(t, err)

	// Still in the future on the service clock.
	_, err = env.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotEnded)

	// Same store, clock moved past the end time.
	later := NewService(env.store, schedule.NewMemoryRepository(), redisclient.NewLocalLocker(),
		FixedClock{Instant: tuesdayTen.Add(30 * time.Minute)}, zerolog.Nop(), nil, testConfig())

	completed, err := later.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	// Pending appointments never complete directly.
	pending, _, err := env.svc.Reserve(ctx, env.doctor.ID, env.patient.ID, tuesdayTen.Add(time.Hour), 30)
	require.NoError(t, err)
	_, err = later.Complete(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestExpirePendingAppointments(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	expired1, err := env.store.InsertPending(ctx, env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(-2*time.Minute))
	require.NoError(t, err)
	expired2, err := env.store.InsertPending(ctx, env.doctor.ID, env.patient.ID, tuesdayTen.Add(time.Hour), 30, testNow.Add(-time.Minute))
	require.NoError(t, err)
	live, err := env.store.InsertPending(ctx, env.doctor.ID, env.patient.ID, tuesdayTen.Add(2*time.Hour), 30, testNow.Add(10*time.Minute))
	require.NoError(t, err)

	n, err := env.svc.ExpirePendingAppointments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uuid.UUID{expired1.ID, expired2.ID} {
		got, err := env.store.GetAppointmentByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	}
	got, err := env.store.GetAppointmentByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	// Nothing left to expire.
	n, err = env.svc.ExpirePendingAppointments(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateService_DelegatesAndReads(t *testing.T) {
	env := newServiceEnv(t, FixedClock{Instant: testNow})
	ctx := context.Background()

	d, err := env.svc.Validate(ctx, env.doctor.ID, tuesdayTen, 30, nil)
	require.NoError(t, err)
	assert.True(t, d.Accepted)

	// Advisory only: repeated calls write nothing.
	_, err = env.svc.Validate(ctx, env.doctor.ID, tuesdayTen, 30, nil)
	require.NoError(t, err)
	assert.Empty(t, env.store.Appointments())

	_, err = env.svc.Validate(ctx, uuid.New(), tuesdayTen, 30, nil)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
