package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/scheduling/internal/schedule"
)

// Monday noon; candidates default to the following Tuesday morning.
var (
	testNow       = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tuesdayTen    = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	testHorizon   = 90 * 24 * time.Hour
	testMaxLength = 4 * time.Hour
)

type validatorEnv struct {
	store     *MemoryRepository
	schedules *schedule.MemoryRepository
	validator *Validator
	doctor    Doctor
	patient   Patient
}

func newValidatorEnv(t *testing.T) *validatorEnv {
	t.Helper()

	store := NewMemoryRepository()
	schedules := schedule.NewMemoryRepository()

	doctor := Doctor{ID: uuid.New(), Name: "Dr. Reese", Timezone: "UTC"}
	patient := Patient{ID: uuid.New(), Name: "Sam Ode"}
	store.AddDoctor(doctor)
	store.AddPatient(patient)

	require.NoError(t, schedules.SaveWeeklyTemplate(context.Background(), schedule.DefaultTemplate(doctor.ID)))

	return &validatorEnv{
		store:     store,
		schedules: schedules,
		validator: NewValidator(store, schedules, testHorizon, testMaxLength),
		doctor:    doctor,
		patient:   patient,
	}
}

func (e *validatorEnv) validate(t *testing.T, start time.Time, durationMinutes int) Decision {
	t.Helper()
	d, err := e.validator.Validate(context.Background(), &e.doctor, start, durationMinutes, testNow, nil)
	require.NoError(t, err)
	return d
}

func requireRejected(t *testing.T, d Decision, code RejectionCode) {
	t.Helper()
	require.False(t, d.Accepted)
	require.NotNil(t, d.Rejection)
	assert.Equal(t, code, d.Rejection.Code)
	assert.NotEmpty(t, d.Rejection.Message)
}

func TestValidate_Accepts(t *testing.T) {
	env := newValidatorEnv(t)

	d := env.validate(t, tuesdayTen, 30)
	assert.True(t, d.Accepted)
	assert.Nil(t, d.Rejection)
}

func TestValidate_InThePast(t *testing.T) {
	env := newValidatorEnv(t)

	requireRejected(t, env.validate(t, testNow.Add(-time.Hour), 30), CodeInThePast)
	// Starting exactly now is still too late.
	requireRejected(t, env.validate(t, testNow, 30), CodeInThePast)
}

func TestValidate_PastCheckRunsFirst(t *testing.T) {
	env := newValidatorEnv(t)

	// A past Sunday is both in the past and outside availability; the
	// past rejection wins.
	pastSunday := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	requireRejected(t, env.validate(t, pastSunday, 30), CodeInThePast)
}

func TestValidate_HorizonBoundaryInclusive(t *testing.T) {
	env := newValidatorEnv(t)

	// Open every day so only the horizon rule is in play.
	allOpen := schedule.WeeklyTemplate{DoctorID: env.doctor.ID, Days: make(map[time.Weekday]schedule.DaySchedule, 7)}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		allOpen.Days[wd] = schedule.DaySchedule{
			Enabled: true,
			Windows: []schedule.TimeWindow{{Start: 0, End: 24 * 60}},
		}
	}
	require.NoError(t, env.schedules.SaveWeeklyTemplate(context.Background(), allOpen))

	boundary := testNow.Add(testHorizon)
	assert.True(t, env.validate(t, boundary, 30).Accepted)

	requireRejected(t, env.validate(t, boundary.Add(time.Minute), 30), CodeTooFarInFuture)
}

func TestValidate_OutsideAvailability(t *testing.T) {
	env := newValidatorEnv(t)

	// Next Sunday is closed under the default template.
	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	d := env.validate(t, sunday, 30)
	requireRejected(t, d, CodeOutsideAvailability)
	require.NotNil(t, d.Rejection.Weekday)
	assert.Equal(t, time.Sunday, *d.Rejection.Weekday)
	assert.Empty(t, d.Rejection.Windows)

	// Inside an open day but past closing.
	requireRejected(t, env.validate(t, tuesdayTen.Add(7*time.Hour), 30), CodeOutsideAvailability)
}

func TestValidate_BlockedDate(t *testing.T) {
	env := newValidatorEnv(t)

	_, err := env.schedules.AddBlockedDate(context.Background(), schedule.BlockedDate{
		DoctorID: env.doctor.ID,
		Date:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	d := env.validate(t, tuesdayTen, 30)
	requireRejected(t, d, CodeOutsideAvailability)
	assert.True(t, d.Rejection.BlockedAllDay)
}

func TestValidate_SlotTaken(t *testing.T) {
	env := newValidatorEnv(t)

	_, err := env.store.InsertPending(context.Background(), env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(15*time.Minute))
	require.NoError(t, err)

	requireRejected(t, env.validate(t, tuesdayTen, 30), CodeSlotTaken)
	requireRejected(t, env.validate(t, tuesdayTen.Add(15*time.Minute), 30), CodeSlotTaken)

	// Back to back is fine.
	assert.True(t, env.validate(t, tuesdayTen.Add(30*time.Minute), 30).Accepted)
	assert.True(t, env.validate(t, tuesdayTen.Add(-30*time.Minute), 30).Accepted)
}

func TestValidate_ExpiredPendingDoesNotConflict(t *testing.T) {
	env := newValidatorEnv(t)

	_, err := env.store.InsertPending(context.Background(), env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(-time.Minute))
	require.NoError(t, err)

	assert.True(t, env.validate(t, tuesdayTen, 30).Accepted)
}

func TestValidate_ExcludeSelfOnEdit(t *testing.T) {
	env := newValidatorEnv(t)

	appt, err := env.store.InsertPending(context.Background(), env.doctor.ID, env.patient.ID, tuesdayTen, 30, testNow.Add(15*time.Minute))
	require.NoError(t, err)

	requireRejected(t, env.validate(t, tuesdayTen, 30), CodeSlotTaken)

	d, err := env.validator.Validate(context.Background(), &env.doctor, tuesdayTen, 30, testNow, &appt.ID)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestValidate_DurationErrors(t *testing.T) {
	env := newValidatorEnv(t)

	_, err := env.validator.Validate(context.Background(), &env.doctor, tuesdayTen, 0, testNow, nil)
	assert.Error(t, err)

	_, err = env.validator.Validate(context.Background(), &env.doctor, tuesdayTen, -30, testNow, nil)
	assert.Error(t, err)

	_, err = env.validator.Validate(context.Background(), &env.doctor, tuesdayTen, int(testMaxLength.Minutes())+1, testNow, nil)
	assert.Error(t, err)
}

func TestValidate_BadDoctorZone(t *testing.T) {
	env := newValidatorEnv(t)
	env.doctor.Timezone = "Mars/Olympus_Mons"

	_, err := env.validator.Validate(context.Background(), &env.doctor, tuesdayTen, 30, testNow, nil)
	assert.Error(t, err)
}
