package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestPgGetWeeklyTemplate(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID := uuid.New()

	mock.ExpectQuery(`SELECT weekday, start_min, end_min`).
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_min", "end_min"}).
			AddRow(1, 9*60, 12*60).
			AddRow(1, 13*60, 17*60).
			AddRow(3, 9*60, 17*60))

	tpl, err := repo.GetWeeklyTemplate(context.Background(), doctorID)
	require.NoError(t, err)

	mon := tpl.Days[time.Monday]
	assert.True(t, mon.Enabled)
	require.Len(t, mon.Windows, 2)
	assert.Equal(t, TimeWindow{Start: 9 * 60, End: 12 * 60}, mon.Windows[0])

	assert.True(t, tpl.Days[time.Wednesday].Enabled)

	// Days without rows come back closed, never missing.
	sun := tpl.Days[time.Sunday]
	assert.False(t, sun.Enabled)
	assert.Empty(t, sun.Windows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSaveWeeklyTemplate_ReplacesInOneTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID := uuid.New()

	tpl := WeeklyTemplate{
		DoctorID: doctorID,
		Days: map[time.Weekday]DaySchedule{
			time.Monday: {Enabled: true, Windows: []TimeWindow{{Start: 9 * 60, End: 17 * 60}}},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM weekly_availability`).
		WithArgs(doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO weekly_availability`).
		WithArgs(doctorID, int(time.Monday), 9*60, 17*60).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, repo.SaveWeeklyTemplate(context.Background(), tpl))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSaveWeeklyTemplate_RejectsInvalid(t *testing.T) {
	repo, _ := newMockRepo(t)

	tpl := WeeklyTemplate{
		DoctorID: uuid.New(),
		Days: map[time.Weekday]DaySchedule{
			time.Monday: {Enabled: true, Windows: []TimeWindow{{Start: 17 * 60, End: 9 * 60}}},
		},
	}
	assert.ErrorIs(t, repo.SaveWeeklyTemplate(context.Background(), tpl), ErrInvalidWindow)
}

func TestPgListBlockedDates(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	lunchStart, lunchEnd := 12*60, 14*60

	mock.ExpectQuery(`SELECT id, doctor_id, on_date, start_min, end_min`).
		WithArgs(doctorID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "on_date", "start_min", "end_min"}).
			AddRow(uuid.New(), doctorID, from.AddDate(0, 0, 2), (*int)(nil), (*int)(nil)).
			AddRow(uuid.New(), doctorID, from.AddDate(0, 0, 3), &lunchStart, &lunchEnd))

	blocks, err := repo.ListBlockedDates(context.Background(), doctorID, from, to)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Nil(t, blocks[0].Window)
	require.NotNil(t, blocks[1].Window)
	assert.Equal(t, TimeWindow{Start: lunchStart, End: lunchEnd}, *blocks[1].Window)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRemoveBlockedDate_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	doctorID, blockID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM blocked_dates`).
		WithArgs(blockID, doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.RemoveBlockedDate(context.Background(), doctorID, blockID)
	assert.ErrorIs(t, err, ErrBlockedNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
