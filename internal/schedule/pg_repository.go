package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibook/scheduling/internal/db"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_min, end_min
		FROM weekly_availability
		WHERE doctor_id = $1
		ORDER BY weekday, start_min
	`, doctorID)
	if err != nil {
		return WeeklyTemplate{}, fmt.Errorf("query weekly availability: %w", err)
	}
	defer rows.Close()

	tpl := WeeklyTemplate{
		DoctorID: doctorID,
		Days:     make(map[time.Weekday]DaySchedule, 7),
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		tpl.Days[wd] = DaySchedule{}
	}

	for rows.Next() {
		var weekday, startMin, endMin int
		if err := rows.Scan(&weekday, &startMin, &endMin); err != nil {
			return WeeklyTemplate{}, fmt.Errorf("scan weekly availability: %w", err)
		}
		wd := time.Weekday(weekday)
		day := tpl.Days[wd]
		day.Enabled = true
		day.Windows = append(day.Windows, TimeWindow{Start: startMin, End: endMin})
		tpl.Days[wd] = day
	}
	if err := rows.Err(); err != nil {
		return WeeklyTemplate{}, fmt.Errorf("read weekly availability: %w", err)
	}

	return tpl, nil
}

// SaveWeeklyTemplate replaces every window row for the doctor in one
// transaction.
func (r *PgRepository) SaveWeeklyTemplate(ctx context.Context, tpl WeeklyTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save template: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		DELETE FROM weekly_availability WHERE doctor_id = $1
	`, tpl.DoctorID); err != nil {
		return fmt.Errorf("clear weekly availability: %w", err)
	}

	for wd, day := range tpl.Days {
		if !day.Enabled {
			continue
		}
		for _, w := range day.Windows {
			if _, err := tx.Exec(ctx, `
				INSERT INTO weekly_availability (doctor_id, weekday, start_min, end_min)
				VALUES ($1, $2, $3, $4)
			`, tpl.DoctorID, int(wd), w.Start, w.End); err != nil {
				return fmt.Errorf("insert weekly availability: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save template: %w", err)
	}
	return nil
}

func (r *PgRepository) EnsureDefaultTemplate(ctx context.Context, doctorID uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM weekly_availability WHERE doctor_id = $1)
	`, doctorID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check weekly availability: %w", err)
	}
	if exists {
		return nil
	}
	return r.SaveWeeklyTemplate(ctx, DefaultTemplate(doctorID))
}

func (r *PgRepository) ListBlockedDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, on_date, start_min, end_min
		FROM blocked_dates
		WHERE doctor_id = $1 AND on_date BETWEEN $2 AND $3
		ORDER BY on_date
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query blocked dates: %w", err)
	}
	defer rows.Close()

	var result []BlockedDate
	for rows.Next() {
		b, err := scanBlockedDate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read blocked dates: %w", err)
	}
	return result, nil
}

func (r *PgRepository) AddBlockedDate(ctx context.Context, b BlockedDate) (BlockedDate, error) {
	if b.Window != nil && !b.Window.Valid() {
		return BlockedDate{}, ErrInvalidWindow
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	var startMin, endMin *int
	if b.Window != nil {
		startMin = &b.Window.Start
		endMin = &b.Window.End
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_dates (id, doctor_id, on_date, start_min, end_min)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, doctor_id, on_date, start_min, end_min
	`, b.ID, b.DoctorID, b.Date, startMin, endMin)

	saved, err := scanBlockedDate(row)
	if err != nil {
		return BlockedDate{}, err
	}
	return *saved, nil
}

func (r *PgRepository) RemoveBlockedDate(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_dates WHERE id = $1 AND doctor_id = $2
	`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete blocked date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedNotFound
	}
	return nil
}

func scanBlockedDate(row pgx.Row) (*BlockedDate, error) {
	var b BlockedDate
	var startMin, endMin *int

	err := row.Scan(&b.ID, &b.DoctorID, &b.Date, &startMin, &endMin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockedNotFound
		}
		return nil, fmt.Errorf("scan blocked date: %w", err)
	}

	if startMin != nil && endMin != nil {
		b.Window = &TimeWindow{Start: *startMin, End: *endMin}
	}
	return &b, nil
}
