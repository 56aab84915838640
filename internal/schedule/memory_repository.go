package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by unit tests and
// the local simulator mode.
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]WeeklyTemplate
	blocked   map[uuid.UUID][]BlockedDate
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		templates: make(map[uuid.UUID]WeeklyTemplate),
		blocked:   make(map[uuid.UUID][]BlockedDate),
	}
}

func (r *MemoryRepository) GetWeeklyTemplate(_ context.Context, doctorID uuid.UUID) (WeeklyTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[doctorID]
	if !ok {
		tpl = WeeklyTemplate{DoctorID: doctorID, Days: make(map[time.Weekday]DaySchedule, 7)}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			tpl.Days[wd] = DaySchedule{}
		}
	}
	return tpl, nil
}

func (r *MemoryRepository) SaveWeeklyTemplate(_ context.Context, tpl WeeklyTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tpl.DoctorID] = tpl
	return nil
}

func (r *MemoryRepository) EnsureDefaultTemplate(ctx context.Context, doctorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[doctorID]; !ok {
		r.templates[doctorID] = DefaultTemplate(doctorID)
	}
	return nil
}

func (r *MemoryRepository) ListBlockedDates(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Over-inclusion is harmless: the resolver matches blocks to the
	// candidate's local date, so pad a day on each side for zone skew.
	var result []BlockedDate
	for _, b := range r.blocked[doctorID] {
		if b.Date.Before(from.Add(-24*time.Hour)) || b.Date.After(to.Add(24*time.Hour)) {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *MemoryRepository) AddBlockedDate(_ context.Context, b BlockedDate) (BlockedDate, error) {
	if b.Window != nil && !b.Window.Valid() {
		return BlockedDate{}, ErrInvalidWindow
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[b.DoctorID] = append(r.blocked[b.DoctorID], b)
	return b, nil
}

func (r *MemoryRepository) RemoveBlockedDate(_ context.Context, doctorID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	blocks := r.blocked[doctorID]
	for i, b := range blocks {
		if b.ID == id {
			r.blocked[doctorID] = append(blocks[:i], blocks[i+1:]...)
			return nil
		}
	}
	return ErrBlockedNotFound
}
