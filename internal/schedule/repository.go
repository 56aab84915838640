package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository loads and mutates per-doctor schedule configuration.
type Repository interface {
	GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error)
	SaveWeeklyTemplate(ctx context.Context, tpl WeeklyTemplate) error
	EnsureDefaultTemplate(ctx context.Context, doctorID uuid.UUID) error

	// ListBlockedDates returns overrides whose date falls in [from, to].
	ListBlockedDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]BlockedDate, error)
	AddBlockedDate(ctx context.Context, b BlockedDate) (BlockedDate, error)
	RemoveBlockedDate(ctx context.Context, doctorID, id uuid.UUID) error
}
