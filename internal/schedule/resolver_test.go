package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday in the default template's terms.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func defaultResolver(blocks []BlockedDate, loc *time.Location) *Resolver {
	return NewResolver(DefaultTemplate(uuid.New()), blocks, loc)
}

func TestIsAvailable_WindowBoundaries(t *testing.T) {
	r := defaultResolver(nil, time.UTC)

	tests := []struct {
		name    string
		instant time.Time
		want    bool
	}{
		{"window start is inclusive", monday.Add(9 * time.Hour), true},
		{"inside window", monday.Add(13 * time.Hour), true},
		{"window end is exclusive", monday.Add(17 * time.Hour), false},
		{"one minute before end", monday.Add(17*time.Hour - time.Minute), true},
		{"before opening", monday.Add(8*time.Hour + 59*time.Minute), false},
		{"saturday closed", monday.AddDate(0, 0, 5).Add(10 * time.Hour), false},
		{"sunday closed", monday.AddDate(0, 0, 6).Add(10 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsAvailable(tt.instant))
		})
	}
}

func TestIsAvailable_RespectsDoctorZone(t *testing.T) {
	// UTC-5: 13:00 UTC is 08:00 local, before opening.
	est := time.FixedZone("EST", -5*3600)
	r := defaultResolver(nil, est)

	assert.False(t, r.IsAvailable(monday.Add(13*time.Hour)))
	// 14:00 UTC is 09:00 local.
	assert.True(t, r.IsAvailable(monday.Add(14*time.Hour)))
}

func TestIsAvailable_FullDateBlockOverridesTemplate(t *testing.T) {
	blocks := []BlockedDate{{
		ID:       uuid.New(),
		DoctorID: uuid.New(),
		Date:     monday,
	}}
	r := defaultResolver(blocks, time.UTC)

	for hour := 0; hour < 24; hour++ {
		assert.False(t, r.IsAvailable(monday.Add(time.Duration(hour)*time.Hour)),
			"hour %d should be blocked", hour)
	}
	// The next Monday is untouched.
	assert.True(t, r.IsAvailable(monday.AddDate(0, 0, 7).Add(10*time.Hour)))
}

func TestIsAvailable_WindowedBlock(t *testing.T) {
	blocks := []BlockedDate{{
		ID:       uuid.New(),
		Date:     monday,
		Window:   &TimeWindow{Start: 12 * 60, End: 14 * 60},
	}}
	r := defaultResolver(blocks, time.UTC)

	assert.True(t, r.IsAvailable(monday.Add(11*time.Hour)))
	assert.False(t, r.IsAvailable(monday.Add(12*time.Hour)))
	assert.False(t, r.IsAvailable(monday.Add(13*time.Hour)))
	// Block end is exclusive.
	assert.True(t, r.IsAvailable(monday.Add(14*time.Hour)))
}

func TestFitsWindow_MustFitSingleWindow(t *testing.T) {
	r := defaultResolver(nil, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  bool
	}{
		{"fits exactly to closing", monday.Add(16*time.Hour + 30*time.Minute), 30 * time.Minute, true},
		{"runs past closing", monday.Add(16*time.Hour + 31*time.Minute), 30 * time.Minute, false},
		{"starts before opening", monday.Add(8*time.Hour + 45*time.Minute), 30 * time.Minute, false},
		{"whole day closed", monday.AddDate(0, 0, 5).Add(10 * time.Hour), 30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := r.FitsWindow(tt.start, tt.dur)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFitsWindow_SplitDayDoesNotBridgeWindows(t *testing.T) {
	doctorID := uuid.New()
	tpl := DefaultTemplate(doctorID)
	tpl.Days[time.Monday] = DaySchedule{
		Enabled: true,
		Windows: []TimeWindow{
			{Start: 9 * 60, End: 12 * 60},
			{Start: 13 * 60, End: 17 * 60},
		},
	}
	r := NewResolver(tpl, nil, time.UTC)

	// 11:30 + 60m spans the lunch gap even though both halves are open.
	_, ok := r.FitsWindow(monday.Add(11*time.Hour+30*time.Minute), time.Hour)
	assert.False(t, ok)

	_, ok = r.FitsWindow(monday.Add(13*time.Hour), time.Hour)
	assert.True(t, ok)
}

func TestFitsWindow_ReportsDayState(t *testing.T) {
	r := defaultResolver(nil, time.UTC)

	sunday := monday.AddDate(0, 0, 6).Add(10 * time.Hour)
	state, ok := r.FitsWindow(sunday, 30*time.Minute)
	assert.False(t, ok)
	assert.Equal(t, time.Sunday, state.Weekday)
	assert.False(t, state.Enabled)
	assert.Empty(t, state.Windows)
}

func TestTemplateValidate(t *testing.T) {
	doctorID := uuid.New()

	tpl := DefaultTemplate(doctorID)
	require.NoError(t, tpl.Validate())

	overlap := DefaultTemplate(doctorID)
	overlap.Days[time.Monday] = DaySchedule{
		Enabled: true,
		Windows: []TimeWindow{
			{Start: 9 * 60, End: 12 * 60},
			{Start: 11 * 60, End: 17 * 60},
		},
	}
	assert.ErrorIs(t, overlap.Validate(), ErrWindowsOverlap)

	disabled := DefaultTemplate(doctorID)
	disabled.Days[time.Monday] = DaySchedule{
		Enabled: false,
		Windows: []TimeWindow{{Start: 9 * 60, End: 12 * 60}},
	}
	assert.Error(t, disabled.Validate())

	inverted := DefaultTemplate(doctorID)
	inverted.Days[time.Monday] = DaySchedule{
		Enabled: true,
		Windows: []TimeWindow{{Start: 12 * 60, End: 9 * 60}},
	}
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidWindow)
}

func TestParseMinute(t *testing.T) {
	m, err := ParseMinute("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, m)
	assert.Equal(t, "09:30", FormatMinute(m))

	_, err = ParseMinute("25:00")
	assert.Error(t, err)
	_, err = ParseMinute("bogus")
	assert.Error(t, err)
}
