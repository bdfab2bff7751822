package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// DAY RESOLVER
// =============================================================================

func TestDayResolver_Midnight(t *testing.T) {
	r := generic.NewDayResolver(generic.BoundaryMidnight, 0)

	tests := []struct {
		name string
		at   time.Time
		want generic.Date
	}{
		{"midnight JST starts the day", time.Date(2025, 3, 10, 0, 0, 0, 0, generic.JST), generic.NewDate(2025, 3, 10)},
		{"last second JST", time.Date(2025, 3, 10, 23, 59, 59, 0, generic.JST), generic.NewDate(2025, 3, 10)},
		{"UTC evening is next JST day", time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC), generic.NewDate(2025, 3, 11)},
		{"UTC 14:59 is still same JST day", time.Date(2025, 3, 10, 14, 59, 0, 0, time.UTC), generic.NewDate(2025, 3, 10)},
		{"year rollover", time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC), generic.NewDate(2025, 1, 1)},
		{"before epoch", time.Date(1969, 12, 31, 23, 0, 0, 0, generic.JST), generic.NewDate(1969, 12, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.WorkDay(tt.at))
		})
	}
}

func TestDayResolver_EarlyMorning(t *testing.T) {
	// GIVEN: A 04:00 cutoff
	// WHEN: Resolving instants around the cutoff
	// THEN: Instants before 04:00 JST belong to the previous date

	r := generic.NewDayResolver(generic.BoundaryEarlyMorning, 4)

	assert.Equal(t, generic.NewDate(2025, 3, 9), r.WorkDay(time.Date(2025, 3, 10, 3, 59, 0, 0, generic.JST)))
	assert.Equal(t, generic.NewDate(2025, 3, 10), r.WorkDay(time.Date(2025, 3, 10, 4, 0, 0, 0, generic.JST)))
	assert.Equal(t, generic.NewDate(2025, 3, 10), r.WorkDay(time.Date(2025, 3, 10, 23, 30, 0, 0, generic.JST)))
	assert.Equal(t, generic.NewDate(2025, 2, 28), r.WorkDay(time.Date(2025, 3, 1, 1, 0, 0, 0, generic.JST)))
}

func TestDayResolver_InvalidCutoffFallsBackToDefault(t *testing.T) {
	r := generic.NewDayResolver(generic.BoundaryEarlyMorning, 0)
	assert.Equal(t, generic.NewDate(2025, 3, 9), r.WorkDay(time.Date(2025, 3, 10, 3, 0, 0, 0, generic.JST)))
	assert.Equal(t, time.Date(2025, 3, 10, 4, 0, 0, 0, generic.JST), r.DayStart(generic.NewDate(2025, 3, 10)))
}

func TestDayResolver_Deterministic(t *testing.T) {
	// GIVEN: The same instant expressed in different zones
	// THEN: Every expression resolves to the same work day

	r := generic.NewDayResolver(generic.BoundaryEarlyMorning, 4)
	instant := time.Date(2025, 7, 1, 18, 30, 0, 0, time.UTC) // 03:30 JST on July 2
	ny := time.FixedZone("EST", -5*3600)

	want := generic.NewDate(2025, 7, 1)
	assert.Equal(t, want, r.WorkDay(instant))
	assert.Equal(t, want, r.WorkDay(instant.In(generic.JST)))
	assert.Equal(t, want, r.WorkDay(instant.In(ny)))
}

func TestParseDayBoundary(t *testing.T) {
	b, err := generic.ParseDayBoundary("early_morning")
	require.NoError(t, err)
	assert.Equal(t, generic.BoundaryEarlyMorning, b)

	_, err = generic.ParseDayBoundary("")
	assert.Error(t, err)
	_, err = generic.ParseDayBoundary("noon")
	assert.Error(t, err)
}

// =============================================================================
// DATES, CLOCK TIMES, PERIODS
// =============================================================================

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := generic.ParseDate("2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", d.String())
	assert.Equal(t, generic.NewDate(2025, 3, 1), d.AddDays(1))
	assert.True(t, d.Before(d.AddDays(1)))

	_, err = generic.ParseDate("28/02/2025")
	assert.Error(t, err)
}

func TestDate_AtIsJST(t *testing.T) {
	at := generic.NewDate(2025, 3, 10).At(9, 0)
	assert.True(t, at.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestClockTime_Parse(t *testing.T) {
	c, err := generic.ParseClockTime("18:30")
	require.NoError(t, err)
	assert.Equal(t, generic.ClockTime{Hour: 18, Minute: 30}, c)
	assert.Equal(t, "18:30", c.String())
	assert.Equal(t, 18*60+30, c.MinutesOfDay())

	_, err = generic.ParseClockTime("25:00")
	assert.Error(t, err)
}

func TestMonth_Period(t *testing.T) {
	m, err := generic.ParseMonth("2024-02")
	require.NoError(t, err)

	p := m.Period()
	assert.Equal(t, generic.NewDate(2024, 2, 1), p.Start)
	assert.Equal(t, generic.NewDate(2024, 2, 29), p.End)
	assert.Len(t, p.Days(), 29)
	assert.Equal(t, m, generic.MonthOf(p.End))

	dec, err := generic.ParseMonth("2024-12")
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2024, 12, 31), dec.Period().End)
}

func TestPeriod_Validate(t *testing.T) {
	p := generic.Period{Start: generic.NewDate(2025, 3, 2), End: generic.NewDate(2025, 3, 1)}
	assert.ErrorIs(t, p.Validate(), generic.ErrInvalidPeriod)
	assert.False(t, p.Contains(generic.NewDate(2025, 3, 1)))
}

// =============================================================================
// MONEY
// =============================================================================

func TestPayForMinutes(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		rate    string
		mult    string
		want    string
	}{
		{"eight hours at 1000", 480, "1000", "1", "8000"},
		{"night differential", 90, "1200", "0.25", "450"},
		{"overtime 75 min at 1.25x", 75, "1500", "1.25", "2343.75"},
		{"fractional rounds to 2 places", 1, "1000", "1", "16.67"},
		{"zero minutes", 0, "1000", "1", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generic.PayForMinutes(tt.minutes, decimal.RequireFromString(tt.rate), decimal.RequireFromString(tt.mult))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type failingCalendar struct{}

func (failingCalendar) IsHoliday(context.Context, generic.Date) (bool, error) {
	return false, errors.New("calendar unavailable")
}

func TestIsHolidayOrFalse(t *testing.T) {
	ctx := context.Background()
	day := generic.NewDate(2025, 1, 1)
	cal := generic.NewStaticCalendar(generic.Holiday{Date: day, Name: "New Year"})

	holiday, failed := generic.IsHolidayOrFalse(ctx, cal, day)
	assert.True(t, holiday)
	assert.False(t, failed)

	holiday, failed = generic.IsHolidayOrFalse(ctx, failingCalendar{}, day)
	assert.False(t, holiday, "lookup failure is treated as a working day")
	assert.True(t, failed)

	holiday, failed = generic.IsHolidayOrFalse(ctx, nil, day)
	assert.False(t, holiday)
	assert.False(t, failed)
}

func TestStaticCalendar_CRUD(t *testing.T) {
	ctx := context.Background()
	cal := generic.NewStaticCalendar()

	require.NoError(t, cal.SaveHoliday(ctx, generic.Holiday{Date: generic.NewDate(2025, 5, 5), Name: "Children's Day"}))
	require.NoError(t, cal.SaveHoliday(ctx, generic.Holiday{Date: generic.NewDate(2025, 1, 1), Name: "New Year"}))
	require.NoError(t, cal.SaveHoliday(ctx, generic.Holiday{Date: generic.NewDate(2024, 1, 1), Name: "New Year"}))

	list, err := cal.ListHolidays(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, generic.NewDate(2025, 1, 1), list[0].Date)

	require.NoError(t, cal.DeleteHoliday(ctx, generic.NewDate(2025, 1, 1)))
	assert.ErrorIs(t, cal.DeleteHoliday(ctx, generic.NewDate(2025, 1, 1)), generic.ErrHolidayNotFound)
}
