package attendance_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

func TestAggregate_DayShiftWithLunch(t *testing.T) {
	// GIVEN: in 09:00, break 12:00-13:00, out 18:00 JST
	// THEN: 480 work minutes, 60 break minutes, no night minutes

	rec := replay(t,
		event(attendance.EventIn, at(9, 0)),
		event(attendance.EventBreakStart, at(12, 0)),
		event(attendance.EventBreakEnd, at(13, 0)),
		event(attendance.EventOut, at(18, 0)),
	)

	totals := attendance.Aggregate(*rec, at(23, 59))
	assert.Equal(t, 480, totals.WorkMinutes)
	assert.Equal(t, 60, totals.BreakMinutes)
	assert.Equal(t, 0, totals.NightMinutes)
	assert.Equal(t, totals.WorkMinutes, rec.WorkMinutes, "stored totals match the aggregator")
}

func TestAggregate_EveningIntoNight(t *testing.T) {
	// GIVEN: in 20:00, out 23:30 JST, no break
	// THEN: 210 work minutes, 90 of them at night (22:00-23:30)

	rec := replay(t,
		event(attendance.EventIn, at(20, 0)),
		event(attendance.EventOut, at(23, 30)),
	)

	totals := attendance.Aggregate(*rec, at(23, 59))
	assert.Equal(t, 210, totals.WorkMinutes)
	assert.Equal(t, 90, totals.NightMinutes)
}

func TestAggregate_OpenIntervalUsesNow(t *testing.T) {
	// GIVEN: Clocked in at 09:00 and on an open break since 12:00
	// WHEN: Aggregating at 12:45
	// THEN: The open break runs until now

	rec := replay(t,
		event(attendance.EventIn, at(9, 0)),
		event(attendance.EventBreakStart, at(12, 0)),
	)

	totals := attendance.Aggregate(*rec, at(12, 45))
	assert.Equal(t, 180, totals.WorkMinutes)
	assert.Equal(t, 45, totals.BreakMinutes)
}

func TestAggregate_SubMinuteTimestamps(t *testing.T) {
	// GIVEN: 10m10s on the clock with a 50s break
	// THEN: Work is the floor of the exact 9m20s, not 10 - 0

	rec := replay(t,
		event(attendance.EventIn, at(9, 0)),
		event(attendance.EventBreakStart, at(9, 1)),
		event(attendance.EventBreakEnd, at(9, 1).Add(50*time.Second)),
		event(attendance.EventOut, at(9, 10).Add(10*time.Second)),
	)

	totals := attendance.Aggregate(*rec, at(23, 59))
	assert.Equal(t, 9, totals.WorkMinutes)
	assert.Equal(t, 0, totals.BreakMinutes)
	assert.Equal(t, 9, rec.WorkMinutes)
}

func TestAggregate_EmptyRecord(t *testing.T) {
	assert.Equal(t, attendance.Totals{}, attendance.Aggregate(attendance.DayRecord{}, at(12, 0)))
}

func TestAggregate_FinalizedIgnoresNow(t *testing.T) {
	rec := replay(t,
		event(attendance.EventIn, at(21, 0)),
		event(attendance.EventOut, at(23, 0)),
	)
	first := attendance.Aggregate(*rec, at(23, 0))
	for _, now := range []time.Time{at(0, 0), at(23, 30), at(23, 0).Add(72 * time.Hour)} {
		assert.Equal(t, first, attendance.Aggregate(*rec, now))
	}
}

// =============================================================================
// NIGHT MINUTES
// =============================================================================

func TestNightMinutes_Windows(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"entirely day", at(9, 0), at(18, 0), 0},
		{"crosses 22:00", at(21, 30), at(22, 45), 45},
		{"whole night", at(22, 0), at(22, 0).Add(7 * time.Hour), 420},
		{"crosses 05:00", at(4, 30), at(6, 0), 30},
		{"overnight shift", at(18, 0), at(18, 0).Add(12 * time.Hour), 420},
		{"empty interval", at(23, 0), at(23, 0), 0},
		{"reversed interval", at(23, 0), at(22, 0), 0},
		{"partial minutes are floored", at(22, 0), at(22, 0).Add(90 * time.Second), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attendance.NightMinutes(tt.start, tt.end))
		})
	}
}

// bruteForceNight counts minutes one by one.
func bruteForceNight(start, end time.Time) int {
	n := 0
	for m := start; m.Before(end); m = m.Add(time.Minute) {
		if attendance.IsNightHour(m.In(generic.JST).Hour()) {
			n++
		}
	}
	return n
}

func TestNightMinutes_MatchesBruteForce(t *testing.T) {
	// GIVEN: Random minute-aligned intervals up to 30 hours long
	// THEN: Hour stepping equals minute-by-minute counting, and night minutes
	//       never exceed the interval length

	rng := rand.New(rand.NewSource(42))
	base := generic.NewDate(2025, 1, 1).StartOfDay()

	for i := 0; i < 500; i++ {
		start := base.Add(time.Duration(rng.Intn(60*24*30)) * time.Minute)
		end := start.Add(time.Duration(rng.Intn(60*30)) * time.Minute)

		got := attendance.NightMinutes(start, end)
		require.Equal(t, bruteForceNight(start, end), got, "interval %s - %s", start, end)
		require.LessOrEqual(t, got, int(end.Sub(start)/time.Minute))
	}
}

func TestNightMinutes_Deterministic(t *testing.T) {
	start, end := at(19, 17), at(19, 17).Add(11*time.Hour+3*time.Minute)
	first := attendance.NightMinutes(start, end)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, attendance.NightMinutes(start.In(time.UTC), end.In(time.UTC)))
	}
}
