package attendance

import (
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// NIGHT WINDOW - 22:00 to 05:00 JST
// =============================================================================

const (
	NightStartHour = 22
	NightEndHour   = 5
)

// IsNightHour reports whether a JST clock hour falls in [22:00, 05:00).
func IsNightHour(hour int) bool {
	return hour >= NightStartHour || hour < NightEndHour
}

// Totals is the aggregated minute breakdown of a day record.
type Totals struct {
	WorkMinutes  int
	BreakMinutes int
	NightMinutes int
}

// Aggregate computes the minute totals of a record.
//
// now is only consulted for an interval or break that is still open, so a
// finalized record aggregates to the same Totals regardless of now.
func Aggregate(rec DayRecord, now time.Time) Totals {
	if rec.ClockIn.IsZero() {
		return Totals{}
	}
	end := now
	if rec.ClockOut != nil {
		end = *rec.ClockOut
	}
	if end.Before(rec.ClockIn) {
		end = rec.ClockIn
	}

	cur := intervalTotals(rec.ClockIn, end, rec.Breaks)
	return Totals{
		WorkMinutes:  cur.WorkMinutes + rec.PreviousWorkMinutes,
		BreakMinutes: cur.BreakMinutes + rec.PreviousBreakMinutes,
		NightMinutes: cur.NightMinutes + rec.PreviousNightMinutes,
	}
}

// intervalTotals aggregates a single [start, end] interval with its breaks.
// Open breaks run until end.
func intervalTotals(start, end time.Time, breaks []BreakInterval) Totals {
	var breakDur time.Duration
	for _, b := range breaks {
		bEnd := end
		if b.End != nil {
			bEnd = *b.End
		}
		if bEnd.After(b.Start) {
			breakDur += bEnd.Sub(b.Start)
		}
	}

	return Totals{
		WorkMinutes:  wholeMinutes(end.Sub(start) - breakDur),
		BreakMinutes: wholeMinutes(breakDur),
		NightMinutes: NightMinutes(start, end),
	}
}

// NightMinutes walks [start, end) in clock-hour-aligned steps. A step
// counts in full when its JST start hour is a night hour; the final step
// is clipped to end.
//
// Stepping by hour (rather than intersecting with a single window) handles
// the night window wrapping past midnight and shifts that only partially
// overlap a boundary hour.
func NightMinutes(start, end time.Time) int {
	var night time.Duration
	for cursor := start; cursor.Before(end); {
		// JST is a whole-hour offset, so UTC hour truncation is JST-aligned.
		next := cursor.Truncate(time.Hour).Add(time.Hour)
		if next.After(end) {
			next = end
		}
		if IsNightHour(cursor.In(generic.JST).Hour()) {
			night += next.Sub(cursor)
		}
		cursor = next
	}
	return wholeMinutes(night)
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
