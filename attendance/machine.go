/*
machine.go - Attendance state machine

TRANSITIONS:

  State        | in               | out               | break_start      | break_end
  -------------+------------------+-------------------+------------------+--------------
  CLOCKED_OUT  | -> CLOCKED_IN    | reject            | reject           | reject
  CLOCKED_IN   | reject           | -> CLOCKED_OUT    | -> BREAKING      | reject
  BREAKING     | reject           | -> CLOCKED_OUT *  | reject           | -> CLOCKED_IN

  * the running break is closed at the clock-out time

Apply is pure: it never mutates its input and returns either the next
record or a *TransitionError / *ClockSkewError.
*/
package attendance

import (
	"github.com/warp/attendance-engine/generic"
)

// StateOf derives the state from a record. A missing record is CLOCKED_OUT.
func StateOf(rec *DayRecord) State {
	if rec == nil || rec.Status == "" {
		return StateClockedOut
	}
	return rec.Status
}

// transitionTable lists the accepted (state, event) pairs. Everything else
// is rejected with the reason from rejectionReason.
var transitionTable = map[State]map[EventType]State{
	StateClockedOut: {
		EventIn: StateClockedIn,
	},
	StateClockedIn: {
		EventOut:        StateClockedOut,
		EventBreakStart: StateBreaking,
	},
	StateBreaking: {
		EventOut:      StateClockedOut,
		EventBreakEnd: StateClockedIn,
	},
}

// CanTransition reports whether an event is accepted in a state.
func CanTransition(from State, event EventType) bool {
	_, ok := transitionTable[from][event]
	return ok
}

func rejectionReason(from State, event EventType) string {
	switch from {
	case StateClockedOut:
		return ReasonNotClockedIn
	case StateBreaking:
		if event == EventBreakStart {
			return ReasonAlreadyBreaking
		}
		return ReasonAlreadyClockedIn
	default:
		if event == EventBreakEnd {
			return ReasonNotBreaking
		}
		return ReasonAlreadyClockedIn
	}
}

// Apply folds ev into rec (nil when the work day has no record yet) and
// returns the next record. date is the work day a new record is created on.
func Apply(rec *DayRecord, ev ClockEvent, date generic.Date) (DayRecord, error) {
	if !ev.Type.Valid() {
		return DayRecord{}, &UnknownEventTypeError{Type: string(ev.Type)}
	}

	from := StateOf(rec)
	if !CanTransition(from, ev.Type) {
		return DayRecord{}, &TransitionError{State: from, Event: ev.Type, Reason: rejectionReason(from, ev.Type)}
	}
	if rec != nil && !rec.LastEventAt.IsZero() && ev.At.Before(rec.LastEventAt) {
		return DayRecord{}, &ClockSkewError{StaffID: ev.StaffID, At: ev.At, Last: rec.LastEventAt}
	}

	var next DayRecord
	if rec == nil {
		next = DayRecord{
			StaffID:      ev.StaffID,
			StoreID:      ev.StoreID,
			Date:         date,
			FirstClockIn: ev.At,
		}
	} else {
		next = rec.Clone()
	}

	switch ev.Type {
	case EventIn:
		if rec != nil {
			reenter(&next)
		}
		next.ClockIn = ev.At
		next.ClockOut = nil
		next.Entries++

	case EventBreakStart:
		next.Breaks = append(next.Breaks, BreakInterval{Start: ev.At})

	case EventBreakEnd:
		closeOpenBreak(&next, ev)

	case EventOut:
		closeOpenBreak(&next, ev)
		at := ev.At
		next.ClockOut = &at
		cur := intervalTotals(next.ClockIn, at, next.Breaks)
		next.WorkMinutes = cur.WorkMinutes
		next.BreakMinutes = cur.BreakMinutes
		next.NightMinutes = cur.NightMinutes
	}

	next.Status = transitionTable[from][ev.Type]
	next.LastEventAt = ev.At
	next.Version++
	return next, nil
}

// reenter carries the finished interval into the Previous* counters and
// clears the interval so a new one can open on the same record.
func reenter(rec *DayRecord) {
	rec.PreviousWorkMinutes += rec.WorkMinutes
	rec.PreviousBreakMinutes += rec.BreakMinutes
	rec.PreviousNightMinutes += rec.NightMinutes
	rec.WorkMinutes = 0
	rec.BreakMinutes = 0
	rec.NightMinutes = 0
	rec.Breaks = nil
}

func closeOpenBreak(rec *DayRecord, ev ClockEvent) {
	if n := len(rec.Breaks); n > 0 && rec.Breaks[n-1].IsOpen() {
		at := ev.At
		rec.Breaks[n-1].End = &at
	}
}
