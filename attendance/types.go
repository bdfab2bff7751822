/*
Package attendance turns clock events into per-day presence records.

PURPOSE:
  Staff clock in, take breaks and clock out. Each of those actions is an
  immutable ClockEvent appended to a per-staff log. The state machine in
  this package validates every event against the staff member's current
  state and folds it into the DayRecord of the logical work day.

KEY CONCEPTS IN THIS FILE (types.go):
  - EventType: closed set of clock actions (in, out, break_start, break_end)
  - State: CLOCKED_OUT, CLOCKED_IN, BREAKING
  - ClockEvent: one immutable log entry
  - DayRecord: the per-staff, per-work-day aggregate of intervals

DAY RECORD LIFECYCLE:
  1. First "in" of a work day creates the record (CLOCKED_IN)
  2. break_start/break_end open and close break intervals
  3. "out" finalizes the current interval (CLOCKED_OUT)
  4. Another "in" on the same work day re-enters: the finished interval's
     minutes move into Previous* counters and a new interval opens

SEE ALSO:
  - machine.go: Transition table
  - aggregate.go: Minutes computation
  - recorder.go: Serialised, transactional event recording
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// EVENT TYPE - Closed enumeration
// =============================================================================

type EventType string

const (
	EventIn         EventType = "in"
	EventOut        EventType = "out"
	EventBreakStart EventType = "break_start"
	EventBreakEnd   EventType = "break_end"
)

// EventTypes lists every accepted event type.
var EventTypes = []EventType{EventIn, EventOut, EventBreakStart, EventBreakEnd}

// ParseEventType rejects anything outside the known set.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventIn, EventOut, EventBreakStart, EventBreakEnd:
		return EventType(s), nil
	default:
		return "", &UnknownEventTypeError{Type: s}
	}
}

func (t EventType) Valid() bool {
	_, err := ParseEventType(string(t))
	return err == nil
}

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateClockedOut State = "CLOCKED_OUT"
	StateClockedIn  State = "CLOCKED_IN"
	StateBreaking   State = "BREAKING"
)

// States lists every state of the machine.
var States = []State{StateClockedOut, StateClockedIn, StateBreaking}

// =============================================================================
// CLOCK EVENT - Immutable log entry
// =============================================================================

type ClockEvent struct {
	ID             generic.EventID
	StaffID        generic.StaffID
	StoreID        generic.StoreID
	Type           EventType
	At             time.Time
	WorkDate       generic.Date // DayRecord the event was folded into
	IdempotencyKey string
	RecordedAt     time.Time
}

// =============================================================================
// DAY RECORD
// =============================================================================

// BreakInterval is a break within the current interval. End is nil while
// the break is still running.
type BreakInterval struct {
	Start time.Time
	End   *time.Time
}

func (b BreakInterval) IsOpen() bool { return b.End == nil }

// DayRecord aggregates one staff member's presence on one work day.
//
// INVARIANT: total worked minutes = PreviousWorkMinutes + minutes of the
// current [ClockIn, ClockOut] interval. The Previous* counters only grow,
// and only on re-entry.
type DayRecord struct {
	StaffID generic.StaffID
	StoreID generic.StoreID
	Date    generic.Date

	FirstClockIn time.Time  // first "in" of the day; never reset
	ClockIn      time.Time  // start of the current interval
	ClockOut     *time.Time // nil while the current interval is open
	Breaks       []BreakInterval
	Status       State

	// Minutes of the current interval, written when it is finalized.
	WorkMinutes  int
	BreakMinutes int
	NightMinutes int

	// Minutes carried forward from earlier intervals on the same day.
	PreviousWorkMinutes  int
	PreviousBreakMinutes int
	PreviousNightMinutes int

	Entries     int // number of clock-ins folded into this record
	LastEventAt time.Time
	Version     int64
}

// IsFinalized reports whether the record has no open interval.
func (r DayRecord) IsFinalized() bool {
	return r.Status == StateClockedOut && r.ClockOut != nil
}

// OpenBreak returns the running break, if any.
func (r DayRecord) OpenBreak() (BreakInterval, bool) {
	if n := len(r.Breaks); n > 0 && r.Breaks[n-1].IsOpen() {
		return r.Breaks[n-1], true
	}
	return BreakInterval{}, false
}

// Clone returns a deep copy so transitions never alias a stored record.
func (r DayRecord) Clone() DayRecord {
	out := r
	if r.ClockOut != nil {
		t := *r.ClockOut
		out.ClockOut = &t
	}
	if r.Breaks != nil {
		out.Breaks = make([]BreakInterval, len(r.Breaks))
		for i, b := range r.Breaks {
			out.Breaks[i] = BreakInterval{Start: b.Start}
			if b.End != nil {
				e := *b.End
				out.Breaks[i].End = &e
			}
		}
	}
	return out
}

func (r DayRecord) String() string {
	return fmt.Sprintf("%s@%s[%s]", r.StaffID, r.Date, r.Status)
}

// CurrentState is the derived presence of a staff member right now.
type CurrentState struct {
	StaffID        generic.StaffID
	State          State
	Date           generic.Date // work day of the governing record (zero if none)
	LastClockIn    *time.Time
	LastBreakStart *time.Time
}

// DaySummary is the aggregated view of one work day.
type DaySummary struct {
	StaffID        generic.StaffID
	Date           generic.Date
	State          State
	WorkMinutes    int
	BreakMinutes   int
	NightMinutes   int
	IsHoliday      bool
	HolidayUnknown bool // holiday lookup failed; IsHoliday defaulted to false
}
