package attendance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// DefaultFutureTolerance is how far ahead of the server clock an event
// timestamp may be before it is treated as clock skew.
const DefaultFutureTolerance = 2 * time.Minute

// DefaultMaxShiftLength bounds how long after its clock-in an open record
// from the previous work day still accepts events.
const DefaultMaxShiftLength = 16 * time.Hour

// EventInput is a request to record one clock event. At defaults to now.
type EventInput struct {
	StaffID        generic.StaffID
	StoreID        generic.StoreID
	Type           EventType
	At             *time.Time
	IdempotencyKey string
}

// Recorder is the entry point for clock events and presence queries.
//
// Recording is serialised per staff member and runs inside a store
// transaction, so two near-simultaneous events for the same staff cannot
// both be accepted against the same state.
type Recorder struct {
	Store           TxStore
	Resolver        generic.DayResolver
	Holidays        generic.HolidayCalendar
	FutureTolerance time.Duration
	MaxShiftLength  time.Duration
	Now             func() time.Time
	Logger          *slog.Logger

	locksOnce sync.Once
	locks     *keyedMutex
}

func NewRecorder(store TxStore, resolver generic.DayResolver, holidays generic.HolidayCalendar) *Recorder {
	if holidays == nil {
		holidays = generic.NoHolidays{}
	}
	return &Recorder{
		Store:           store,
		Resolver:        resolver,
		Holidays:        holidays,
		FutureTolerance: DefaultFutureTolerance,
		MaxShiftLength:  DefaultMaxShiftLength,
		Now:             time.Now,
		Logger:          slog.Default(),
	}
}

// RecordEvent validates the event against the staff member's current state
// and, if accepted, appends it and returns the updated DayRecord. Rejected
// events leave both the log and the day record untouched.
func (r *Recorder) RecordEvent(ctx context.Context, in EventInput) (DayRecord, error) {
	if err := validateInput(in); err != nil {
		return DayRecord{}, err
	}

	now := r.now()
	at := now
	if in.At != nil {
		at = *in.At
		if at.After(now.Add(r.FutureTolerance)) {
			return DayRecord{}, &ClockSkewError{StaffID: in.StaffID, At: at, Last: now, Future: true}
		}
	}

	unlock := r.staffLocks().Lock(in.StaffID)
	defer unlock()

	ev := ClockEvent{
		StaffID:        in.StaffID,
		StoreID:        in.StoreID,
		Type:           in.Type,
		At:             at,
		IdempotencyKey: in.IdempotencyKey,
	}

	var result DayRecord
	err := r.Store.WithTx(ctx, func(tx Store) error {
		ledger := NewLedger(tx)
		if err := ledger.Check(ctx, ev); err != nil {
			return err
		}

		day := r.Resolver.WorkDay(at)
		rec, err := r.governingRecord(ctx, tx, in.StaffID, day, at, in.Type != EventIn)
		if err != nil {
			return err
		}

		next, err := Apply(rec, ev, day)
		if err != nil {
			return err
		}

		ev.WorkDate = next.Date
		if _, err := ledger.Append(ctx, ev); err != nil {
			return err
		}
		if err := tx.SaveDayRecord(ctx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		r.logger().Debug("clock event rejected",
			"staffId", in.StaffID, "type", in.Type, "at", at, "err", err)
		return DayRecord{}, err
	}

	r.logger().Info("clock event recorded",
		"staffId", in.StaffID, "type", in.Type, "workDate", result.Date.String(), "state", result.Status)
	return result, nil
}

// CurrentState derives the staff member's state from the record governing
// the current work day.
func (r *Recorder) CurrentState(ctx context.Context, staffID generic.StaffID) (CurrentState, error) {
	if strings.TrimSpace(string(staffID)) == "" {
		return CurrentState{}, generic.NewInputError("staff_id", "required")
	}
	now := r.now()
	rec, err := r.governingRecord(ctx, r.Store, staffID, r.Resolver.WorkDay(now), now, true)
	if err != nil {
		return CurrentState{}, err
	}

	state := CurrentState{StaffID: staffID, State: StateOf(rec)}
	if rec == nil {
		return state, nil
	}
	state.Date = rec.Date
	if !rec.ClockIn.IsZero() {
		clockIn := rec.ClockIn
		state.LastClockIn = &clockIn
	}
	if b, ok := rec.OpenBreak(); ok {
		start := b.Start
		state.LastBreakStart = &start
	}
	return state, nil
}

// AggregatedDay returns the minute totals and holiday flag of a work day.
// A day without a record aggregates to zero minutes.
func (r *Recorder) AggregatedDay(ctx context.Context, staffID generic.StaffID, date generic.Date) (DaySummary, error) {
	if strings.TrimSpace(string(staffID)) == "" {
		return DaySummary{}, generic.NewInputError("staff_id", "required")
	}
	rec, err := r.Store.GetDayRecord(ctx, staffID, date)
	if err != nil {
		return DaySummary{}, err
	}

	summary := DaySummary{StaffID: staffID, Date: date, State: StateOf(rec)}
	if rec != nil {
		totals := Aggregate(*rec, r.now())
		summary.WorkMinutes = totals.WorkMinutes
		summary.BreakMinutes = totals.BreakMinutes
		summary.NightMinutes = totals.NightMinutes
	}

	holiday, failed := generic.IsHolidayOrFalse(ctx, r.Holidays, date)
	if failed {
		r.logger().Warn("holiday lookup failed, treating as working day",
			"staffId", staffID, "date", date.String())
	}
	summary.IsHoliday = holiday
	summary.HolidayUnknown = failed
	return summary, nil
}

// Events returns the raw log for a staff member over a range of work days.
func (r *Recorder) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]ClockEvent, error) {
	return NewLedger(r.Store).Events(ctx, staffID, period)
}

// governingRecord finds the record an event at `at` on day applies to: the
// day's own record or, when carry is set, the previous work day's record
// while it is still open and was clocked into less than MaxShiftLength
// before `at` (a shift that crossed the day boundary). A clock-in never
// carries, so a forgotten clock-out cannot block the next day.
func (r *Recorder) governingRecord(ctx context.Context, s DayRecordStore, staffID generic.StaffID, day generic.Date, at time.Time, carry bool) (*DayRecord, error) {
	rec, err := s.GetDayRecord(ctx, staffID, day)
	if err != nil || rec != nil || !carry {
		return rec, err
	}
	prev, err := s.GetDayRecord(ctx, staffID, day.AddDays(-1))
	if err != nil {
		return nil, err
	}
	if prev == nil || prev.Status == StateClockedOut {
		return nil, nil
	}
	if at.Sub(prev.ClockIn) > r.maxShiftLength() {
		return nil, nil
	}
	return prev, nil
}

func validateInput(in EventInput) error {
	if strings.TrimSpace(string(in.StaffID)) == "" {
		return generic.NewInputError("staff_id", "required")
	}
	if !in.Type.Valid() {
		return &UnknownEventTypeError{Type: string(in.Type)}
	}
	return nil
}

func (r *Recorder) staffLocks() *keyedMutex {
	r.locksOnce.Do(func() { r.locks = newKeyedMutex() })
	return r.locks
}

func (r *Recorder) maxShiftLength() time.Duration {
	if r.MaxShiftLength <= 0 {
		return DefaultMaxShiftLength
	}
	return r.MaxShiftLength
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Recorder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
