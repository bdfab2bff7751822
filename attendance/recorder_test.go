package attendance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRecorder(t *testing.T, boundary generic.DayBoundary) (*attendance.Recorder, *memory.Store) {
	t.Helper()
	store := memory.New()
	rec := attendance.NewRecorder(store, generic.NewDayResolver(boundary, 4), generic.NewStaticCalendar())
	// "now" is two days after the test day so every test timestamp is in the past.
	rec.Now = func() time.Time { return testDay.AddDays(2).At(12, 0) }
	return rec, store
}

func input(staffID generic.StaffID, typ attendance.EventType, t time.Time) attendance.EventInput {
	return attendance.EventInput{StaffID: staffID, StoreID: "store-1", Type: typ, At: &t}
}

type failingCalendar struct{}

func (failingCalendar) IsHoliday(context.Context, generic.Date) (bool, error) {
	return false, errors.New("calendar unavailable")
}

// =============================================================================
// RECORDING
// =============================================================================

func TestRecordEvent_FullDay(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Recording in / break / break end / out
	// THEN: The day record is finalized with the aggregated minutes and every
	//       event is in the log with the work date attached

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	for _, in := range []attendance.EventInput{
		input("staff-1", attendance.EventIn, at(9, 0)),
		input("staff-1", attendance.EventBreakStart, at(12, 0)),
		input("staff-1", attendance.EventBreakEnd, at(13, 0)),
		input("staff-1", attendance.EventOut, at(18, 0)),
	} {
		_, err := r.RecordEvent(ctx, in)
		require.NoError(t, err)
	}

	summary, err := r.AggregatedDay(ctx, "staff-1", testDay)
	require.NoError(t, err)
	assert.Equal(t, 480, summary.WorkMinutes)
	assert.Equal(t, 60, summary.BreakMinutes)
	assert.Equal(t, attendance.StateClockedOut, summary.State)
	assert.False(t, summary.IsHoliday)

	events, err := r.Events(ctx, "staff-1", generic.Period{Start: testDay, End: testDay})
	require.NoError(t, err)
	require.Len(t, events, 4)
	for _, ev := range events {
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, testDay, ev.WorkDate)
		assert.False(t, ev.RecordedAt.IsZero())
	}
	assert.Equal(t, attendance.EventIn, events[0].Type)
	assert.Equal(t, attendance.EventOut, events[3].Type)
}

func TestRecordEvent_RejectionLeavesNoTrace(t *testing.T) {
	// GIVEN: A staff member who never clocked in
	// WHEN: break_start is recorded
	// THEN: TransitionError, no event logged, no record created

	r, store := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventBreakStart, at(9, 0)))
	var te *attendance.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, attendance.ReasonNotClockedIn, te.Reason)

	last, err := store.LastEvent(ctx, "staff-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	rec, err := store.GetDayRecord(ctx, "staff-1", testDay)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecordEvent_InvalidInput(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("", attendance.EventIn, at(9, 0)))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = r.RecordEvent(ctx, input("staff-1", "nap", at(9, 0)))
	var unknown *attendance.UnknownEventTypeError
	assert.ErrorAs(t, err, &unknown)
}

func TestRecordEvent_DuplicateIdempotencyKey(t *testing.T) {
	// GIVEN: An "in" event recorded with key "k-1"
	// WHEN: The same key is sent again (client retry)
	// THEN: ErrDuplicateIdempotencyKey and the log still has one event

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	first := input("staff-1", attendance.EventIn, at(9, 0))
	first.IdempotencyKey = "k-1"
	_, err := r.RecordEvent(ctx, first)
	require.NoError(t, err)

	retry := input("staff-1", attendance.EventOut, at(18, 0))
	retry.IdempotencyKey = "k-1"
	_, err = r.RecordEvent(ctx, retry)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	events, err := r.Events(ctx, "staff-1", generic.Period{Start: testDay, End: testDay})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	state, err := r.CurrentState(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StateClockedIn, state.State)
}

func TestRecordEvent_ClockSkew(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(10, 0)))
	require.NoError(t, err)

	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventOut, at(9, 0)))
	var skew *attendance.ClockSkewError
	require.ErrorAs(t, err, &skew)
	assert.False(t, skew.Future)
}

func TestRecordEvent_FutureTimestampRejected(t *testing.T) {
	// GIVEN: now is fixed
	// WHEN: An event is stamped beyond the future tolerance
	// THEN: Rejected as future clock skew; within tolerance is accepted

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()
	now := r.Now()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, now.Add(10*time.Minute)))
	var skew *attendance.ClockSkewError
	require.ErrorAs(t, err, &skew)
	assert.True(t, skew.Future)

	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventIn, now.Add(time.Minute)))
	assert.NoError(t, err)
}

func TestRecordEvent_DefaultsToNow(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	rec, err := r.RecordEvent(ctx, attendance.EventInput{StaffID: "staff-1", Type: attendance.EventIn})
	require.NoError(t, err)
	assert.True(t, rec.ClockIn.Equal(r.Now()))
	assert.Equal(t, testDay.AddDays(2), rec.Date)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRecordEvent_ConcurrentClockInSameStaff(t *testing.T) {
	// GIVEN: 20 concurrent "in" requests for the same staff member
	// THEN: Exactly one succeeds, the rest are rejected as already clocked in

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := input("staff-1", attendance.EventIn, at(9, 0))
			in.IdempotencyKey = fmt.Sprintf("tap-%d", i)
			_, errs[i] = r.RecordEvent(ctx, in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var te *attendance.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, attendance.ReasonAlreadyClockedIn, te.Reason)
	}
	assert.Equal(t, 1, succeeded)

	events, err := r.Events(ctx, "staff-1", generic.Period{Start: testDay, End: testDay})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordEvent_DifferentStaffInParallel(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			staffID := generic.StaffID(fmt.Sprintf("staff-%d", i))
			_, err := r.RecordEvent(ctx, input(staffID, attendance.EventIn, at(9, 0)))
			assert.NoError(t, err)
			_, err = r.RecordEvent(ctx, input(staffID, attendance.EventOut, at(17, 0)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		summary, err := r.AggregatedDay(ctx, generic.StaffID(fmt.Sprintf("staff-%d", i)), testDay)
		require.NoError(t, err)
		assert.Equal(t, 480, summary.WorkMinutes)
	}
}

// =============================================================================
// DAY BOUNDARIES
// =============================================================================

func TestRecordEvent_OvernightShiftMidnightBoundary(t *testing.T) {
	// GIVEN: Midnight boundary
	// WHEN: in 22:00, out 02:00 the next calendar day
	// THEN: The open record carries over; the shift is attributed to the day
	//       it started with 240 work and 240 night minutes

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(22, 0)))
	require.NoError(t, err)
	rec, err := r.RecordEvent(ctx, input("staff-1", attendance.EventOut, testDay.AddDays(1).At(2, 0)))
	require.NoError(t, err)

	assert.Equal(t, testDay, rec.Date)
	assert.Equal(t, 240, rec.WorkMinutes)
	assert.Equal(t, 240, rec.NightMinutes)

	next, err := r.AggregatedDay(ctx, "staff-1", testDay.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, 0, next.WorkMinutes, "nothing is attributed to the next calendar day")
}

func TestRecordEvent_OvernightShiftEarlyMorningBoundary(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryEarlyMorning)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(22, 0)))
	require.NoError(t, err)
	rec, err := r.RecordEvent(ctx, input("staff-1", attendance.EventOut, testDay.AddDays(1).At(3, 30)))
	require.NoError(t, err)

	assert.Equal(t, testDay, rec.Date)
	assert.Equal(t, 330, rec.WorkMinutes)
	assert.Equal(t, 330, rec.NightMinutes)
}

func TestRecordEvent_NewDayAfterClosedShift(t *testing.T) {
	// GIVEN: A finished shift yesterday
	// WHEN: Clocking in today
	// THEN: A new record is created for today, yesterday's is untouched

	r, store := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(9, 0)))
	require.NoError(t, err)
	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventOut, at(17, 0)))
	require.NoError(t, err)

	rec, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, testDay.AddDays(1).At(9, 0)))
	require.NoError(t, err)
	assert.Equal(t, testDay.AddDays(1), rec.Date)
	assert.Equal(t, int64(1), rec.Version)

	prev, err := store.GetDayRecord(ctx, "staff-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 1, prev.Entries)
}

func TestRecordEvent_ForgottenClockOut(t *testing.T) {
	// GIVEN: A clock-in yesterday that was never closed
	// WHEN: Clocking in and out the next morning
	// THEN: Today gets its own record; yesterday stays open for review

	r, store := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()
	tomorrow := testDay.AddDays(1)

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(9, 0)))
	require.NoError(t, err)

	rec, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, tomorrow.At(9, 0)))
	require.NoError(t, err)
	assert.Equal(t, tomorrow, rec.Date)

	rec, err = r.RecordEvent(ctx, input("staff-1", attendance.EventOut, tomorrow.At(18, 0)))
	require.NoError(t, err)
	assert.Equal(t, tomorrow, rec.Date)
	assert.Equal(t, 540, rec.WorkMinutes)
	assert.Zero(t, rec.NightMinutes)

	prev, err := store.GetDayRecord(ctx, "staff-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, attendance.StateClockedIn, prev.Status)
	assert.Nil(t, prev.ClockOut)
}

func TestRecordEvent_CarryOverIsBounded(t *testing.T) {
	// GIVEN: An open record clocked in more than MaxShiftLength ago
	// WHEN: Clocking out on the next work day
	// THEN: The event does not reach the stale record and is rejected

	r, store := newTestRecorder(t, generic.BoundaryMidnight)
	r.MaxShiftLength = 12 * time.Hour
	ctx := context.Background()

	_, err := r.RecordEvent(ctx, input("staff-1", attendance.EventIn, at(9, 0)))
	require.NoError(t, err)

	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventOut, testDay.AddDays(1).At(8, 0)))
	require.ErrorIs(t, err, attendance.ErrInvalidTransition)

	prev, err := store.GetDayRecord(ctx, "staff-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Nil(t, prev.ClockOut)

	// Within the bound the same shape carries over.
	_, err = r.RecordEvent(ctx, input("staff-2", attendance.EventIn, at(21, 0)))
	require.NoError(t, err)
	rec, err := r.RecordEvent(ctx, input("staff-2", attendance.EventOut, testDay.AddDays(1).At(8, 0)))
	require.NoError(t, err)
	assert.Equal(t, testDay, rec.Date)
	assert.Equal(t, 660, rec.WorkMinutes)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestCurrentState(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	ctx := context.Background()
	today := testDay.AddDays(2)

	state, err := r.CurrentState(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StateClockedOut, state.State)
	assert.Nil(t, state.LastClockIn)

	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventIn, today.At(9, 0)))
	require.NoError(t, err)
	_, err = r.RecordEvent(ctx, input("staff-1", attendance.EventBreakStart, today.At(11, 0)))
	require.NoError(t, err)

	state, err = r.CurrentState(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StateBreaking, state.State)
	assert.Equal(t, today, state.Date)
	require.NotNil(t, state.LastClockIn)
	assert.True(t, state.LastClockIn.Equal(today.At(9, 0)))
	require.NotNil(t, state.LastBreakStart)
	assert.True(t, state.LastBreakStart.Equal(today.At(11, 0)))
}

func TestAggregatedDay_NoRecord(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)

	summary, err := r.AggregatedDay(context.Background(), "staff-1", testDay)
	require.NoError(t, err)
	assert.Equal(t, attendance.StateClockedOut, summary.State)
	assert.Zero(t, summary.WorkMinutes)
	assert.Zero(t, summary.NightMinutes)
}

func TestAggregatedDay_Holiday(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	r.Holidays = generic.NewStaticCalendar(generic.Holiday{Date: testDay, Name: "Test Holiday"})

	summary, err := r.AggregatedDay(context.Background(), "staff-1", testDay)
	require.NoError(t, err)
	assert.True(t, summary.IsHoliday)
	assert.False(t, summary.HolidayUnknown)
}

func TestAggregatedDay_HolidayLookupFailsOpen(t *testing.T) {
	// GIVEN: A holiday calendar that errors
	// THEN: The day is treated as a working day and flagged, not failed

	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	r.Holidays = failingCalendar{}

	summary, err := r.AggregatedDay(context.Background(), "staff-1", testDay)
	require.NoError(t, err)
	assert.False(t, summary.IsHoliday)
	assert.True(t, summary.HolidayUnknown)
}

func TestEvents_InvalidPeriod(t *testing.T) {
	r, _ := newTestRecorder(t, generic.BoundaryMidnight)
	_, err := r.Events(context.Background(), "staff-1", generic.Period{Start: testDay, End: testDay.AddDays(-1)})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
