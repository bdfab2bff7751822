package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var march = generic.MonthOf(testDay)

type fixture struct {
	store    *memory.Store
	recorder *attendance.Recorder
	service  *payroll.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	recorder := attendance.NewRecorder(store, generic.NewDayResolver(generic.BoundaryMidnight, 0), nil)
	recorder.Now = func() time.Time { return generic.NewDate(2025, 4, 1).At(12, 0) }
	return &fixture{
		store:    store,
		recorder: recorder,
		service:  payroll.NewService(store, store, nil),
	}
}

// shift records in/out for a staff member on the given day.
func (f *fixture) shift(t *testing.T, staffID generic.StaffID, storeID generic.StoreID, day generic.Date, inH, outH int) {
	t.Helper()
	f.record(t, staffID, storeID, attendance.EventIn, day.At(inH, 0))
	f.record(t, staffID, storeID, attendance.EventOut, day.At(outH, 0))
}

func (f *fixture) record(t *testing.T, staffID generic.StaffID, storeID generic.StoreID, typ attendance.EventType, at time.Time) {
	t.Helper()
	_, err := f.recorder.RecordEvent(context.Background(), attendance.EventInput{
		StaffID: staffID, StoreID: storeID, Type: typ, At: &at,
	})
	require.NoError(t, err)
}

func (f *fixture) profile(t *testing.T, staffID generic.StaffID, wage string) {
	t.Helper()
	p := hourly(wage)
	p.StaffID = staffID
	require.NoError(t, f.store.SavePayProfile(context.Background(), p))
}

// =============================================================================
// COMPUTE MONTH
// =============================================================================

func TestComputeMonth_SingleStaff(t *testing.T) {
	// GIVEN: Two 8h shifts in March and one in April
	// WHEN: Computing March payroll for the staff member
	// THEN: Two lines with summed totals; April is ignored

	f := newFixture(t)
	f.profile(t, "staff-a", "1000")
	f.shift(t, "staff-a", "store-1", generic.NewDate(2025, 3, 3), 9, 17)
	f.shift(t, "staff-a", "store-1", generic.NewDate(2025, 3, 11), 9, 17)
	f.recorder.Now = func() time.Time { return generic.NewDate(2025, 4, 3).At(12, 0) }
	f.shift(t, "staff-a", "store-1", generic.NewDate(2025, 4, 2), 9, 17)

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StaffID: "staff-a"}, march)
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Staff, 1)

	sp := report.Staff[0]
	require.Len(t, sp.Lines, 2)
	assert.Equal(t, generic.NewDate(2025, 3, 3), sp.Lines[0].Date)
	assert.Equal(t, generic.NewDate(2025, 3, 11), sp.Lines[1].Date)
	assert.Equal(t, 960, sp.WorkMinutes)
	assertAmount(t, "16000", sp.TotalAmount)
	assertAmount(t, "16000", sp.BaseAmount)
}

func TestComputeMonth_ByStore(t *testing.T) {
	// GIVEN: Staff a and b work at store-1, c at store-2
	// WHEN: Computing store-1
	// THEN: Only a and b appear

	f := newFixture(t)
	for _, id := range []generic.StaffID{"staff-a", "staff-b", "staff-c"} {
		f.profile(t, id, "1000")
	}
	f.shift(t, "staff-a", "store-1", testDay, 9, 17)
	f.shift(t, "staff-b", "store-1", testDay, 10, 14)
	f.shift(t, "staff-c", "store-2", testDay, 9, 17)

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StoreID: "store-1"}, march)
	require.NoError(t, err)
	require.Len(t, report.Staff, 2)

	assert.Equal(t, generic.StaffID("staff-a"), report.Staff[0].StaffID)
	assert.Equal(t, generic.StaffID("staff-b"), report.Staff[1].StaffID)
	assertAmount(t, "4000", report.Staff[1].TotalAmount)
	assert.Len(t, report.Lines(), 2)
}

func TestComputeMonth_MissingProfileIsolated(t *testing.T) {
	// GIVEN: staff-b has records but no pay profile
	// THEN: staff-b is reported as a failure, staff-a is still priced

	f := newFixture(t)
	f.profile(t, "staff-a", "1000")
	f.shift(t, "staff-a", "store-1", testDay, 9, 17)
	f.shift(t, "staff-b", "store-1", testDay, 9, 17)

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StoreID: "store-1"}, march)
	require.NoError(t, err)

	require.Len(t, report.Staff, 1)
	assert.Equal(t, generic.StaffID("staff-a"), report.Staff[0].StaffID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, generic.StaffID("staff-b"), report.Failures[0].StaffID)
	assert.ErrorIs(t, report.Failures[0].Err, generic.ErrPayProfileNotFound)
}

func TestComputeMonth_OpenRecordsArePending(t *testing.T) {
	// GIVEN: One finished shift and one day still clocked in
	// THEN: The finished day is priced, the open day counts as pending

	f := newFixture(t)
	f.profile(t, "staff-a", "1000")
	f.shift(t, "staff-a", "store-1", testDay, 9, 17)
	f.record(t, "staff-a", "store-1", attendance.EventIn, testDay.AddDays(5).At(9, 0))

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StaffID: "staff-a"}, march)
	require.NoError(t, err)
	require.Len(t, report.Staff, 1)
	assert.Len(t, report.Staff[0].Lines, 1)
	assert.Equal(t, 1, report.Staff[0].PendingDays)
}

func TestComputeMonth_NoRecords(t *testing.T) {
	// GIVEN: A staff member with no records and no profile
	// THEN: An empty entry with zero amounts, not a failure

	f := newFixture(t)

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StaffID: "staff-z"}, march)
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Staff, 1)
	assert.Empty(t, report.Staff[0].Lines)
	assertAmount(t, "0", report.Staff[0].TotalAmount)
}

func TestComputeMonth_TargetValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ComputeMonth(context.Background(), payroll.Target{}, march)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.service.ComputeMonth(context.Background(), payroll.Target{StaffID: "a", StoreID: "b"}, march)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestComputeMonth_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "staff-a", "1000")
	f.shift(t, "staff-a", "store-1", testDay, 9, 17)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.ComputeMonth(ctx, payroll.Target{StoreID: "store-1"}, march)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeMonth_HolidayFromService(t *testing.T) {
	f := newFixture(t)
	p := hourly("1000")
	p.StaffID = "staff-a"
	p.HolidayBonusPerHour = dec("100")
	require.NoError(t, f.store.SavePayProfile(context.Background(), p))
	f.shift(t, "staff-a", "store-1", testDay, 9, 17)
	f.service.Holidays = generic.NewStaticCalendar(generic.Holiday{Date: testDay, Name: "Test Holiday"})

	report, err := f.service.ComputeMonth(context.Background(), payroll.Target{StaffID: "staff-a"}, march)
	require.NoError(t, err)
	require.Len(t, report.Staff, 1)
	assertAmount(t, "800", report.Staff[0].HolidayBonus)
	assertAmount(t, "8800", report.Staff[0].TotalAmount)
}
