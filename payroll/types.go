/*
Package payroll prices attendance into payroll lines.

PURPOSE:
  A PayrollLine is derived from one finalized DayRecord, the staff member's
  pay profile and the holiday calendar. It is never stored as ground truth:
  recomputing from the same inputs always yields the same line.

EMPLOYEE TYPES:
  hourly:  base pay for regular minutes + night differential + holiday bonus
  monthly: base salary is paid elsewhere; the line carries overtime only

SEE ALSO:
  - profile.go: Pay profiles and their validation
  - calculator.go: Per-day pricing
  - batch.go: Monthly runs, per staff or per store
  - export.go: Flattened rows for CSV
*/
package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// EMPLOYEE TYPE
// =============================================================================

type EmployeeType string

const (
	EmployeeHourly  EmployeeType = "hourly"
	EmployeeMonthly EmployeeType = "monthly"
)

func ParseEmployeeType(s string) (EmployeeType, error) {
	switch EmployeeType(s) {
	case EmployeeHourly, EmployeeMonthly:
		return EmployeeType(s), nil
	default:
		return "", generic.NewInputError("employee_type", "unknown employee type %q", s)
	}
}

// =============================================================================
// PAY PROFILE
// =============================================================================

var (
	// DefaultOvertimeRate applies when a profile leaves OvertimeRate zero.
	DefaultOvertimeRate = decimal.RequireFromString("1.25")

	// NightDifferentialRate is the fixed additive night premium.
	NightDifferentialRate = decimal.RequireFromString("0.25")
)

// PayProfile holds everything needed to price a staff member's day.
type PayProfile struct {
	StaffID             generic.StaffID
	EmployeeType        EmployeeType
	HourlyWage          decimal.Decimal
	OvertimeRate        decimal.Decimal // zero means DefaultOvertimeRate
	HolidayBonusPerHour decimal.Decimal

	// Scheduled hours, used for monthly overtime. An end at or before the
	// start means the schedule runs past midnight.
	ScheduledStart                generic.ClockTime
	ScheduledEnd                  generic.ClockTime
	IncludeEarlyArrivalAsOvertime bool
}

// =============================================================================
// PAYROLL LINE
// =============================================================================

// Line is the priced result for one staff member on one work day.
type Line struct {
	StaffID         generic.StaffID
	StoreID         generic.StoreID
	Date            generic.Date
	EmployeeType    EmployeeType
	WorkMinutes     int
	BreakMinutes    int
	NightMinutes    int
	OvertimeMinutes int
	IsHoliday       bool
	HolidayUnknown  bool // holiday lookup failed; priced as a working day

	BaseAmount   decimal.Decimal
	NightBonus   decimal.Decimal
	HolidayBonus decimal.Decimal
	OvertimePay  decimal.Decimal
	TotalAmount  decimal.Decimal
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// Target selects whose payroll to compute. Exactly one field is set.
type Target struct {
	StaffID generic.StaffID
	StoreID generic.StoreID
}

// StaffPayroll is one staff member's lines and totals for the month.
type StaffPayroll struct {
	StaffID         generic.StaffID
	Lines           []Line
	PendingDays     int // open day records that could not be priced yet
	WorkMinutes     int
	NightMinutes    int
	OvertimeMinutes int
	BaseAmount      decimal.Decimal
	NightBonus      decimal.Decimal
	HolidayBonus    decimal.Decimal
	OvertimePay     decimal.Decimal
	TotalAmount     decimal.Decimal
}

// StaffFailure records a staff member whose payroll could not be computed.
// Other staff in the same run are unaffected.
type StaffFailure struct {
	StaffID generic.StaffID
	Err     error
}

// Report is the result of a monthly payroll run.
type Report struct {
	Month    generic.Month
	Target   Target
	Staff    []StaffPayroll
	Failures []StaffFailure
}

// Lines returns every line in the report, ordered by staff then date.
func (r Report) Lines() []Line {
	var out []Line
	for _, s := range r.Staff {
		out = append(out, s.Lines...)
	}
	return out
}
