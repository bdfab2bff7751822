package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

// ErrOpenDayRecord is returned for a day whose current interval has not
// been clocked out. Such days are priced once they are finalized.
var ErrOpenDayRecord = errors.New("day record is still open")

// Calculate prices one finalized day record.
//
// Hourly staff:
//
//	base    = (work - night) / 60 × wage
//	night   = night / 60 × wage × 0.25
//	holiday = holiday ? work / 60 × holidayBonusPerHour : 0
//
// Monthly staff carry overtime only:
//
//	overtime = overtime / 60 × wage × overtimeRate
//
// A failed holiday lookup prices the day as a working day and sets
// HolidayUnknown on the line.
func Calculate(ctx context.Context, rec attendance.DayRecord, profile PayProfile, cal generic.HolidayCalendar) (Line, error) {
	if err := profile.Validate(); err != nil {
		return Line{}, err
	}
	if !rec.IsFinalized() {
		return Line{}, fmt.Errorf("%s: %w", rec, ErrOpenDayRecord)
	}

	totals := attendance.Aggregate(rec, *rec.ClockOut)
	holiday, lookupFailed := generic.IsHolidayOrFalse(ctx, cal, rec.Date)

	line := Line{
		StaffID:        rec.StaffID,
		StoreID:        rec.StoreID,
		Date:           rec.Date,
		EmployeeType:   profile.EmployeeType,
		WorkMinutes:    totals.WorkMinutes,
		BreakMinutes:   totals.BreakMinutes,
		NightMinutes:   totals.NightMinutes,
		IsHoliday:      holiday,
		HolidayUnknown: lookupFailed,
		BaseAmount:     decimal.Zero,
		NightBonus:     decimal.Zero,
		HolidayBonus:   decimal.Zero,
		OvertimePay:    decimal.Zero,
	}

	switch profile.EmployeeType {
	case EmployeeHourly:
		priceHourly(&line, profile)
	case EmployeeMonthly:
		priceMonthly(&line, rec, profile)
	}

	line.TotalAmount = line.BaseAmount.
		Add(line.NightBonus).
		Add(line.HolidayBonus).
		Add(line.OvertimePay)
	return line, nil
}

func priceHourly(line *Line, profile PayProfile) {
	// The night walk spans breaks, so a night break can push night minutes
	// above worked minutes. Only worked night minutes are priced.
	nightPaid := min(line.NightMinutes, line.WorkMinutes)
	regular := line.WorkMinutes - nightPaid

	line.BaseAmount = generic.PayForMinutes(regular, profile.HourlyWage, decimal.NewFromInt(1))
	line.NightBonus = generic.PayForMinutes(nightPaid, profile.HourlyWage, NightDifferentialRate)
	if line.IsHoliday {
		line.HolidayBonus = generic.PayForMinutes(line.WorkMinutes, profile.HolidayBonusPerHour, decimal.NewFromInt(1))
	}
}

func priceMonthly(line *Line, rec attendance.DayRecord, profile PayProfile) {
	line.OvertimeMinutes = OvertimeMinutes(rec, profile)
	if line.OvertimeMinutes > line.WorkMinutes {
		line.OvertimeMinutes = line.WorkMinutes
	}
	line.OvertimePay = generic.PayForMinutes(line.OvertimeMinutes, profile.HourlyWage, profile.EffectiveOvertimeRate())
}

// OvertimeMinutes measures a finalized record against the scheduled hours
// on its work date: minutes clocked out after the scheduled end, plus
// minutes clocked in before the scheduled start when the profile counts
// early arrival.
func OvertimeMinutes(rec attendance.DayRecord, profile PayProfile) int {
	if rec.ClockOut == nil {
		return 0
	}
	start := profile.ScheduledStart.On(rec.Date)
	end := profile.ScheduledEnd.On(rec.Date)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}

	overtime := wholeMinutes(rec.ClockOut.Sub(end))
	if profile.IncludeEarlyArrivalAsOvertime {
		firstIn := rec.FirstClockIn
		if firstIn.IsZero() {
			firstIn = rec.ClockIn
		}
		overtime += wholeMinutes(start.Sub(firstIn))
	}
	return overtime
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
