package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// ProfileStore looks up and stores pay profiles.
type ProfileStore interface {
	// GetPayProfile returns generic.ErrPayProfileNotFound when the staff
	// member has no profile.
	GetPayProfile(ctx context.Context, staffID generic.StaffID) (PayProfile, error)
	SavePayProfile(ctx context.Context, p PayProfile) error
}

// InvalidProfileError reports a pay profile that cannot be used for pricing.
type InvalidProfileError struct {
	StaffID generic.StaffID
	Reason  string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid pay profile for %s: %s", e.StaffID, e.Reason)
}

func (e *InvalidProfileError) Unwrap() error { return generic.ErrInvalidInput }

// Validate checks a profile before it is stored or used.
func (p PayProfile) Validate() error {
	invalid := func(format string, args ...any) error {
		return &InvalidProfileError{StaffID: p.StaffID, Reason: fmt.Sprintf(format, args...)}
	}
	if p.StaffID == "" {
		return invalid("staff id is required")
	}
	if _, err := ParseEmployeeType(string(p.EmployeeType)); err != nil {
		return invalid("unknown employee type %q", p.EmployeeType)
	}
	if p.HourlyWage.IsNegative() {
		return invalid("hourly wage must not be negative")
	}
	if p.OvertimeRate.IsNegative() {
		return invalid("overtime rate must not be negative")
	}
	if p.HolidayBonusPerHour.IsNegative() {
		return invalid("holiday bonus must not be negative")
	}
	if p.EmployeeType == EmployeeMonthly && p.ScheduledStart == p.ScheduledEnd {
		return invalid("monthly staff need distinct scheduled start and end")
	}
	for _, c := range []generic.ClockTime{p.ScheduledStart, p.ScheduledEnd} {
		if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
			return invalid("scheduled time %s out of range", c)
		}
	}
	return nil
}

// EffectiveOvertimeRate returns OvertimeRate, or the default when unset.
func (p PayProfile) EffectiveOvertimeRate() decimal.Decimal {
	if p.OvertimeRate.IsZero() {
		return DefaultOvertimeRate
	}
	return p.OvertimeRate
}
