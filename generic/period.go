package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - An inclusive range of work days
// =============================================================================

// Period is an inclusive [Start, End] range of dates.
type Period struct {
	Start Date
	End   Date
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every date in the period, in order.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH - Payroll aggregation unit
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

const MonthLayout = "2006-01"

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(d Date) Month { return Month{Year: d.Year, Month: d.Month} }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, m.Month) }

// Period returns the first through last date of the month.
func (m Month) Period() Period {
	start := NewDate(m.Year, m.Month, 1)
	end := NewDate(m.Year, m.Month+1, 1).AddDays(-1)
	return Period{Start: start, End: end}
}
