package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// JST - The only timezone this engine knows about
// =============================================================================

// JST is Japan Standard Time. Fixed offset, no daylight saving.
var JST = time.FixedZone("Asia/Tokyo", jstOffsetSeconds)

const (
	jstOffsetSeconds = 9 * 60 * 60
	secondsPerDay    = 24 * 60 * 60
)

// =============================================================================
// DATE - A JST calendar date (comparable, usable as map key)
// =============================================================================

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	// Normalise overflow (e.g. Jan 32 -> Feb 1)
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf returns the JST calendar date of an instant.
func DateOf(t time.Time) Date {
	y, m, d := t.In(JST).Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.compare(other) < 0 }
func (d Date) After(other Date) bool         { return d.compare(other) > 0 }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return d.compare(other) <= 0 }
func (d Date) AfterOrEqual(other Date) bool  { return d.compare(other) >= 0 }

func (d Date) compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return d.Year - other.Year
	case d.Month != other.Month:
		return int(d.Month) - int(other.Month)
	default:
		return d.Day - other.Day
	}
}

// Arithmetic
func (d Date) AddDays(n int) Date { return NewDate(d.Year, d.Month, d.Day+n) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// At returns the instant at hour:minute JST on this date. Hours >= 24 roll
// into the following day, which is how overnight schedules are expressed.
func (d Date) At(hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, JST)
}

// StartOfDay is midnight JST on this date.
func (d Date) StartOfDay() time.Time { return d.At(0, 0) }

// =============================================================================
// CLOCK TIME - "HH:MM" wall-clock time, used for scheduled shift hours
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q (use HH:MM): %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string      { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
func (c ClockTime) MinutesOfDay() int   { return c.Hour*60 + c.Minute }
func (c ClockTime) On(d Date) time.Time { return d.At(c.Hour, c.Minute) }
func (c ClockTime) IsZero() bool        { return c == ClockTime{} }

// =============================================================================
// DAY RESOLVER - Which logical work day does an instant belong to?
// =============================================================================

// DayBoundary selects the rule that splits instants into work days.
// Exactly one boundary is used per deployment; it is never inferred.
type DayBoundary string

const (
	// BoundaryMidnight: a work day runs 00:00–23:59:59 JST.
	BoundaryMidnight DayBoundary = "midnight"

	// BoundaryEarlyMorning: instants before the cutoff hour (default 04:00 JST)
	// belong to the previous calendar day, so shifts crossing midnight stay
	// on the day they started.
	BoundaryEarlyMorning DayBoundary = "early_morning"
)

// DefaultCutoffHour is the early-morning cutoff used when none is configured.
const DefaultCutoffHour = 4

func ParseDayBoundary(s string) (DayBoundary, error) {
	switch DayBoundary(s) {
	case BoundaryMidnight, BoundaryEarlyMorning:
		return DayBoundary(s), nil
	default:
		return "", fmt.Errorf("unknown day boundary %q (want %q or %q)", s, BoundaryMidnight, BoundaryEarlyMorning)
	}
}

// DayResolver maps instants to work days. It is pure and total.
type DayResolver struct {
	Boundary   DayBoundary
	CutoffHour int // only used by BoundaryEarlyMorning
}

func NewDayResolver(boundary DayBoundary, cutoffHour int) DayResolver {
	return DayResolver{Boundary: boundary, CutoffHour: cutoffHour}
}

// WorkDay returns the JST date of the work day containing t.
//
// The computation is modular arithmetic on Unix seconds against the fixed
// +9h offset, shifted back by the cutoff for the early-morning boundary.
// An unknown Boundary behaves like BoundaryMidnight.
func (r DayResolver) WorkDay(t time.Time) Date {
	shift := int64(jstOffsetSeconds)
	if r.Boundary == BoundaryEarlyMorning {
		shift -= int64(r.cutoff()) * 3600
	}
	days := floorDiv(t.Unix()+shift, secondsPerDay)
	y, m, d := time.Unix(days*secondsPerDay, 0).UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// DayStart returns the first instant of the given work day.
func (r DayResolver) DayStart(d Date) time.Time {
	if r.Boundary == BoundaryEarlyMorning {
		return d.At(r.cutoff(), 0)
	}
	return d.StartOfDay()
}

func (r DayResolver) cutoff() int {
	if r.CutoffHour <= 0 || r.CutoffHour >= 24 {
		return DefaultCutoffHour
	}
	return r.CutoffHour
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
