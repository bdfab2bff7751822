package generic

import (
	"context"
	"sort"
	"sync"
)

// =============================================================================
// HOLIDAY CALENDAR - Externally supplied, read-only to the engine
// =============================================================================

// Holiday is a JST date that is eligible for the holiday bonus.
type Holiday struct {
	Date Date
	Name string
}

// HolidayCalendar answers whether a date is a holiday.
//
// Callers in this engine treat a lookup error as "not a holiday": the holiday
// bonus is additive, so missing it underpays by the bonus only and never
// blocks payroll.
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, date Date) (bool, error)
}

// HolidayStore is a HolidayCalendar that can also be administered.
type HolidayStore interface {
	HolidayCalendar
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, date Date) error
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
}

// NoHolidays is a calendar with no holidays, for deployments without one.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(context.Context, Date) (bool, error) { return false, nil }

// IsHolidayOrFalse performs a fail-open lookup. The second result reports
// whether the lookup itself failed.
func IsHolidayOrFalse(ctx context.Context, cal HolidayCalendar, date Date) (holiday bool, lookupFailed bool) {
	if cal == nil {
		return false, false
	}
	ok, err := cal.IsHoliday(ctx, date)
	if err != nil {
		return false, true
	}
	return ok, false
}

// =============================================================================
// STATIC CALENDAR - In-memory holiday set
// =============================================================================

// StaticCalendar is a concurrency-safe in-memory HolidayStore.
type StaticCalendar struct {
	mu       sync.RWMutex
	holidays map[Date]Holiday
}

func NewStaticCalendar(holidays ...Holiday) *StaticCalendar {
	c := &StaticCalendar{holidays: make(map[Date]Holiday, len(holidays))}
	for _, h := range holidays {
		c.holidays[h.Date] = h
	}
	return c
}

func (c *StaticCalendar) IsHoliday(_ context.Context, date Date) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.holidays[date]
	return ok, nil
}

func (c *StaticCalendar) SaveHoliday(_ context.Context, h Holiday) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[h.Date] = h
	return nil
}

func (c *StaticCalendar) DeleteHoliday(_ context.Context, date Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.holidays[date]; !ok {
		return ErrHolidayNotFound
	}
	delete(c.holidays, date)
	return nil
}

func (c *StaticCalendar) ListHolidays(_ context.Context, year int) ([]Holiday, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Holiday
	for d, h := range c.holidays {
		if d.Year == year {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
