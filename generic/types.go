/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Attendance and payroll both talk about the same primitives: who (staff,
  store), when (JST dates, work days, months) and how much (minutes, money).
  This package holds those primitives so the attendance and payroll packages
  share one definition of each.

KEY CONCEPTS IN THIS FILE (types.go):
  - StaffID / StoreID / EventID: Type-safe identifiers
  - Money helpers: decimal arithmetic for wages and amounts
  - Minutes helpers: converting whole minutes into decimal hours

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money, never float64
  2. Type Safety: Strong typing for IDs prevents mixing staff/store IDs
  3. Determinism: Same inputs always produce the same decimal output

SEE ALSO:
  - time.go: JST dates and the Day Resolver
  - period.go: Months and date ranges
  - holiday.go: Holiday calendar lookups
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type StoreID string
type EventID string

// =============================================================================
// MONEY - decimal amounts in yen
// =============================================================================

// MoneyPlaces is the number of decimal places amounts are rounded to.
// Yen has no minor unit, but rates like 1.25 produce fractional yen that
// downstream rounding policies (outside this engine) need to see.
const MoneyPlaces = 2

var sixty = decimal.NewFromInt(60)

// RoundMoney rounds an amount to MoneyPlaces (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PayForMinutes prices minutes at an hourly rate times a multiplier:
//
//	minutes × hourlyRate × multiplier / 60
//
// Division happens last so that exact results (e.g. 75 min at 1.25x) stay exact.
func PayForMinutes(minutes int, hourlyRate, multiplier decimal.Decimal) decimal.Decimal {
	if minutes == 0 {
		return decimal.Zero
	}
	return RoundMoney(decimal.NewFromInt(int64(minutes)).Mul(hourlyRate).Mul(multiplier).Div(sixty))
}
