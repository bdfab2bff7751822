/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Attendance:
    RecordEventRequest, DayRecordDTO, BreakDTO, StateDTO, DaySummaryDTO, EventDTO

  Payroll:
    PayProfileDTO, PayrollLineDTO, StaffPayrollDTO, PayrollReportDTO

  Holidays:
    HolidayDTO

MONEY:
  Amounts are rendered as fixed two-decimal strings so JSON clients never
  round through float64.

VALIDATION:
  Validation is done in handlers and domain packages. DTOs are pure data
  carriers.
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

// RecordEventRequest is the body of POST /api/staff/{staffID}/events.
type RecordEventRequest struct {
	StoreID        string     `json:"store_id"`
	Type           string     `json:"type"`
	At             *time.Time `json:"at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

type BreakDTO struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// DayRecordDTO is a day record as stored, after the event was applied.
type DayRecordDTO struct {
	StaffID              string     `json:"staff_id"`
	StoreID              string     `json:"store_id"`
	Date                 string     `json:"date"`
	Status               string     `json:"status"`
	FirstClockIn         *time.Time `json:"first_clock_in,omitempty"`
	ClockIn              *time.Time `json:"clock_in,omitempty"`
	ClockOut             *time.Time `json:"clock_out,omitempty"`
	Breaks               []BreakDTO `json:"breaks"`
	WorkMinutes          int        `json:"work_minutes"`
	BreakMinutes         int        `json:"break_minutes"`
	NightMinutes         int        `json:"night_minutes"`
	PreviousWorkMinutes  int        `json:"previous_work_minutes"`
	PreviousBreakMinutes int        `json:"previous_break_minutes"`
	PreviousNightMinutes int        `json:"previous_night_minutes"`
	Entries              int        `json:"entries"`
	Version              int64      `json:"version"`
}

type StateDTO struct {
	StaffID        string     `json:"staff_id"`
	State          string     `json:"state"`
	Date           string     `json:"date,omitempty"`
	LastClockIn    *time.Time `json:"last_clock_in,omitempty"`
	LastBreakStart *time.Time `json:"last_break_start,omitempty"`
}

type DaySummaryDTO struct {
	StaffID        string `json:"staff_id"`
	Date           string `json:"date"`
	State          string `json:"state"`
	WorkMinutes    int    `json:"work_minutes"`
	BreakMinutes   int    `json:"break_minutes"`
	NightMinutes   int    `json:"night_minutes"`
	IsHoliday      bool   `json:"is_holiday"`
	HolidayUnknown bool   `json:"holiday_unknown,omitempty"`
}

type EventDTO struct {
	ID             string    `json:"id"`
	StaffID        string    `json:"staff_id"`
	StoreID        string    `json:"store_id"`
	Type           string    `json:"type"`
	At             time.Time `json:"at"`
	WorkDate       string    `json:"work_date"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// OpenShiftDTO is a day record still open past the stale threshold.
type OpenShiftDTO struct {
	StaffID     string    `json:"staff_id"`
	StoreID     string    `json:"store_id"`
	Date        string    `json:"date"`
	State       string    `json:"state"`
	LastEventAt time.Time `json:"last_event_at"`
	OpenFor     string    `json:"open_for"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// PayProfileDTO is used both as the PUT body and the GET response.
// Decimal fields are strings ("1500", "1.25").
type PayProfileDTO struct {
	StaffID                       string `json:"staff_id"`
	EmployeeType                  string `json:"employee_type"`
	HourlyWage                    string `json:"hourly_wage"`
	OvertimeRate                  string `json:"overtime_rate,omitempty"`
	HolidayBonusPerHour           string `json:"holiday_bonus_per_hour,omitempty"`
	ScheduledStart                string `json:"scheduled_start,omitempty"`
	ScheduledEnd                  string `json:"scheduled_end,omitempty"`
	IncludeEarlyArrivalAsOvertime bool   `json:"include_early_arrival_as_overtime"`
}

type PayrollLineDTO struct {
	Date            string `json:"date"`
	StaffID         string `json:"staff_id"`
	StoreID         string `json:"store_id"`
	EmployeeType    string `json:"employee_type"`
	WorkMinutes     int    `json:"work_minutes"`
	BreakMinutes    int    `json:"break_minutes"`
	NightMinutes    int    `json:"night_minutes"`
	OvertimeMinutes int    `json:"overtime_minutes"`
	IsHoliday       bool   `json:"is_holiday"`
	HolidayUnknown  bool   `json:"holiday_unknown,omitempty"`
	BaseAmount      string `json:"base_amount"`
	NightBonus      string `json:"night_bonus"`
	HolidayBonus    string `json:"holiday_bonus"`
	OvertimePay     string `json:"overtime_pay"`
	TotalAmount     string `json:"total_amount"`
}

type StaffPayrollDTO struct {
	StaffID         string           `json:"staff_id"`
	Lines           []PayrollLineDTO `json:"lines"`
	PendingDays     int              `json:"pending_days"`
	WorkMinutes     int              `json:"work_minutes"`
	NightMinutes    int              `json:"night_minutes"`
	OvertimeMinutes int              `json:"overtime_minutes"`
	BaseAmount      string           `json:"base_amount"`
	NightBonus      string           `json:"night_bonus"`
	HolidayBonus    string           `json:"holiday_bonus"`
	OvertimePay     string           `json:"overtime_pay"`
	TotalAmount     string           `json:"total_amount"`
}

type StaffFailureDTO struct {
	StaffID string `json:"staff_id"`
	Error   string `json:"error"`
}

type PayrollReportDTO struct {
	Month    string            `json:"month"`
	StaffID  string            `json:"staff_id,omitempty"`
	StoreID  string            `json:"store_id,omitempty"`
	Staff    []StaffPayrollDTO `json:"staff"`
	Failures []StaffFailureDTO `json:"failures,omitempty"`
}

// =============================================================================
// HOLIDAYS / SCENARIOS / ERRORS
// =============================================================================

type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDayRecordDTO(rec attendance.DayRecord) DayRecordDTO {
	dto := DayRecordDTO{
		StaffID:              string(rec.StaffID),
		StoreID:              string(rec.StoreID),
		Date:                 rec.Date.String(),
		Status:               string(rec.Status),
		FirstClockIn:         timePtr(rec.FirstClockIn),
		ClockIn:              timePtr(rec.ClockIn),
		ClockOut:             rec.ClockOut,
		Breaks:               make([]BreakDTO, len(rec.Breaks)),
		WorkMinutes:          rec.WorkMinutes,
		BreakMinutes:         rec.BreakMinutes,
		NightMinutes:         rec.NightMinutes,
		PreviousWorkMinutes:  rec.PreviousWorkMinutes,
		PreviousBreakMinutes: rec.PreviousBreakMinutes,
		PreviousNightMinutes: rec.PreviousNightMinutes,
		Entries:              rec.Entries,
		Version:              rec.Version,
	}
	for i, b := range rec.Breaks {
		dto.Breaks[i] = BreakDTO{Start: b.Start, End: b.End}
	}
	return dto
}

func toStateDTO(s attendance.CurrentState) StateDTO {
	dto := StateDTO{
		StaffID:        string(s.StaffID),
		State:          string(s.State),
		LastClockIn:    s.LastClockIn,
		LastBreakStart: s.LastBreakStart,
	}
	if !s.Date.IsZero() {
		dto.Date = s.Date.String()
	}
	return dto
}

func toDaySummaryDTO(s attendance.DaySummary) DaySummaryDTO {
	return DaySummaryDTO{
		StaffID:        string(s.StaffID),
		Date:           s.Date.String(),
		State:          string(s.State),
		WorkMinutes:    s.WorkMinutes,
		BreakMinutes:   s.BreakMinutes,
		NightMinutes:   s.NightMinutes,
		IsHoliday:      s.IsHoliday,
		HolidayUnknown: s.HolidayUnknown,
	}
}

func toEventDTO(ev attendance.ClockEvent) EventDTO {
	return EventDTO{
		ID:             string(ev.ID),
		StaffID:        string(ev.StaffID),
		StoreID:        string(ev.StoreID),
		Type:           string(ev.Type),
		At:             ev.At,
		WorkDate:       ev.WorkDate.String(),
		IdempotencyKey: ev.IdempotencyKey,
		RecordedAt:     ev.RecordedAt,
	}
}

func toPayProfileDTO(p payroll.PayProfile) PayProfileDTO {
	return PayProfileDTO{
		StaffID:                       string(p.StaffID),
		EmployeeType:                  string(p.EmployeeType),
		HourlyWage:                    p.HourlyWage.String(),
		OvertimeRate:                  p.EffectiveOvertimeRate().String(),
		HolidayBonusPerHour:           p.HolidayBonusPerHour.String(),
		ScheduledStart:                p.ScheduledStart.String(),
		ScheduledEnd:                  p.ScheduledEnd.String(),
		IncludeEarlyArrivalAsOvertime: p.IncludeEarlyArrivalAsOvertime,
	}
}

func toPayrollLineDTO(l payroll.Line) PayrollLineDTO {
	return PayrollLineDTO{
		Date:            l.Date.String(),
		StaffID:         string(l.StaffID),
		StoreID:         string(l.StoreID),
		EmployeeType:    string(l.EmployeeType),
		WorkMinutes:     l.WorkMinutes,
		BreakMinutes:    l.BreakMinutes,
		NightMinutes:    l.NightMinutes,
		OvertimeMinutes: l.OvertimeMinutes,
		IsHoliday:       l.IsHoliday,
		HolidayUnknown:  l.HolidayUnknown,
		BaseAmount:      l.BaseAmount.StringFixed(generic.MoneyPlaces),
		NightBonus:      l.NightBonus.StringFixed(generic.MoneyPlaces),
		HolidayBonus:    l.HolidayBonus.StringFixed(generic.MoneyPlaces),
		OvertimePay:     l.OvertimePay.StringFixed(generic.MoneyPlaces),
		TotalAmount:     l.TotalAmount.StringFixed(generic.MoneyPlaces),
	}
}

func toPayrollReportDTO(r payroll.Report) PayrollReportDTO {
	dto := PayrollReportDTO{
		Month:   r.Month.String(),
		StaffID: string(r.Target.StaffID),
		StoreID: string(r.Target.StoreID),
		Staff:   make([]StaffPayrollDTO, len(r.Staff)),
	}
	for i, sp := range r.Staff {
		lines := make([]PayrollLineDTO, len(sp.Lines))
		for j, l := range sp.Lines {
			lines[j] = toPayrollLineDTO(l)
		}
		dto.Staff[i] = StaffPayrollDTO{
			StaffID:         string(sp.StaffID),
			Lines:           lines,
			PendingDays:     sp.PendingDays,
			WorkMinutes:     sp.WorkMinutes,
			NightMinutes:    sp.NightMinutes,
			OvertimeMinutes: sp.OvertimeMinutes,
			BaseAmount:      sp.BaseAmount.StringFixed(generic.MoneyPlaces),
			NightBonus:      sp.NightBonus.StringFixed(generic.MoneyPlaces),
			HolidayBonus:    sp.HolidayBonus.StringFixed(generic.MoneyPlaces),
			OvertimePay:     sp.OvertimePay.StringFixed(generic.MoneyPlaces),
			TotalAmount:     sp.TotalAmount.StringFixed(generic.MoneyPlaces),
		}
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, StaffFailureDTO{StaffID: string(f.StaffID), Error: f.Err.Error()})
	}
	return dto
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
