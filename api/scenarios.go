/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the store with pay profiles, holidays and clock events that
  exercise specific pricing paths, so the payroll endpoints return
  something meaningful on a fresh database.

AVAILABLE SCENARIOS:
  day-shift:         Hourly, 09:00-18:00 with a 1h lunch break
  night-shift:       Hourly, 20:00-23:30 crossing into night hours
  monthly-overtime:  Monthly, scheduled 09:00-18:00, clocked out 19:15
  holiday-shift:     Hourly, 8h worked on a registered holiday
  re-entry:          Hourly, two intervals on the same work day

HOW SCENARIOS WORK:
  Each scenario uses its own staff member and its own work day in the recent
  past (yesterday, two days ago, ...), so scenarios can be combined. Events
  carry deterministic idempotency keys; loading the same scenario twice
  returns 409.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "night-shift"}
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

const scenarioStoreID generic.StoreID = "store-demo"

type scenario struct {
	ScenarioDTO
	daysAgo int
	load    func(ctx context.Context, h *Handler, id string, day generic.Date) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "day-shift",
			Name:        "Day Shift",
			Description: "Hourly staff, 09:00-18:00 with lunch 12:00-13:00 at 1000/h: 480 work minutes, base 8000",
		},
		daysAgo: 1,
		load:    loadDayShiftScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shift",
			Name:        "Night Shift",
			Description: "Hourly staff, 20:00-23:30 at 1200/h: 90 night minutes, night bonus 450",
		},
		daysAgo: 2,
		load:    loadNightShiftScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "monthly-overtime",
			Name:        "Monthly Overtime",
			Description: "Monthly staff scheduled 09:00-18:00, clocked out 19:15 at 1500/h x1.25: overtime pay 2343.75",
		},
		daysAgo: 3,
		load:    loadMonthlyOvertimeScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "holiday-shift",
			Name:        "Holiday Shift",
			Description: "Hourly staff, 8h on a holiday with a 100/h holiday bonus: holiday bonus 800",
		},
		daysAgo: 4,
		load:    loadHolidayShiftScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "re-entry",
			Name:        "Split Shift",
			Description: "Hourly staff, 09:00-12:00 and 14:00-17:00 on the same day: 360 work minutes",
		},
		daysAgo: 5,
		load:    loadReentryScenario,
	},
}

// ListScenarios returns all available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario seeds one scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	day := generic.DateOf(h.now()).AddDays(-found.daysAgo)
	if err := found.load(r.Context(), h, found.ID, day); err != nil {
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			writeError(w, http.StatusConflict, "Scenario already loaded", err)
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": found.ScenarioDTO,
		"staff_id": scenarioStaffID(found.ID),
		"date":     day.String(),
		"month":    generic.MonthOf(day).String(),
	})
}

func scenarioStaffID(id string) generic.StaffID {
	return generic.StaffID("demo-" + id)
}

// =============================================================================
// LOADERS
// =============================================================================

// shiftStep is one clock event at a JST wall-clock time on the scenario day.
type shiftStep struct {
	Type   attendance.EventType
	Hour   int
	Minute int
}

func (h *Handler) playShift(ctx context.Context, id string, day generic.Date, steps []shiftStep) error {
	staffID := scenarioStaffID(id)
	for i, step := range steps {
		at := day.At(step.Hour, step.Minute)
		_, err := h.Recorder.RecordEvent(ctx, attendance.EventInput{
			StaffID:        staffID,
			StoreID:        scenarioStoreID,
			Type:           step.Type,
			At:             &at,
			IdempotencyKey: fmt.Sprintf("scenario/%s/%s/%d", id, day, i),
		})
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}
	}
	return nil
}

func hourlyProfile(id string, wage int64) payroll.PayProfile {
	return payroll.PayProfile{
		StaffID:      scenarioStaffID(id),
		EmployeeType: payroll.EmployeeHourly,
		HourlyWage:   decimal.NewFromInt(wage),
	}
}

func loadDayShiftScenario(ctx context.Context, h *Handler, id string, day generic.Date) error {
	if err := h.Profiles.SavePayProfile(ctx, hourlyProfile(id, 1000)); err != nil {
		return err
	}
	return h.playShift(ctx, id, day, []shiftStep{
		{attendance.EventIn, 9, 0},
		{attendance.EventBreakStart, 12, 0},
		{attendance.EventBreakEnd, 13, 0},
		{attendance.EventOut, 18, 0},
	})
}

func loadNightShiftScenario(ctx context.Context, h *Handler, id string, day generic.Date) error {
	if err := h.Profiles.SavePayProfile(ctx, hourlyProfile(id, 1200)); err != nil {
		return err
	}
	return h.playShift(ctx, id, day, []shiftStep{
		{attendance.EventIn, 20, 0},
		{attendance.EventOut, 23, 30},
	})
}

func loadMonthlyOvertimeScenario(ctx context.Context, h *Handler, id string, day generic.Date) error {
	profile := payroll.PayProfile{
		StaffID:        scenarioStaffID(id),
		EmployeeType:   payroll.EmployeeMonthly,
		HourlyWage:     decimal.NewFromInt(1500),
		OvertimeRate:   payroll.DefaultOvertimeRate,
		ScheduledStart: generic.ClockTime{Hour: 9},
		ScheduledEnd:   generic.ClockTime{Hour: 18},
	}
	if err := h.Profiles.SavePayProfile(ctx, profile); err != nil {
		return err
	}
	return h.playShift(ctx, id, day, []shiftStep{
		{attendance.EventIn, 9, 0},
		{attendance.EventBreakStart, 12, 0},
		{attendance.EventBreakEnd, 13, 0},
		{attendance.EventOut, 19, 15},
	})
}

func loadHolidayShiftScenario(ctx context.Context, h *Handler, id string, day generic.Date) error {
	profile := hourlyProfile(id, 1000)
	profile.HolidayBonusPerHour = decimal.NewFromInt(100)
	if err := h.Profiles.SavePayProfile(ctx, profile); err != nil {
		return err
	}
	if err := h.Holidays.SaveHoliday(ctx, generic.Holiday{Date: day, Name: "Demo Holiday"}); err != nil {
		return err
	}
	return h.playShift(ctx, id, day, []shiftStep{
		{attendance.EventIn, 9, 0},
		{attendance.EventBreakStart, 12, 0},
		{attendance.EventBreakEnd, 13, 0},
		{attendance.EventOut, 18, 0},
	})
}

func loadReentryScenario(ctx context.Context, h *Handler, id string, day generic.Date) error {
	if err := h.Profiles.SavePayProfile(ctx, hourlyProfile(id, 1000)); err != nil {
		return err
	}
	return h.playShift(ctx, id, day, []shiftStep{
		{attendance.EventIn, 9, 0},
		{attendance.EventOut, 12, 0},
		{attendance.EventIn, 14, 0},
		{attendance.EventOut, 17, 0},
	})
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
