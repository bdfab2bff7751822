/*
handlers.go - HTTP API handlers for the attendance and payroll engine

ENDPOINTS:
  Attendance:
    POST   /api/staff/{staffID}/events          Record a clock event
    GET    /api/staff/{staffID}/events          Raw event log (?from=&to=)
    GET    /api/staff/{staffID}/state           Current attendance state
    GET    /api/staff/{staffID}/days/{date}     Aggregated work day

  Pay profiles:
    GET    /api/staff/{staffID}/pay-profile
    PUT    /api/staff/{staffID}/pay-profile

  Payroll:
    GET    /api/payroll?month=&staff_id=|store_id=
    GET    /api/payroll/export?month=&staff_id=|store_id=   (text/csv)

  Holidays:
    GET    /api/holidays?year=
    POST   /api/holidays
    DELETE /api/holidays/{date}

  Admin:
    GET    /api/admin/open-shifts               Shifts left open too long

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status chosen from the error chain:
  - 400: Validation errors, unknown event types, clock skew
  - 404: Missing pay profile or holiday
  - 409: Duplicate idempotency key, concurrent modification
  - 422: Event not allowed in the current state
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Recorder *attendance.Recorder
	Payroll  *payroll.Service
	Profiles payroll.ProfileStore
	Holidays generic.HolidayStore
	Monitor  *StaleShiftMonitor

	// Ready reports whether backing services are reachable. Nil means ready.
	Ready  func(ctx context.Context) error
	Now    func() time.Time
	Logger *slog.Logger
}

// NewHandler wires handlers over a recorder and a payroll service that share
// the same stores.
func NewHandler(recorder *attendance.Recorder, svc *payroll.Service, holidays generic.HolidayStore) *Handler {
	return &Handler{
		Recorder: recorder,
		Payroll:  svc,
		Profiles: svc.Profiles,
		Holidays: holidays,
		Monitor:  NewStaleShiftMonitor(recorder.Store),
		Logger:   slog.Default(),
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// RecordEvent applies one clock event.
// POST /api/staff/{staffID}/events
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	eventType, err := attendance.ParseEventType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event type", err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	rec, err := h.Recorder.RecordEvent(r.Context(), attendance.EventInput{
		StaffID:        staffID,
		StoreID:        generic.StoreID(req.StoreID),
		Type:           eventType,
		At:             req.At,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDayRecordDTO(rec))
}

// GetState returns the staff member's current state.
// GET /api/staff/{staffID}/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))
	state, err := h.Recorder.CurrentState(r.Context(), staffID)
	if err != nil {
		h.writeDomainError(w, "Failed to get state", err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDTO(state))
}

// GetDay returns the aggregated minutes of one work day.
// GET /api/staff/{staffID}/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	summary, err := h.Recorder.AggregatedDay(r.Context(), staffID, date)
	if err != nil {
		h.writeDomainError(w, "Failed to aggregate day", err)
		return
	}
	writeJSON(w, http.StatusOK, toDaySummaryDTO(summary))
}

// ListEvents returns the raw event log over a range of work days.
// GET /api/staff/{staffID}/events?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))
	period, err := parsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	events, err := h.Recorder.Events(r.Context(), staffID, period)
	if err != nil {
		h.writeDomainError(w, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListOpenShifts returns records still open past the stale threshold.
// GET /api/admin/open-shifts
func (h *Handler) ListOpenShifts(w http.ResponseWriter, r *http.Request) {
	now := h.Monitor.now()
	stale, err := h.Monitor.Find(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to find open shifts", err)
		return
	}
	dtos := make([]OpenShiftDTO, len(stale))
	for i, rec := range stale {
		dtos[i] = OpenShiftDTO{
			StaffID:     string(rec.StaffID),
			StoreID:     string(rec.StoreID),
			Date:        rec.Date.String(),
			State:       string(rec.Status),
			LastEventAt: rec.LastEventAt,
			OpenFor:     now.Sub(rec.LastEventAt).Truncate(time.Minute).String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAY PROFILE HANDLERS
// =============================================================================

// GetPayProfile returns a staff member's pay profile.
// GET /api/staff/{staffID}/pay-profile
func (h *Handler) GetPayProfile(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))
	p, err := h.Profiles.GetPayProfile(r.Context(), staffID)
	if err != nil {
		h.writeDomainError(w, "Failed to get pay profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayProfileDTO(p))
}

// PutPayProfile creates or replaces a staff member's pay profile.
// PUT /api/staff/{staffID}/pay-profile
func (h *Handler) PutPayProfile(w http.ResponseWriter, r *http.Request) {
	staffID := generic.StaffID(chi.URLParam(r, "staffID"))

	var req PayProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := parsePayProfile(staffID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pay profile", err)
		return
	}
	if err := h.Profiles.SavePayProfile(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to save pay profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayProfileDTO(p))
}

func parsePayProfile(staffID generic.StaffID, req PayProfileDTO) (payroll.PayProfile, error) {
	employeeType, err := payroll.ParseEmployeeType(req.EmployeeType)
	if err != nil {
		return payroll.PayProfile{}, err
	}
	p := payroll.PayProfile{
		StaffID:                       staffID,
		EmployeeType:                  employeeType,
		IncludeEarlyArrivalAsOvertime: req.IncludeEarlyArrivalAsOvertime,
	}
	if p.HourlyWage, err = parseDecimal("hourly_wage", req.HourlyWage); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.OvertimeRate, err = parseDecimal("overtime_rate", req.OvertimeRate); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.HolidayBonusPerHour, err = parseDecimal("holiday_bonus_per_hour", req.HolidayBonusPerHour); err != nil {
		return payroll.PayProfile{}, err
	}
	if req.ScheduledStart != "" {
		if p.ScheduledStart, err = generic.ParseClockTime(req.ScheduledStart); err != nil {
			return payroll.PayProfile{}, err
		}
	}
	if req.ScheduledEnd != "" {
		if p.ScheduledEnd, err = generic.ParseClockTime(req.ScheduledEnd); err != nil {
			return payroll.PayProfile{}, err
		}
	}
	return p, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, generic.NewInputError(field, "not a decimal: %q", s)
	}
	return d, nil
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// GetPayroll prices a month for one staff member or a whole store.
// GET /api/payroll?month=YYYY-MM&staff_id=...  or  &store_id=...
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	report, ok := h.computePayroll(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPayrollReportDTO(report))
}

// ExportPayroll renders the same report as flat CSV rows.
// GET /api/payroll/export?month=YYYY-MM&staff_id=...  or  &store_id=...
func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	report, ok := h.computePayroll(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%s.csv"`, report.Month))
	w.Header().Set("X-Payroll-Failures", strconv.Itoa(len(report.Failures)))
	w.WriteHeader(http.StatusOK)
	if err := payroll.WriteCSV(w, report.Rows()); err != nil {
		h.logger().Error("payroll export failed", "month", report.Month.String(), "err", err)
	}
}

func (h *Handler) computePayroll(w http.ResponseWriter, r *http.Request) (payroll.Report, bool) {
	q := r.URL.Query()
	month, err := generic.ParseMonth(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return payroll.Report{}, false
	}
	target := payroll.Target{
		StaffID: generic.StaffID(q.Get("staff_id")),
		StoreID: generic.StoreID(q.Get("store_id")),
	}
	report, err := h.Payroll.ComputeMonth(r.Context(), target, month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute payroll", err)
		return payroll.Report{}, false
	}
	return report, true
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the holidays of a year (default: current JST year).
// GET /api/holidays?year=2025
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().In(generic.JST).Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	holidays, err := h.Holidays.ListHolidays(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{Date: hol.Date.String(), Name: hol.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds or renames a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Holiday name is required", nil)
		return
	}
	if err := h.Holidays.SaveHoliday(r.Context(), generic.Holiday{Date: date, Name: req.Name}); err != nil {
		h.writeDomainError(w, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayDTO{Date: date.String(), Name: req.Name})
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{date}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Holidays.DeleteHoliday(r.Context(), date); err != nil {
		h.writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Not ready", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePeriod(from, to string) (generic.Period, error) {
	if from == "" {
		return generic.Period{}, generic.NewInputError("from", "required")
	}
	start, err := generic.ParseDate(from)
	if err != nil {
		return generic.Period{}, err
	}
	end := start
	if to != "" {
		if end, err = generic.ParseDate(to); err != nil {
			return generic.Period{}, err
		}
	}
	period := generic.Period{Start: start, End: end}
	return period, period.Validate()
}

// statusFor maps a domain error chain to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, attendance.ErrClockSkew):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey),
		errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().Error(message, "err", err)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
