package payroll

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many staff members a run prices at once.
const DefaultConcurrency = 8

// Service runs monthly payroll over stored day records.
//
// Each staff member is loaded and priced on its own, so memory is bounded
// by one staff member's month and a bad profile or bad record only fails
// that staff member's entry in the report.
type Service struct {
	Records     attendance.DayRecordStore
	Profiles    ProfileStore
	Holidays    generic.HolidayCalendar
	Concurrency int
	Logger      *slog.Logger
}

func NewService(records attendance.DayRecordStore, profiles ProfileStore, holidays generic.HolidayCalendar) *Service {
	if holidays == nil {
		holidays = generic.NoHolidays{}
	}
	return &Service{
		Records:     records,
		Profiles:    profiles,
		Holidays:    holidays,
		Concurrency: DefaultConcurrency,
		Logger:      slog.Default(),
	}
}

// ComputeMonth prices every finalized day record of the month for a single
// staff member or for every staff member of a store.
//
// The returned error is reserved for failures of the run itself (bad
// target, store unavailable, cancelled context). Per-staff failures are
// reported in Report.Failures.
func (s *Service) ComputeMonth(ctx context.Context, target Target, month generic.Month) (Report, error) {
	if err := validateTarget(target); err != nil {
		return Report{}, err
	}
	report := Report{Month: month, Target: target}
	period := month.Period()

	staffIDs := []generic.StaffID{target.StaffID}
	if target.StaffID == "" {
		ids, err := s.Records.StaffIDs(ctx, attendance.DayRecordFilter{StoreID: target.StoreID, Period: period})
		if err != nil {
			return Report{}, err
		}
		staffIDs = ids
	}

	results := make([]StaffPayroll, len(staffIDs))
	failures := make([]error, len(staffIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, staffID := range staffIDs {
		g.Go(func() error {
			sp, err := s.computeStaff(gctx, staffID, target.StoreID, period)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				return nil
			}
			results[i] = sp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	for i, staffID := range staffIDs {
		if failures[i] != nil {
			s.logger().Warn("payroll failed for staff",
				"staffId", staffID, "month", month.String(), "err", failures[i])
			report.Failures = append(report.Failures, StaffFailure{StaffID: staffID, Err: failures[i]})
			continue
		}
		report.Staff = append(report.Staff, results[i])
	}
	return report, nil
}

func (s *Service) computeStaff(ctx context.Context, staffID generic.StaffID, storeID generic.StoreID, period generic.Period) (StaffPayroll, error) {
	if err := ctx.Err(); err != nil {
		return StaffPayroll{}, err
	}
	sp := StaffPayroll{StaffID: staffID}
	zeroAmounts(&sp)

	records, err := s.Records.ListDayRecords(ctx, attendance.DayRecordFilter{
		StaffID: staffID,
		StoreID: storeID,
		Period:  period,
	})
	if err != nil {
		return StaffPayroll{}, err
	}
	if len(records) == 0 {
		return sp, nil
	}

	profile, err := s.Profiles.GetPayProfile(ctx, staffID)
	if err != nil {
		return StaffPayroll{}, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	for _, rec := range records {
		line, err := Calculate(ctx, rec, profile, s.Holidays)
		if errors.Is(err, ErrOpenDayRecord) {
			sp.PendingDays++
			continue
		}
		if err != nil {
			return StaffPayroll{}, err
		}
		if line.HolidayUnknown {
			s.logger().Warn("holiday lookup failed, priced as working day",
				"staffId", staffID, "date", line.Date.String())
		}
		sp.add(line)
	}
	return sp, nil
}

func (sp *StaffPayroll) add(line Line) {
	sp.Lines = append(sp.Lines, line)
	sp.WorkMinutes += line.WorkMinutes
	sp.NightMinutes += line.NightMinutes
	sp.OvertimeMinutes += line.OvertimeMinutes
	sp.BaseAmount = sp.BaseAmount.Add(line.BaseAmount)
	sp.NightBonus = sp.NightBonus.Add(line.NightBonus)
	sp.HolidayBonus = sp.HolidayBonus.Add(line.HolidayBonus)
	sp.OvertimePay = sp.OvertimePay.Add(line.OvertimePay)
	sp.TotalAmount = sp.TotalAmount.Add(line.TotalAmount)
}

func zeroAmounts(sp *StaffPayroll) {
	sp.BaseAmount = decimal.Zero
	sp.NightBonus = decimal.Zero
	sp.HolidayBonus = decimal.Zero
	sp.OvertimePay = decimal.Zero
	sp.TotalAmount = decimal.Zero
}

func validateTarget(t Target) error {
	hasStaff := strings.TrimSpace(string(t.StaffID)) != ""
	hasStore := strings.TrimSpace(string(t.StoreID)) != ""
	if hasStaff == hasStore {
		return generic.NewInputError("target", "exactly one of staff_id or store_id is required")
	}
	return nil
}

func (s *Service) concurrency() int {
	if s.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
