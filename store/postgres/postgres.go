// Package postgres implements the attendance, payroll and holiday stores on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ attendance.TxStore   = (*Store)(nil)
	_ payroll.ProfileStore = (*Store)(nil)
	_ generic.HolidayStore = (*Store)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool against databaseURL and applies pending migrations.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())"); err != nil {
		return err
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		version := strings.TrimSuffix(strings.TrimPrefix(file, "migrations/"), ".sql")
		var applied bool
		if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		sqlBytes, err := migrations.ReadFile(file)
		if err != nil {
			return err
		}
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// txError maps a serialization failure under SERIALIZABLE isolation to
// ErrConcurrentModification so callers can retry it like a version conflict.
func txError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return generic.ErrConcurrentModification
	}
	return err
}

// =============================================================================
// CLOCK EVENTS
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	return appendEvent(ctx, s.pool, ev)
}

func appendEvent(ctx context.Context, q querier, ev attendance.ClockEvent) error {
	var key *string
	if ev.IdempotencyKey != "" {
		key = &ev.IdempotencyKey
	}
	_, err := q.Exec(ctx, `
		INSERT INTO clock_events (id, staff_id, store_id, event_type, at, work_date, idempotency_key, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8)`,
		string(ev.ID), string(ev.StaffID), string(ev.StoreID), string(ev.Type),
		ev.At, ev.WorkDate.String(), key, ev.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("append clock event: %w", err)
	}
	return nil
}

const eventColumns = `id::text, staff_id, store_id, event_type, at, work_date::text, COALESCE(idempotency_key, ''), recorded_at`

func (s *Store) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	return listEvents(ctx, s.pool, staffID, period)
}

func listEvents(ctx context.Context, q querier, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	rows, err := q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM clock_events
		WHERE staff_id = $1 AND work_date BETWEEN $2::date AND $3::date
		ORDER BY at, seq`,
		string(staffID), period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []attendance.ClockEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) LastEvent(ctx context.Context, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	return lastEvent(ctx, s.pool, staffID)
}

func lastEvent(ctx context.Context, q querier, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	row := q.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM clock_events
		WHERE staff_id = $1
		ORDER BY at DESC, seq DESC
		LIMIT 1`, string(staffID))
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return eventExists(ctx, s.pool, idempotencyKey)
}

func eventExists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM clock_events WHERE idempotency_key = $1)", idempotencyKey,
	).Scan(&exists)
	return exists, err
}

func scanEvent(row pgx.Row) (attendance.ClockEvent, error) {
	var (
		ev                        attendance.ClockEvent
		id, staffID, storeID, typ string
		workDate, key             string
	)
	if err := row.Scan(&id, &staffID, &storeID, &typ, &ev.At, &workDate, &key, &ev.RecordedAt); err != nil {
		return attendance.ClockEvent{}, err
	}
	var err error
	if ev.Type, err = attendance.ParseEventType(typ); err != nil {
		return attendance.ClockEvent{}, err
	}
	if ev.WorkDate, err = generic.ParseDate(workDate); err != nil {
		return attendance.ClockEvent{}, err
	}
	ev.ID = generic.EventID(id)
	ev.StaffID = generic.StaffID(staffID)
	ev.StoreID = generic.StoreID(storeID)
	ev.IdempotencyKey = key
	return ev, nil
}

// =============================================================================
// DAY RECORDS
// =============================================================================

const dayRecordColumns = `staff_id, work_date::text, store_id, first_clock_in, clock_in, clock_out, breaks::text,
	status, work_minutes, break_minutes, night_minutes,
	previous_work_minutes, previous_break_minutes, previous_night_minutes,
	entries, last_event_at, version`

func (s *Store) GetDayRecord(ctx context.Context, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	return getDayRecord(ctx, s.pool, staffID, date)
}

func getDayRecord(ctx context.Context, q querier, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	row := q.QueryRow(ctx, `
		SELECT `+dayRecordColumns+`
		FROM day_records
		WHERE staff_id = $1 AND work_date = $2::date`, string(staffID), date.String())
	rec, err := scanDayRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveDayRecord(ctx context.Context, rec attendance.DayRecord) error {
	return saveDayRecord(ctx, s.pool, rec)
}

// saveDayRecord inserts version 1 and otherwise updates only the row whose
// stored version is exactly one behind.
func saveDayRecord(ctx context.Context, q querier, rec attendance.DayRecord) error {
	breaks, err := json.Marshal(toBreakRows(rec.Breaks))
	if err != nil {
		return fmt.Errorf("encode breaks: %w", err)
	}
	args := []any{
		string(rec.StaffID), rec.Date.String(), string(rec.StoreID),
		nullTime(rec.FirstClockIn), nullTime(rec.ClockIn), rec.ClockOut, string(breaks),
		string(rec.Status), rec.WorkMinutes, rec.BreakMinutes, rec.NightMinutes,
		rec.PreviousWorkMinutes, rec.PreviousBreakMinutes, rec.PreviousNightMinutes,
		rec.Entries, nullTime(rec.LastEventAt), rec.Version,
	}

	if rec.Version == 1 {
		_, err := q.Exec(ctx, `
			INSERT INTO day_records (staff_id, work_date, store_id, first_clock_in, clock_in, clock_out, breaks,
				status, work_minutes, break_minutes, night_minutes,
				previous_work_minutes, previous_break_minutes, previous_night_minutes,
				entries, last_event_at, version)
			VALUES ($1, $2::date, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return generic.ErrConcurrentModification
			}
			return fmt.Errorf("insert day record: %w", err)
		}
		return nil
	}

	tag, err := q.Exec(ctx, `
		UPDATE day_records SET
			store_id = $3, first_clock_in = $4, clock_in = $5, clock_out = $6, breaks = $7::jsonb,
			status = $8, work_minutes = $9, break_minutes = $10, night_minutes = $11,
			previous_work_minutes = $12, previous_break_minutes = $13, previous_night_minutes = $14,
			entries = $15, last_event_at = $16, version = $17, updated_at = now()
		WHERE staff_id = $1 AND work_date = $2::date AND version = $17 - 1`, args...)
	if err != nil {
		return fmt.Errorf("update day record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListDayRecords(ctx context.Context, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	return listDayRecords(ctx, s.pool, filter)
}

func listDayRecords(ctx context.Context, q querier, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	where, args := filterClause(filter)
	rows, err := q.Query(ctx, `
		SELECT `+dayRecordColumns+`
		FROM day_records`+where+`
		ORDER BY staff_id, work_date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.DayRecord
	for rows.Next() {
		rec, err := scanDayRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) StaffIDs(ctx context.Context, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	return staffIDs(ctx, s.pool, filter)
}

func staffIDs(ctx context.Context, q querier, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	where, args := filterClause(filter)
	rows, err := q.Query(ctx, `SELECT DISTINCT staff_id FROM day_records`+where+` ORDER BY staff_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []generic.StaffID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, generic.StaffID(id))
	}
	return ids, rows.Err()
}

func filterClause(f attendance.DayRecordFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.StaffID != "" {
		add("staff_id = $%d", string(f.StaffID))
	}
	if f.StoreID != "" {
		add("store_id = $%d", string(f.StoreID))
	}
	if !f.Period.Start.IsZero() {
		add("work_date >= $%d::date", f.Period.Start.String())
		add("work_date <= $%d::date", f.Period.End.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type breakRow struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func toBreakRows(breaks []attendance.BreakInterval) []breakRow {
	rows := make([]breakRow, len(breaks))
	for i, b := range breaks {
		rows[i] = breakRow{Start: b.Start, End: b.End}
	}
	return rows
}

func scanDayRecord(row pgx.Row) (attendance.DayRecord, error) {
	var (
		rec                                attendance.DayRecord
		staffID, workDate, storeID, breaks string
		status                             string
		firstClockIn, clockIn, lastEventAt *time.Time
	)
	err := row.Scan(
		&staffID, &workDate, &storeID, &firstClockIn, &clockIn, &rec.ClockOut, &breaks,
		&status, &rec.WorkMinutes, &rec.BreakMinutes, &rec.NightMinutes,
		&rec.PreviousWorkMinutes, &rec.PreviousBreakMinutes, &rec.PreviousNightMinutes,
		&rec.Entries, &lastEventAt, &rec.Version,
	)
	if err != nil {
		return attendance.DayRecord{}, err
	}
	if rec.Date, err = generic.ParseDate(workDate); err != nil {
		return attendance.DayRecord{}, err
	}
	rec.StaffID = generic.StaffID(staffID)
	rec.StoreID = generic.StoreID(storeID)
	rec.Status = attendance.State(status)
	rec.FirstClockIn = derefTime(firstClockIn)
	rec.ClockIn = derefTime(clockIn)
	rec.LastEventAt = derefTime(lastEventAt)

	var rows []breakRow
	if err := json.Unmarshal([]byte(breaks), &rows); err != nil {
		return attendance.DayRecord{}, fmt.Errorf("decode breaks: %w", err)
	}
	for _, r := range rows {
		rec.Breaks = append(rec.Breaks, attendance.BreakInterval{Start: r.Start, End: r.End})
	}
	return rec, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside one serializable transaction. Per-staff writes are
// also guarded by the day-record version check, so a serialization failure
// surfaces as generic.ErrConcurrentModification.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txView{tx: tx}); err != nil {
		return txError(err)
	}
	return txError(tx.Commit(ctx))
}

type txView struct {
	tx pgx.Tx
}

func (v *txView) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	return appendEvent(ctx, v.tx, ev)
}

func (v *txView) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	return listEvents(ctx, v.tx, staffID, period)
}

func (v *txView) LastEvent(ctx context.Context, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	return lastEvent(ctx, v.tx, staffID)
}

func (v *txView) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return eventExists(ctx, v.tx, idempotencyKey)
}

func (v *txView) GetDayRecord(ctx context.Context, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	return getDayRecord(ctx, v.tx, staffID, date)
}

func (v *txView) SaveDayRecord(ctx context.Context, rec attendance.DayRecord) error {
	return saveDayRecord(ctx, v.tx, rec)
}

func (v *txView) ListDayRecords(ctx context.Context, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	return listDayRecords(ctx, v.tx, filter)
}

func (v *txView) StaffIDs(ctx context.Context, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	return staffIDs(ctx, v.tx, filter)
}

// =============================================================================
// PAY PROFILES
// =============================================================================

func (s *Store) GetPayProfile(ctx context.Context, staffID generic.StaffID) (payroll.PayProfile, error) {
	var (
		p                                   payroll.PayProfile
		id, employeeType, wage, rate, bonus string
		start, end                          string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT staff_id, employee_type, hourly_wage::text, overtime_rate::text, holiday_bonus_per_hour::text,
		       scheduled_start, scheduled_end, include_early_arrival
		FROM pay_profiles WHERE staff_id = $1`, string(staffID),
	).Scan(&id, &employeeType, &wage, &rate, &bonus, &start, &end, &p.IncludeEarlyArrivalAsOvertime)
	if errors.Is(err, pgx.ErrNoRows) {
		return payroll.PayProfile{}, generic.ErrPayProfileNotFound
	}
	if err != nil {
		return payroll.PayProfile{}, err
	}

	p.StaffID = generic.StaffID(id)
	p.EmployeeType = payroll.EmployeeType(employeeType)
	if p.HourlyWage, err = decimal.NewFromString(wage); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.OvertimeRate, err = decimal.NewFromString(rate); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.HolidayBonusPerHour, err = decimal.NewFromString(bonus); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.ScheduledStart, err = generic.ParseClockTime(start); err != nil {
		return payroll.PayProfile{}, err
	}
	if p.ScheduledEnd, err = generic.ParseClockTime(end); err != nil {
		return payroll.PayProfile{}, err
	}
	return p, nil
}

func (s *Store) SavePayProfile(ctx context.Context, p payroll.PayProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pay_profiles
			(staff_id, employee_type, hourly_wage, overtime_rate, holiday_bonus_per_hour,
			 scheduled_start, scheduled_end, include_early_arrival)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
		ON CONFLICT (staff_id) DO UPDATE SET
			employee_type = EXCLUDED.employee_type,
			hourly_wage = EXCLUDED.hourly_wage,
			overtime_rate = EXCLUDED.overtime_rate,
			holiday_bonus_per_hour = EXCLUDED.holiday_bonus_per_hour,
			scheduled_start = EXCLUDED.scheduled_start,
			scheduled_end = EXCLUDED.scheduled_end,
			include_early_arrival = EXCLUDED.include_early_arrival,
			updated_at = now()`,
		string(p.StaffID), string(p.EmployeeType), p.HourlyWage.String(), p.OvertimeRate.String(),
		p.HolidayBonusPerHour.String(), p.ScheduledStart.String(), p.ScheduledEnd.String(),
		p.IncludeEarlyArrivalAsOvertime)
	return err
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) IsHoliday(ctx context.Context, date generic.Date) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM holidays WHERE date = $1::date)", date.String(),
	).Scan(&exists)
	return exists, err
}

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO holidays (date, name) VALUES ($1::date, $2)
		ON CONFLICT (date) DO UPDATE SET name = EXCLUDED.name`,
		h.Date.String(), h.Name)
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, date generic.Date) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM holidays WHERE date = $1::date", date.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrHolidayNotFound
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, year int) ([]generic.Holiday, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date::text, name FROM holidays
		WHERE date BETWEEN $1::date AND $2::date
		ORDER BY date`,
		generic.NewDate(year, time.January, 1).String(),
		generic.NewDate(year, time.December, 31).String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var date, name string
		if err := rows.Scan(&date, &name); err != nil {
			return nil, err
		}
		d, err := generic.ParseDate(date)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, generic.Holiday{Date: d, Name: name})
	}
	return holidays, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
