/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

INTERFACES IMPLEMENTED:
  attendance.TxStore:    Clock event log + day-record projection
  payroll.ProfileStore:  Staff pay profiles
  generic.HolidayStore:  Holiday calendar

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on clock_events
  - day_records is a derived projection, rewritten under optimistic
    version checks

KEY TABLES:
  clock_events:  Immutable log, ordered by (at, seq)
  day_records:   One row per staff per work day
  pay_profiles:  One row per staff
  holidays:      One row per JST date

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision) so lexical order is
  chronological order.

CONNECTIONS:
  The pool is limited to a single connection. SQLite allows one writer at a
  time anyway, and ":memory:" databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ attendance.TxStore   = (*Store)(nil)
	_ payroll.ProfileStore = (*Store)(nil)
	_ generic.HolidayStore = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	-- Clock events (append-only log)
	CREATE TABLE IF NOT EXISTS clock_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		staff_id TEXT NOT NULL,
		store_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		at TEXT NOT NULL,
		work_date TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clock_events_staff_date
		ON clock_events(staff_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_clock_events_staff_at
		ON clock_events(staff_id, at, seq);

	-- Day records (derived projection)
	CREATE TABLE IF NOT EXISTS day_records (
		staff_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		store_id TEXT NOT NULL DEFAULT '',
		first_clock_in TEXT,
		clock_in TEXT,
		clock_out TEXT,
		breaks_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		work_minutes INTEGER NOT NULL DEFAULT 0,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		night_minutes INTEGER NOT NULL DEFAULT 0,
		previous_work_minutes INTEGER NOT NULL DEFAULT 0,
		previous_break_minutes INTEGER NOT NULL DEFAULT 0,
		previous_night_minutes INTEGER NOT NULL DEFAULT 0,
		entries INTEGER NOT NULL DEFAULT 0,
		last_event_at TEXT,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (staff_id, work_date)
	);

	CREATE INDEX IF NOT EXISTS idx_day_records_store_date
		ON day_records(store_id, work_date);

	-- Pay profiles
	CREATE TABLE IF NOT EXISTS pay_profiles (
		staff_id TEXT PRIMARY KEY,
		employee_type TEXT NOT NULL,
		hourly_wage TEXT NOT NULL,
		overtime_rate TEXT NOT NULL DEFAULT '0',
		holiday_bonus_per_hour TEXT NOT NULL DEFAULT '0',
		scheduled_start TEXT NOT NULL DEFAULT '00:00',
		scheduled_end TEXT NOT NULL DEFAULT '00:00',
		include_early_arrival BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	-- Holidays (JST dates)
	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLOCK EVENTS (attendance.EventLog)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, ev)
}

func appendEvent(ctx context.Context, q querier, ev attendance.ClockEvent) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO clock_events
		(id, staff_id, store_id, event_type, at, work_date, idempotency_key, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.StaffID,
		ev.StoreID,
		ev.Type,
		formatTime(ev.At),
		ev.WorkDate.String(),
		nullString(ev.IdempotencyKey),
		formatTime(ev.RecordedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "idempotency_key") {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append clock event: %w", err)
	}
	return nil
}

const eventColumns = `id, staff_id, store_id, event_type, at, work_date, idempotency_key, recorded_at`

func (s *Store) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEvents(ctx, s.db, staffID, period)
}

func listEvents(ctx context.Context, q querier, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM clock_events
		WHERE staff_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY at ASC, seq ASC`,
		staffID, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query clock events: %w", err)
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEvent(ctx, s.db, staffID)
}

func lastEvent(ctx context.Context, q querier, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM clock_events
		WHERE staff_id = ?
		ORDER BY at DESC, seq DESC
		LIMIT 1`, staffID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventExists(ctx, s.db, idempotencyKey)
}

func eventExists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clock_events WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (attendance.ClockEvent, error) {
	var (
		ev                      attendance.ClockEvent
		eventType, at, workDate string
		recordedAt              string
		idempotencyKey          sql.NullString
	)
	if err := sc.Scan(&ev.ID, &ev.StaffID, &ev.StoreID, &eventType, &at, &workDate, &idempotencyKey, &recordedAt); err != nil {
		return attendance.ClockEvent{}, err
	}
	var err error
	if ev.Type, err = attendance.ParseEventType(eventType); err != nil {
		return attendance.ClockEvent{}, err
	}
	if ev.At, err = parseTime(at); err != nil {
		return attendance.ClockEvent{}, err
	}
	if ev.WorkDate, err = generic.ParseDate(workDate); err != nil {
		return attendance.ClockEvent{}, err
	}
	if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
		return attendance.ClockEvent{}, err
	}
	ev.IdempotencyKey = idempotencyKey.String
	return ev, nil
}

// =============================================================================
// DAY RECORDS (attendance.DayRecordStore)
// =============================================================================

const dayRecordColumns = `staff_id, work_date, store_id, first_clock_in, clock_in, clock_out, breaks_json,
	status, work_minutes, break_minutes, night_minutes,
	previous_work_minutes, previous_break_minutes, previous_night_minutes,
	entries, last_event_at, version`

func (s *Store) GetDayRecord(ctx context.Context, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDayRecord(ctx, s.db, staffID, date)
}

func getDayRecord(ctx context.Context, q querier, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+dayRecordColumns+`
		FROM day_records
		WHERE staff_id = ? AND work_date = ?`, staffID, date.String())
	rec, err := scanDayRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveDayRecord(ctx context.Context, rec attendance.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveDayRecord(ctx, s.db, rec)
}

// saveDayRecord inserts version 1 and otherwise updates only the row whose
// stored version is exactly one behind.
func saveDayRecord(ctx context.Context, q querier, rec attendance.DayRecord) error {
	breaksJSON, err := json.Marshal(toBreakRows(rec.Breaks))
	if err != nil {
		return fmt.Errorf("failed to encode breaks: %w", err)
	}
	now := formatTime(time.Now())

	if rec.Version == 1 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO day_records (`+dayRecordColumns+`, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.StaffID, rec.Date.String(), rec.StoreID,
			nullTime(rec.FirstClockIn), nullTime(rec.ClockIn), nullTimePtr(rec.ClockOut), string(breaksJSON),
			rec.Status, rec.WorkMinutes, rec.BreakMinutes, rec.NightMinutes,
			rec.PreviousWorkMinutes, rec.PreviousBreakMinutes, rec.PreviousNightMinutes,
			rec.Entries, nullTime(rec.LastEventAt), rec.Version, now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return generic.ErrConcurrentModification
			}
			return fmt.Errorf("failed to insert day record: %w", err)
		}
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE day_records SET
			store_id = ?, first_clock_in = ?, clock_in = ?, clock_out = ?, breaks_json = ?,
			status = ?, work_minutes = ?, break_minutes = ?, night_minutes = ?,
			previous_work_minutes = ?, previous_break_minutes = ?, previous_night_minutes = ?,
			entries = ?, last_event_at = ?, version = ?, updated_at = ?
		WHERE staff_id = ? AND work_date = ? AND version = ?`,
		rec.StoreID, nullTime(rec.FirstClockIn), nullTime(rec.ClockIn), nullTimePtr(rec.ClockOut), string(breaksJSON),
		rec.Status, rec.WorkMinutes, rec.BreakMinutes, rec.NightMinutes,
		rec.PreviousWorkMinutes, rec.PreviousBreakMinutes, rec.PreviousNightMinutes,
		rec.Entries, nullTime(rec.LastEventAt), rec.Version, now,
		rec.StaffID, rec.Date.String(), rec.Version-1,
	)
	if err != nil {
		return fmt.Errorf("failed to update day record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListDayRecords(ctx context.Context, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDayRecords(ctx, s.db, filter)
}

func listDayRecords(ctx context.Context, q querier, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	where, args := filterClause(filter)
	rows, err := q.QueryContext(ctx, `
		SELECT `+dayRecordColumns+`
		FROM day_records`+where+`
		ORDER BY staff_id ASC, work_date ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query day records: %w", err)
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	return staffIDs(ctx, s.db, filter)
}

func staffIDs(ctx context.Context, q querier, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	where, args := filterClause(filter)
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT staff_id FROM day_records`+where+`
		ORDER BY staff_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff ids: %w", err)
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
	if f.StaffID != "" {
		conds = append(conds, "staff_id = ?")
		args = append(args, f.StaffID)
	}
	if f.StoreID != "" {
		conds = append(conds, "store_id = ?")
		args = append(args, f.StoreID)
	}
	if !f.Period.Start.IsZero() {
		conds = append(conds, "work_date >= ? AND work_date <= ?")
		args = append(args, f.Period.Start.String(), f.Period.End.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type breakRow struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

func toBreakRows(breaks []attendance.BreakInterval) []breakRow {
	rows := make([]breakRow, len(breaks))
	for i, b := range breaks {
		rows[i] = breakRow{Start: formatTime(b.Start)}
		if b.End != nil {
			end := formatTime(*b.End)
			rows[i].End = &end
		}
	}
	return rows
}

func fromBreakRows(rows []breakRow) ([]attendance.BreakInterval, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	breaks := make([]attendance.BreakInterval, len(rows))
	for i, r := range rows {
		start, err := parseTime(r.Start)
		if err != nil {
			return nil, err
		}
		breaks[i] = attendance.BreakInterval{Start: start}
		if r.End != nil {
			end, err := parseTime(*r.End)
			if err != nil {
				return nil, err
			}
			breaks[i].End = &end
		}
	}
	return breaks, nil
}

func scanDayRecord(sc scanner) (attendance.DayRecord, error) {
	var (
		rec                                     attendance.DayRecord
		workDate, status, breaksJSON            string
		firstClockIn, clockIn, clockOut, lastAt sql.NullString
	)
	err := sc.Scan(
		&rec.StaffID, &workDate, &rec.StoreID, &firstClockIn, &clockIn, &clockOut, &breaksJSON,
		&status, &rec.WorkMinutes, &rec.BreakMinutes, &rec.NightMinutes,
		&rec.PreviousWorkMinutes, &rec.PreviousBreakMinutes, &rec.PreviousNightMinutes,
		&rec.Entries, &lastAt, &rec.Version,
	)
	if err != nil {
		return attendance.DayRecord{}, err
	}

	if rec.Date, err = generic.ParseDate(workDate); err != nil {
		return attendance.DayRecord{}, err
	}
	rec.Status = attendance.State(status)
	if rec.FirstClockIn, err = parseNullTime(firstClockIn); err != nil {
		return attendance.DayRecord{}, err
	}
	if rec.ClockIn, err = parseNullTime(clockIn); err != nil {
		return attendance.DayRecord{}, err
	}
	if rec.LastEventAt, err = parseNullTime(lastAt); err != nil {
		return attendance.DayRecord{}, err
	}
	if clockOut.Valid {
		t, err := parseTime(clockOut.String)
		if err != nil {
			return attendance.DayRecord{}, err
		}
		rec.ClockOut = &t
	}

	var rows []breakRow
	if err := json.Unmarshal([]byte(breaksJSON), &rows); err != nil {
		return attendance.DayRecord{}, fmt.Errorf("failed to decode breaks: %w", err)
	}
	if rec.Breaks, err = fromBreakRows(rows); err != nil {
		return attendance.DayRecord{}, err
	}
	return rec, nil
}

// =============================================================================
// TRANSACTIONS (attendance.TxStore)
// =============================================================================

// WithTx executes fn within a SQL transaction. Transient lock errors are
// retried with backoff; fn may therefore run more than once and must not
// have side effects outside the store.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return retryOnContention(func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer sqlTx.Rollback()

		if err := fn(&txView{tx: sqlTx}); err != nil {
			return err
		}
		return sqlTx.Commit()
	})
}

// txView routes every store call through one *sql.Tx without taking the
// store mutex (WithTx already holds it).
type txView struct {
	tx *sql.Tx
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
// PAY PROFILES (payroll.ProfileStore)
// =============================================================================

func (s *Store) GetPayProfile(ctx context.Context, staffID generic.StaffID) (payroll.PayProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                               payroll.PayProfile
		employeeType, wage, rate, bonus string
		start, end                      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT staff_id, employee_type, hourly_wage, overtime_rate, holiday_bonus_per_hour,
		       scheduled_start, scheduled_end, include_early_arrival
		FROM pay_profiles WHERE staff_id = ?`, staffID,
	).Scan(&p.StaffID, &employeeType, &wage, &rate, &bonus, &start, &end, &p.IncludeEarlyArrivalAsOvertime)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayProfile{}, generic.ErrPayProfileNotFound
	}
	if err != nil {
		return payroll.PayProfile{}, fmt.Errorf("failed to get pay profile: %w", err)
	}

	p.EmployeeType = payroll.EmployeeType(employeeType)
	if p.HourlyWage, err = decimal.NewFromString(wage); err != nil {
		return payroll.PayProfile{}, fmt.Errorf("corrupt hourly_wage for %s: %w", staffID, err)
	}
	if p.OvertimeRate, err = decimal.NewFromString(rate); err != nil {
		return payroll.PayProfile{}, fmt.Errorf("corrupt overtime_rate for %s: %w", staffID, err)
	}
	if p.HolidayBonusPerHour, err = decimal.NewFromString(bonus); err != nil {
		return payroll.PayProfile{}, fmt.Errorf("corrupt holiday_bonus_per_hour for %s: %w", staffID, err)
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
	s.mu.Lock()
	defer s.mu.Unlock()

	return retryOnContention(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO pay_profiles
			(staff_id, employee_type, hourly_wage, overtime_rate, holiday_bonus_per_hour,
			 scheduled_start, scheduled_end, include_early_arrival, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(staff_id) DO UPDATE SET
				employee_type = excluded.employee_type,
				hourly_wage = excluded.hourly_wage,
				overtime_rate = excluded.overtime_rate,
				holiday_bonus_per_hour = excluded.holiday_bonus_per_hour,
				scheduled_start = excluded.scheduled_start,
				scheduled_end = excluded.scheduled_end,
				include_early_arrival = excluded.include_early_arrival,
				updated_at = excluded.updated_at`,
			p.StaffID, p.EmployeeType, p.HourlyWage.String(), p.OvertimeRate.String(),
			p.HolidayBonusPerHour.String(), p.ScheduledStart.String(), p.ScheduledEnd.String(),
			p.IncludeEarlyArrivalAsOvertime, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("failed to save pay profile: %w", err)
		}
		return nil
	})
}

// =============================================================================
// HOLIDAYS (generic.HolidayStore)
// =============================================================================

func (s *Store) IsHoliday(ctx context.Context, date generic.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM holidays WHERE date = ?", date.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check holiday: %w", err)
	}
	return count > 0, nil
}

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return retryOnContention(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO holidays (date, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET name = excluded.name`,
			h.Date.String(), h.Name, formatTime(time.Now()),
		)
		return err
	})
}

func (s *Store) DeleteHoliday(ctx context.Context, date generic.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", date.String())
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrHolidayNotFound
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context, year int) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, name FROM holidays
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		generic.NewDate(year, time.January, 1).String(),
		generic.NewDate(year, time.December, 31).String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
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

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullTime(*t)
}

func parseNullTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid {
		return time.Time{}, nil
	}
	return parseTime(ns.String)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
