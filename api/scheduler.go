/*
scheduler.go - Periodic check for shifts left open

PURPOSE:
  Staff sometimes forget to clock out. Open records are never priced, so a
  forgotten clock-out silently delays payroll. The monitor periodically lists
  day records that are still CLOCKED_IN or BREAKING and whose last event is
  older than StaleAfter, and logs a warning for each. The same query backs
  GET /api/admin/open-shifts.

  The monitor never closes shifts itself; corrections go through the normal
  event API.

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - StaleAfter:    How long a record may stay open (default: 16 hours)
  - LookbackDays:  How many work days back to scan (default: 7)

USAGE:
  monitor := NewStaleShiftMonitor(store)
  monitor.Start()
  // ... later
  monitor.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

const (
	DefaultCheckInterval = time.Hour
	DefaultStaleAfter    = 16 * time.Hour
	DefaultLookbackDays  = 7
)

// StaleShiftMonitor reports day records left open past StaleAfter.
type StaleShiftMonitor struct {
	Records       attendance.DayRecordStore
	CheckInterval time.Duration
	StaleAfter    time.Duration
	LookbackDays  int
	Now           func() time.Time
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewStaleShiftMonitor(records attendance.DayRecordStore) *StaleShiftMonitor {
	return &StaleShiftMonitor{
		Records:       records,
		CheckInterval: DefaultCheckInterval,
		StaleAfter:    DefaultStaleAfter,
		LookbackDays:  DefaultLookbackDays,
	}
}

// Start begins periodic checks. Calling Start twice is a no-op.
func (m *StaleShiftMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.logger().Info("open shift monitor started",
		"interval", m.CheckInterval.String(), "staleAfter", m.StaleAfter.String())
}

// Stop halts the monitor and waits for an in-flight check to finish.
func (m *StaleShiftMonitor) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.ticker = nil
	m.mu.Unlock()

	m.wg.Wait()
	m.logger().Info("open shift monitor stopped")
}

func (m *StaleShiftMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	m.Check(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check runs one scan and logs each stale record. It returns how many were
// found.
func (m *StaleShiftMonitor) Check(ctx context.Context) int {
	stale, err := m.Find(ctx)
	if err != nil {
		m.logger().Error("open shift check failed", "err", err)
		return 0
	}
	now := m.now()
	for _, rec := range stale {
		m.logger().Warn("shift still open",
			"staffId", rec.StaffID,
			"storeId", rec.StoreID,
			"workDate", rec.Date.String(),
			"state", rec.Status,
			"openFor", now.Sub(rec.LastEventAt).Truncate(time.Minute).String())
	}
	return len(stale)
}

// Find lists open records from the lookback window whose last event is
// older than StaleAfter, ordered by staff then date.
func (m *StaleShiftMonitor) Find(ctx context.Context) ([]attendance.DayRecord, error) {
	now := m.now()
	today := generic.DateOf(now)
	lookback := m.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}
	staleAfter := m.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	records, err := m.Records.ListDayRecords(ctx, attendance.DayRecordFilter{
		Period: generic.Period{Start: today.AddDays(-lookback), End: today},
	})
	if err != nil {
		return nil, err
	}

	var stale []attendance.DayRecord
	for _, rec := range records {
		if rec.Status == attendance.StateClockedOut {
			continue
		}
		if now.Sub(rec.LastEventAt) > staleAfter {
			stale = append(stale, rec)
		}
	}
	return stale, nil
}

func (m *StaleShiftMonitor) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *StaleShiftMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
