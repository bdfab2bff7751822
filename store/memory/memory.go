// Package memory provides an in-memory implementation of the attendance and
// payroll stores, for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	events      map[generic.StaffID][]attendance.ClockEvent
	idempotency map[string]bool
	records     map[dayKey]attendance.DayRecord
	profiles    map[generic.StaffID]payroll.PayProfile
}

type dayKey struct {
	StaffID generic.StaffID
	Date    generic.Date
}

var (
	_ attendance.TxStore   = (*Store)(nil)
	_ payroll.ProfileStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		events:      make(map[generic.StaffID][]attendance.ClockEvent),
		idempotency: make(map[string]bool),
		records:     make(map[dayKey]attendance.DayRecord),
		profiles:    make(map[generic.StaffID]payroll.PayProfile),
	}
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (m *Store) AppendEvent(_ context.Context, ev attendance.ClockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.IdempotencyKey != "" && m.idempotency[ev.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(ev)
	return nil
}

func (m *Store) appendLocked(ev attendance.ClockEvent) {
	evs := m.events[ev.StaffID]

	// Insert after any event with the same timestamp so ties keep
	// insertion order.
	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].At.After(ev.At)
	})
	evs = append(evs, attendance.ClockEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	m.events[ev.StaffID] = evs

	if ev.IdempotencyKey != "" {
		m.idempotency[ev.IdempotencyKey] = true
	}
}

func (m *Store) Events(_ context.Context, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.ClockEvent
	for _, ev := range m.events[staffID] {
		if period.Contains(ev.WorkDate) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (m *Store) LastEvent(_ context.Context, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	evs := m.events[staffID]
	if len(evs) == 0 {
		return nil, nil
	}
	last := evs[len(evs)-1]
	return &last, nil
}

func (m *Store) EventExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// DAY RECORDS
// =============================================================================

func (m *Store) GetDayRecord(_ context.Context, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[dayKey{StaffID: staffID, Date: date}]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *Store) SaveDayRecord(_ context.Context, rec attendance.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkVersionLocked(rec); err != nil {
		return err
	}
	m.records[dayKey{StaffID: rec.StaffID, Date: rec.Date}] = rec.Clone()
	return nil
}

func (m *Store) checkVersionLocked(rec attendance.DayRecord) error {
	var stored int64
	if cur, ok := m.records[dayKey{StaffID: rec.StaffID, Date: rec.Date}]; ok {
		stored = cur.Version
	}
	if rec.Version != stored+1 {
		return generic.ErrConcurrentModification
	}
	return nil
}

func (m *Store) ListDayRecords(_ context.Context, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []attendance.DayRecord
	for _, rec := range m.records {
		if matches(rec, filter) {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StaffID != result[j].StaffID {
			return result[i].StaffID < result[j].StaffID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (m *Store) StaffIDs(ctx context.Context, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	records, err := m.ListDayRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	var ids []generic.StaffID
	for _, rec := range records {
		if len(ids) == 0 || ids[len(ids)-1] != rec.StaffID {
			ids = append(ids, rec.StaffID)
		}
	}
	return ids, nil
}

func matches(rec attendance.DayRecord, f attendance.DayRecordFilter) bool {
	if f.StaffID != "" && rec.StaffID != f.StaffID {
		return false
	}
	if f.StoreID != "" && rec.StoreID != f.StoreID {
		return false
	}
	if !f.Period.Start.IsZero() && !f.Period.Contains(rec.Date) {
		return false
	}
	return true
}

// =============================================================================
// PAY PROFILES
// =============================================================================

func (m *Store) GetPayProfile(_ context.Context, staffID generic.StaffID) (payroll.PayProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[staffID]
	if !ok {
		return payroll.PayProfile{}, generic.ErrPayProfileNotFound
	}
	return p, nil
}

func (m *Store) SavePayProfile(_ context.Context, p payroll.PayProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.StaffID] = p
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a staging view. Reads see the view's own writes
// on top of committed data; writes are applied together at commit, after
// re-checking idempotency keys and record versions. Nothing is applied if
// fn or the commit check fails.
func (m *Store) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	view := &txView{parent: m, records: make(map[dayKey]attendance.DayRecord)}
	if err := fn(view); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range view.events {
		if ev.IdempotencyKey != "" && m.idempotency[ev.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	for _, k := range view.recordOrder {
		if err := m.checkVersionLocked(view.records[k]); err != nil {
			return err
		}
	}
	for _, ev := range view.events {
		m.appendLocked(ev)
	}
	for _, k := range view.recordOrder {
		m.records[k] = view.records[k]
	}
	return nil
}

type txView struct {
	parent      *Store
	events      []attendance.ClockEvent
	records     map[dayKey]attendance.DayRecord
	recordOrder []dayKey
}

func (tv *txView) AppendEvent(ctx context.Context, ev attendance.ClockEvent) error {
	exists, err := tv.EventExists(ctx, ev.IdempotencyKey)
	if err != nil {
		return err
	}
	if ev.IdempotencyKey != "" && exists {
		return generic.ErrDuplicateIdempotencyKey
	}
	tv.events = append(tv.events, ev)
	return nil
}

func (tv *txView) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]attendance.ClockEvent, error) {
	result, err := tv.parent.Events(ctx, staffID, period)
	if err != nil {
		return nil, err
	}
	for _, ev := range tv.events {
		if ev.StaffID == staffID && period.Contains(ev.WorkDate) {
			result = append(result, ev)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].At.Before(result[j].At) })
	return result, nil
}

func (tv *txView) LastEvent(ctx context.Context, staffID generic.StaffID) (*attendance.ClockEvent, error) {
	last, err := tv.parent.LastEvent(ctx, staffID)
	if err != nil {
		return nil, err
	}
	for _, ev := range tv.events {
		if ev.StaffID == staffID && (last == nil || !ev.At.Before(last.At)) {
			e := ev
			last = &e
		}
	}
	return last, nil
}

func (tv *txView) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	for _, ev := range tv.events {
		if ev.IdempotencyKey != "" && ev.IdempotencyKey == idempotencyKey {
			return true, nil
		}
	}
	return tv.parent.EventExists(ctx, idempotencyKey)
}

func (tv *txView) GetDayRecord(ctx context.Context, staffID generic.StaffID, date generic.Date) (*attendance.DayRecord, error) {
	if rec, ok := tv.records[dayKey{StaffID: staffID, Date: date}]; ok {
		out := rec.Clone()
		return &out, nil
	}
	return tv.parent.GetDayRecord(ctx, staffID, date)
}

func (tv *txView) SaveDayRecord(ctx context.Context, rec attendance.DayRecord) error {
	k := dayKey{StaffID: rec.StaffID, Date: rec.Date}
	if _, staged := tv.records[k]; !staged {
		tv.recordOrder = append(tv.recordOrder, k)
	}
	tv.records[k] = rec.Clone()
	return nil
}

func (tv *txView) ListDayRecords(ctx context.Context, filter attendance.DayRecordFilter) ([]attendance.DayRecord, error) {
	committed, err := tv.parent.ListDayRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	var result []attendance.DayRecord
	for _, rec := range committed {
		if _, staged := tv.records[dayKey{StaffID: rec.StaffID, Date: rec.Date}]; !staged {
			result = append(result, rec)
		}
	}
	for _, k := range tv.recordOrder {
		if rec := tv.records[k]; matches(rec, filter) {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StaffID != result[j].StaffID {
			return result[i].StaffID < result[j].StaffID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (tv *txView) StaffIDs(ctx context.Context, filter attendance.DayRecordFilter) ([]generic.StaffID, error) {
	records, err := tv.ListDayRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	var ids []generic.StaffID
	for _, rec := range records {
		if len(ids) == 0 || ids[len(ids)-1] != rec.StaffID {
			ids = append(ids, rec.StaffID)
		}
	}
	return ids, nil
}
