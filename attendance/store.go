/*
store.go - Persistence interfaces for the clock event log and day records

APPEND-ONLY CONTRACT:
  ClockEvents are never updated or deleted. The EventLog interface has
  exactly one write: AppendEvent. Day records are a derived, cacheable
  projection of the log and are written with SaveDayRecord.

ATOMICITY:
  Recording an event appends to the log AND rewrites the day record.
  TxStore.WithTx makes both writes all-or-nothing.

IMPLEMENTATIONS:
  - store/memory:   In-memory, for tests and development
  - store/sqlite:   SQLite (default persistent store)
  - store/postgres: PostgreSQL via pgx
*/
package attendance

import (
	"context"

	"github.com/warp/attendance-engine/generic"
)

// EventLog persists clock events (append-only).
type EventLog interface {
	// AppendEvent persists an event. Returns generic.ErrDuplicateIdempotencyKey
	// if the event's idempotency key is already recorded.
	AppendEvent(ctx context.Context, ev ClockEvent) error

	// Events returns a staff member's events whose work date is in the
	// period, ordered by timestamp then insertion order.
	Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]ClockEvent, error)

	// LastEvent returns the latest event for the staff member, or nil.
	LastEvent(ctx context.Context, staffID generic.StaffID) (*ClockEvent, error)

	// EventExists checks if an idempotency key is already recorded.
	EventExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// DayRecordFilter selects day records. Empty IDs match everything.
type DayRecordFilter struct {
	StaffID generic.StaffID
	StoreID generic.StoreID
	Period  generic.Period
}

// DayRecordStore persists the derived day-record projection.
type DayRecordStore interface {
	// GetDayRecord returns the record for staff+date, or nil if none exists.
	GetDayRecord(ctx context.Context, staffID generic.StaffID, date generic.Date) (*DayRecord, error)

	// SaveDayRecord inserts or replaces a record. Implementations reject a
	// write whose Version is not exactly one more than the stored version
	// with generic.ErrConcurrentModification.
	SaveDayRecord(ctx context.Context, rec DayRecord) error

	// ListDayRecords returns matching records ordered by staff then date.
	ListDayRecords(ctx context.Context, filter DayRecordFilter) ([]DayRecord, error)

	// StaffIDs returns the distinct staff with records matching the filter.
	StaffIDs(ctx context.Context, filter DayRecordFilter) ([]generic.StaffID, error)
}

// Store combines the event log and the day-record projection.
type Store interface {
	EventLog
	DayRecordStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
