/*
ledger.go - Append-only clock event log

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. ORDERED: A staff member's events never go backwards in time.
  3. IDEMPOTENT: Same idempotency key = same event (no duplicates)

Corrections are not edits. A wrong clock-out is fixed by the caller
recording the right sequence going forward; the log keeps both.
*/
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
)

// Ledger enforces the log invariants on top of an EventLog.
type Ledger struct {
	Log EventLog
}

func NewLedger(log EventLog) *Ledger {
	return &Ledger{Log: log}
}

// Check validates ev against the log without writing it: the idempotency
// key must be new and ev must not precede the staff member's last event.
func (l *Ledger) Check(ctx context.Context, ev ClockEvent) error {
	if ev.IdempotencyKey != "" {
		exists, err := l.Log.EventExists(ctx, ev.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	last, err := l.Log.LastEvent(ctx, ev.StaffID)
	if err != nil {
		return err
	}
	if last != nil && ev.At.Before(last.At) {
		return &ClockSkewError{StaffID: ev.StaffID, At: ev.At, Last: last.At}
	}
	return nil
}

// Append assigns an ID and RecordedAt when missing and persists ev.
// Callers run Check first; Append repeats nothing but the store's own
// uniqueness enforcement.
func (l *Ledger) Append(ctx context.Context, ev ClockEvent) (ClockEvent, error) {
	if ev.ID == "" {
		ev.ID = generic.EventID(uuid.NewString())
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}
	if err := l.Log.AppendEvent(ctx, ev); err != nil {
		return ClockEvent{}, err
	}
	return ev, nil
}

// Events returns the staff member's events in the period, chronologically.
func (l *Ledger) Events(ctx context.Context, staffID generic.StaffID, period generic.Period) ([]ClockEvent, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return l.Log.Events(ctx, staffID, period)
}
