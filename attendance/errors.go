package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

var (
	// ErrInvalidTransition is the parent of every rejected state transition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrClockSkew is returned for events that would produce negative durations.
	ErrClockSkew = errors.New("clock skew")
)

// Rejection reasons named by TransitionError.
const (
	ReasonNotClockedIn     = "not clocked in"
	ReasonAlreadyClockedIn = "already clocked in"
	ReasonAlreadyBreaking  = "already breaking"
	ReasonNotBreaking      = "not on break"
)

// TransitionError reports an event that is not legal in the current state.
type TransitionError struct {
	State  State
	Event  EventType
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", e.Reason, e.Event, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ClockSkewError reports an event timestamp that would move time backwards
// (or too far forwards).
type ClockSkewError struct {
	StaffID generic.StaffID
	At      time.Time
	Last    time.Time // latest accepted event, or "now" for future events
	Future  bool
}

func (e *ClockSkewError) Error() string {
	if e.Future {
		return fmt.Sprintf("clock skew: event at %s is in the future (now %s)",
			e.At.Format(time.RFC3339), e.Last.Format(time.RFC3339))
	}
	return fmt.Sprintf("clock skew: event at %s precedes last event at %s",
		e.At.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}

func (e *ClockSkewError) Unwrap() error { return ErrClockSkew }

// UnknownEventTypeError reports an event type outside the closed set.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

func (e *UnknownEventTypeError) Unwrap() error { return generic.ErrInvalidInput }

// IsRejection reports whether err is a synchronous rejection that left the
// log untouched and should be corrected by the caller, not retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrClockSkew) ||
		errors.Is(err, generic.ErrInvalidInput)
}
