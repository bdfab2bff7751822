/*
errors.go - Centralized error types shared by the engine packages

ERROR CATEGORIES:
  1. Store errors - persistence failures and idempotency conflicts
  2. Lookup errors - missing staff data (pay profile, day record)
  3. Validation errors - malformed periods and inputs

Domain packages (attendance, payroll) define their own structured errors
and wrap these sentinels so callers can use errors.Is().
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when an event with the same
	// idempotency key was already recorded. Expected on client retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when a store detects that a day
	// record changed underneath a read-modify-write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPayProfileNotFound is returned when a staff member has no pay profile.
	ErrPayProfileNotFound = errors.New("pay profile not found")

	// ErrHolidayNotFound is returned when deleting a date that is not a holiday.
	ErrHolidayNotFound = errors.New("holiday not found")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidInput is the parent of all request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InputError names the offending field of a rejected request.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func NewInputError(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates missing data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayProfileNotFound) ||
		errors.Is(err, ErrHolidayNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
