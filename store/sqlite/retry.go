package sqlite

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// retryPolicy controls how writes are retried on transient lock errors.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryPolicy = retryPolicy{
	maxRetries: 3,
	baseDelay:  25 * time.Millisecond,
	maxDelay:   400 * time.Millisecond,
}

// isContention reports whether err is a lock error that may clear on retry.
func isContention(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func retryOnContention(fn func() error) error {
	return retryWith(defaultRetryPolicy, fn)
}

func retryWith(p retryPolicy, fn func() error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		err = fn()
		if !isContention(err) {
			return err
		}
		if attempt < p.maxRetries {
			time.Sleep(p.delay(attempt))
		}
	}
	return err
}

// delay is exponential with jitter in [0, baseDelay).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.baseDelay << uint(attempt)
	if d > p.maxDelay {
		d = p.maxDelay
	}
	return d + time.Duration(rand.Int63n(int64(p.baseDelay)))
}
