package store

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryWithBackoff wraps a store operation with exponential backoff.
// Retries on transient SQLite errors (SQLITE_BUSY, "database is locked");
// anything else stops immediately.
func RetryWithBackoff(operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err // will be retried
		}
		return backoff.Permanent(err)
	}, b)
}

// isBusyError detects lock contention.
//
// Detection relies on modernc.org/sqlite error message strings. If modernc
// changes its error format in a major version bump, update the matchers.
// Current baseline: modernc.org/sqlite v1.45+.
func isBusyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
