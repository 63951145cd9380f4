package utils

import (
	"time"
)

// Now returns the current UTC time truncated to the microsecond precision
// Postgres stores, so in-memory and persisted timestamps compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NotBefore returns t, or floor when t is earlier. Used to keep a user's
// ledger timestamps non-decreasing when the wall clock steps backwards.
func NotBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
