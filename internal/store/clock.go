package store

import "time"

// Clock supplies created_at/updated_at/deleted_at timestamps.
//
// Production uses SystemClock. Tests inject testutil.DeterministicClock so
// cluster order is reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
