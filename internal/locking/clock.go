package locking

import "time"

// Clock abstracts the time source so lock expiry is deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
