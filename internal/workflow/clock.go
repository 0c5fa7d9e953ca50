package workflow

import "time"

// Clock supplies the current time. Workflows never call time.Now
// directly so tests can freeze it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a constant time; test helper.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
