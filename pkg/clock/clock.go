package clock

import "time"

// Clock tells the time. Handlers, the ingest path and the archive scheduler take
// a Clock so staleness and window arithmetic can be tested.
type Clock interface {
	// Now returns the current time
	Now() time.Time
}

// New returns a Clock backed by time.Now
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Millis returns the clock's current time as epoch milliseconds
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}
