// Package timing defines the clock abstraction used to measure datastore
// operations.
package timing

import "time"

// TimeInSec defines a duration or a point in time in the unit of second.
type TimeInSec float64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() TimeInSec
}

// WallClock is a TimeTeller backed by the monotonic clock of the process.
// Time starts at 0 when the clock is created.
type WallClock struct {
	origin time.Time
}

// NewWallClock creates a WallClock whose origin is the creation time.
func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

// Now returns the number of seconds elapsed since the clock was created.
func (c *WallClock) Now() TimeInSec {
	return TimeInSec(time.Since(c.origin).Seconds())
}
