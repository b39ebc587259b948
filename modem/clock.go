package modem

import "time"

// Clock is the time source used for burst windows, transaction deadlines
// and lifecycle delays. Implementations must be monotonic.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock reads the runtime clock. Values returned by time.Now carry a
// monotonic reading, so deadlines computed from them are immune to wall
// clock adjustments.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
