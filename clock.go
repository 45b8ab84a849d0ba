package streampay

import "time"

// Clock supplies the current time to the service. Accrual is computed from
// clock readings only, so a fixed or stepped clock makes every settlement
// reproducible.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock in UTC, truncated to milliseconds.
func SystemClock() Clock {
	return ClockFunc(func() time.Time {
		return time.Now().UTC().Truncate(time.Millisecond)
	})
}
