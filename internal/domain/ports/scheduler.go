package ports

import "time"

// CancelTimer stops a scheduled callback. It reports whether the callback was
// cancelled before firing; false means it already fired or was in flight, in
// which case the callback's own idempotency check is the safety net.
type CancelTimer func() bool

// Scheduler defers a callback by a duration. The production implementation
// wraps time.AfterFunc; tests substitute a manual scheduler to fire deadlines
// deterministically.
type Scheduler interface {
	// After schedules fn to run once the duration elapses.
	After(d time.Duration, fn func()) CancelTimer
}

// Clock supplies the current time, injectable for tests.
type Clock func() time.Time
