package mocks

import (
	"time"

	"github.com/ersonp/session-core/internal/domain/ports"
)

// ScheduledCall is one deferred callback held by the manual scheduler.
type ScheduledCall struct {
	Delay     time.Duration
	Fn        func()
	cancelled bool
}

// Scheduler is a manual implementation of ports.Scheduler. Tests fire
// deadlines deterministically with FireAll or FireNext instead of waiting on
// wall-clock timers.
type Scheduler struct {
	Calls []*ScheduledCall
}

// NewScheduler creates a new manual scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// After records the callback without running it.
func (s *Scheduler) After(d time.Duration, fn func()) ports.CancelTimer {
	call := &ScheduledCall{Delay: d, Fn: fn}
	s.Calls = append(s.Calls, call)
	return func() bool {
		if call.cancelled {
			return false
		}
		call.cancelled = true
		return true
	}
}

// FireNext runs the oldest pending callback, cancelled or not yet fired.
// Reports whether a callback ran.
func (s *Scheduler) FireNext() bool {
	for _, call := range s.Calls {
		if call.Fn != nil && !call.cancelled {
			fn := call.Fn
			call.Fn = nil
			fn()
			return true
		}
	}
	return false
}

// FireAll runs every pending callback in schedule order, including ones whose
// cancellation raced, simulating timers already in flight.
func (s *Scheduler) FireAll() int {
	fired := 0
	for _, call := range s.Calls {
		if call.Fn != nil {
			fn := call.Fn
			call.Fn = nil
			fn()
			fired++
		}
	}
	return fired
}

// Pending counts callbacks that have neither fired nor been cancelled.
func (s *Scheduler) Pending() int {
	n := 0
	for _, call := range s.Calls {
		if call.Fn != nil && !call.cancelled {
			n++
		}
	}
	return n
}

// Clock is a controllable time source implementing ports.Clock via Now.
type Clock struct {
	Current time.Time
}

// NewClock creates a clock fixed at the given instant.
func NewClock(at time.Time) *Clock {
	return &Clock{Current: at}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.Current }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
