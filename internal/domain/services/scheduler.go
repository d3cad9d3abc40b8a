package services

import (
	"time"

	"github.com/ersonp/session-core/internal/domain/ports"
)

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

// NewTimerScheduler creates the default deadline scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// After schedules fn after d.
func (TimerScheduler) After(d time.Duration, fn func()) ports.CancelTimer {
	timer := time.AfterFunc(d, fn)
	return timer.Stop
}
