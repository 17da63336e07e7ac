package reader

import "time"

// Timer is a pending deferred call
type Timer interface {
	// Stop prevents the call from running. It reports whether it stopped it.
	Stop() bool
}

// Scheduler runs f once after d. Sessions use it for debounced saves and the
// settle delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the runtime timer
type RealScheduler struct{}

// AfterFunc wraps time.AfterFunc
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
