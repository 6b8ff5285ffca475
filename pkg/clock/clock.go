// Package clock abstracts time for the protocol logic. Nodes never sleep:
// periodic behavior is a handler re-arming itself after each firing, and
// deferred (jittered) transmissions are one-shot callbacks.
package clock

import "time"

// Timer is a scheduled callback handle. Stop reports whether the callback
// was prevented from firing.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks and reads the current time.
type Clock interface {
	Now() time.Time
	// AfterFunc runs fn once after d on an unspecified goroutine.
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemClock struct{}

// System returns the wall clock backed by the time package.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return sysTimer{time.AfterFunc(d, fn)}
}

type sysTimer struct{ t *time.Timer }

func (s sysTimer) Stop() bool { return s.t.Stop() }
