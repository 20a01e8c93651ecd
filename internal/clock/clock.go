// Package clock abstracts the timer calls made by the session coordinator
// so inactivity expiry can be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake() and move time forward
// with Advance; AfterFunc callbacks run synchronously inside Advance.
package clock

import "time"

// Clock is the subset of the time package the coordinator depends on.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop cancels the call. It returns false if the call already ran
	// or was stopped before.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
