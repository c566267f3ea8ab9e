package scheduler

import "time"

// Clock abstracts time so debounce windows can be driven in tests
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable pending call
type Timer interface {
	// Stop prevents the call from firing and reports whether it was pending
	Stop() bool
}

type realClock struct{}

// RealClock returns the wall clock
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
