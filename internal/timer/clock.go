package timer

import "time"

// Clock is the time source for countdowns.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a pending AfterFunc.
type Stopper interface {
	Stop() bool
}

// RealClock uses the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
