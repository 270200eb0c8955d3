package raffle

import "time"

// Timer is a scheduled completion that can be cancelled.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Clock tells the selector what time it is and schedules spin completions.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
