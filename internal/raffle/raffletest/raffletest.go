// Package raffletest provides a manual clock and fixed random sources for
// driving a raffle.Selector in tests.
package raffletest

import (
	"sort"
	"sync"
	"time"

	"chapter/internal/raffle"
)

// Clock is a raffle.Clock that only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	c       *Clock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewClock returns a Clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) raffle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing due callbacks in order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending reports how many callbacks are scheduled and not yet fired or stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (c *Clock) nextDueLocked(until time.Time) *timer {
	var due []*timer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(until) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	return due[0]
}

// Fixed returns a source that always yields r.
func Fixed(r float64) raffle.RandomSource {
	return func() float64 { return r }
}

// Sequence returns a source that yields rs in turn, repeating the last value.
// It also counts how often it was called.
func Sequence(rs ...float64) (raffle.RandomSource, func() int) {
	var mu sync.Mutex
	calls := 0
	src := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		calls++
		if len(rs) == 0 {
			return 0
		}
		if i >= len(rs) {
			i = len(rs) - 1
		}
		return rs[i]
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	return src, count
}
