package dht

import "time"

// Clock supplies timestamps and the two kinds of waiting the protocol needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks for a millisecond-scale hold.
	Sleep(d time.Duration)
	// Delay busy-waits for a microsecond-scale hold. It must not yield to
	// the scheduler.
	Delay(d time.Duration)
	// After waits for d in a select, like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

func (realClock) Delay(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
