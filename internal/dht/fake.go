package dht

import (
	"sync"
	"time"

	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
)

// FakeSampler returns scripted pulse trains instead of sampling the line.
type FakeSampler struct {
	// Trains contains scripted trains. Each call to Sample consumes the
	// next one; once exhausted the last train is returned repeatedly.
	Trains []logic.PulseTrain

	// SampleError, if set, will be returned by Sample.
	SampleError error

	// Calls counts calls to Sample.
	Calls int

	index int
}

// NewFakeSampler creates a FakeSampler with the given trains.
func NewFakeSampler(trains ...logic.PulseTrain) *FakeSampler {
	return &FakeSampler{Trains: trains}
}

// NewFrameSampler returns a sampler that always yields the encoded frame.
func NewFrameSampler(f logic.Frame) *FakeSampler {
	return NewFakeSampler(logic.EncodeTrain(f, 2, logic.DefaultThreshold+20))
}

// Sample returns the next scripted train.
func (f *FakeSampler) Sample(gpio.Line) (logic.PulseTrain, error) {
	f.Calls++
	if f.SampleError != nil {
		return logic.PulseTrain{}, f.SampleError
	}
	if len(f.Trains) == 0 {
		return logic.PulseTrain{TimedOut: true}, nil
	}

	train := f.Trains[f.index]
	if f.index < len(f.Trains)-1 {
		f.index++
	}
	return train, nil
}

// FakeClock is a manually advanced clock. Sleep, Delay and After advance it.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// Slept accumulates Sleep durations, Delayed accumulates Delay durations.
	Slept   time.Duration
	Delayed time.Duration
}

// NewFakeClock creates a clock stopped at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Slept += d
	c.mu.Unlock()
}

// Delay advances the clock by d.
func (c *FakeClock) Delay(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Delayed += d
	c.mu.Unlock()
}

// After advances the clock by d and returns a channel that is already ready.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward (or backward, for negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// FakeGuard counts Suspend and Resume calls.
type FakeGuard struct {
	Suspends int
	Resumes  int
	// Held is true between Suspend and Resume.
	Held bool
}

// Suspend records the call.
func (g *FakeGuard) Suspend() {
	g.Suspends++
	g.Held = true
}

// Resume records the call.
func (g *FakeGuard) Resume() {
	g.Resumes++
	g.Held = false
}
