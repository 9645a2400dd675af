package dht

import (
	"fmt"
	"time"

	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
)

// Sampler measures how long the released line stays at each level.
type Sampler interface {
	Sample(line gpio.Line) (logic.PulseTrain, error)
}

// LineSampler polls the line in a busy loop. Each poll that sees no change
// costs one tick plus a one-microsecond delay, so tick counts are only
// comparable against a threshold calibrated on the same host.
type LineSampler struct {
	clock        Clock
	maxTimings   int
	timeoutTicks int
}

// NewLineSampler creates a sampler with the protocol's transition and timeout caps.
func NewLineSampler(clock Clock) *LineSampler {
	if clock == nil {
		clock = realClock{}
	}
	return &LineSampler{
		clock:        clock,
		maxTimings:   logic.MaxTimings,
		timeoutTicks: logic.TimeoutTicks,
	}
}

// Sample records up to MaxTimings transitions. A transition that reaches the
// tick cap ends the pass with TimedOut set. A read error aborts the pass.
func (s *LineSampler) Sample(line gpio.Line) (logic.PulseTrain, error) {
	train := logic.PulseTrain{Pulses: make([]logic.Pulse, 0, s.maxTimings)}
	last := gpio.High

	for i := 0; i < s.maxTimings; i++ {
		count := 0
		level, err := line.Read()
		for err == nil && level == last {
			count++
			s.clock.Delay(time.Microsecond)
			if count == s.timeoutTicks {
				break
			}
			level, err = line.Read()
		}
		if err != nil {
			return train, fmt.Errorf("sample transition %d: %w", i, err)
		}

		train.Pulses = append(train.Pulses, logic.Pulse{Index: i, Level: logic.Level(last), Count: count})
		if count == s.timeoutTicks {
			train.TimedOut = true
			break
		}
		last = level
	}

	return train, nil
}
