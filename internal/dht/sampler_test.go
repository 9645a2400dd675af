package dht

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
)

// levelsFor scripts the reads a sensor producing train would answer: each
// pulse is Count reads at its level followed by the read that sees the next
// level.
func levelsFor(train logic.PulseTrain) []bool {
	var out []bool
	for i, p := range train.Pulses {
		for n := 0; n < p.Count; n++ {
			out = append(out, bool(p.Level))
		}
		if i+1 < train.Len() {
			out = append(out, bool(train.Pulses[i+1].Level))
		}
	}
	return out
}

func TestLineSamplerReproducesTrain(t *testing.T) {
	want := logic.EncodeTrain(logic.NewFrame(0x02, 0x09, 0x01, 0x56), 2, 7)
	line := gpio.NewFakeLine(levelsFor(want)...)
	clock := NewFakeClock(time.Time{})

	got, err := NewLineSampler(clock).Sample(line)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ticks := 0
	for _, p := range want.Pulses {
		ticks += p.Count
	}
	assert.Equal(t, time.Duration(ticks)*time.Microsecond, clock.Delayed)
}

func TestLineSamplerStopsAtTimeout(t *testing.T) {
	// Line stuck high: the first transition never completes.
	line := gpio.NewFakeLine(gpio.High)

	train, err := NewLineSampler(NewFakeClock(time.Time{})).Sample(line)
	require.NoError(t, err)
	require.Equal(t, 1, train.Len())
	assert.True(t, train.TimedOut)
	assert.Equal(t, logic.TimeoutTicks, train.Pulses[0].Count)
	assert.Equal(t, logic.TimeoutTicks, line.Reads)
}

func TestLineSamplerCapsTransitions(t *testing.T) {
	// A line toggling on every read never times out.
	var levels []bool
	for i := 0; i < 2*logic.MaxTimings+10; i++ {
		levels = append(levels, i%2 == 1)
	}
	line := gpio.NewFakeLine(levels...)

	train, err := NewLineSampler(NewFakeClock(time.Time{})).Sample(line)
	require.NoError(t, err)
	assert.Equal(t, logic.MaxTimings, train.Len())
	assert.False(t, train.TimedOut)
}

func TestLineSamplerReadError(t *testing.T) {
	line := gpio.NewFakeLine(gpio.High)
	line.ReadError = errors.New("gpio fault")

	_, err := NewLineSampler(NewFakeClock(time.Time{})).Sample(line)
	assert.ErrorContains(t, err, "gpio fault")
}

func TestFakeSamplerRepeatsLast(t *testing.T) {
	a := logic.PulseTrain{Pulses: []logic.Pulse{{Count: 1}}}
	b := logic.PulseTrain{Pulses: []logic.Pulse{{Count: 2}}}
	s := NewFakeSampler(a, b)

	got, _ := s.Sample(nil)
	assert.Equal(t, a, got)
	got, _ = s.Sample(nil)
	assert.Equal(t, b, got)
	got, _ = s.Sample(nil)
	assert.Equal(t, b, got)
	assert.Equal(t, 3, s.Calls)
}
