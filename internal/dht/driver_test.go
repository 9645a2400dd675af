package dht

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
)

var (
	goodFrame  = logic.Frame{0x00, 0xd1, 0x01, 0x56, 0x28}
	otherFrame = logic.NewFrame(0x01, 0xf4, 0x00, 0xc8)
	startTime  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

func trainOf(f logic.Frame) logic.PulseTrain {
	return logic.EncodeTrain(f, 2, 7)
}

func corrupt(f logic.Frame) logic.Frame {
	f[4]++
	return f
}

func truncated(f logic.Frame, n int) logic.PulseTrain {
	full := trainOf(f)
	train := logic.PulseTrain{Pulses: append([]logic.Pulse(nil), full.Pulses[:n]...), TimedOut: true}
	train.Pulses = append(train.Pulses, logic.Pulse{Index: n, Level: logic.High, Count: logic.TimeoutTicks})
	return train
}

type harness struct {
	d       *Driver
	line    *gpio.FakeLine
	sampler *FakeSampler
	clock   *FakeClock
	guard   *FakeGuard
}

func newHarness(t *testing.T, model logic.Model, trains ...logic.PulseTrain) *harness {
	t.Helper()
	h := &harness{
		line:    gpio.NewFakeLine(gpio.High),
		sampler: NewFakeSampler(trains...),
		clock:   NewFakeClock(startTime),
		guard:   &FakeGuard{},
	}
	d, err := New(h.line, DefaultConfig(model), WithSampler(h.sampler), WithClock(h.clock), WithGuard(h.guard))
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	h.d = d
	return h
}

func TestNewUnknownModel(t *testing.T) {
	_, err := New(gpio.NewFakeLine(), Config{})
	assert.ErrorIs(t, err, logic.ErrUnknownModel)

	_, err = New(gpio.NewFakeLine(), Config{Model: logic.Model(7)})
	assert.ErrorIs(t, err, logic.ErrUnknownModel)
}

func TestNewNilLine(t *testing.T) {
	_, err := New(nil, DefaultConfig(logic.ModelScaled))
	assert.Error(t, err)
}

func TestNewFillsDefaults(t *testing.T) {
	d, err := New(gpio.NewFakeLine(), Config{Model: logic.ModelSimple, Threshold: 9})
	require.NoError(t, err)

	cfg := d.Config()
	assert.Equal(t, 9, cfg.Threshold)
	assert.Equal(t, 2*time.Second, cfg.MinInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Settle)
	assert.Equal(t, 20*time.Millisecond, cfg.StartLow)
	assert.Equal(t, 40*time.Microsecond, cfg.StartHigh)
	assert.Equal(t, "dht(simple)", d.String())
}

func TestInitializeIdlesLine(t *testing.T) {
	h := newHarness(t, logic.ModelScaled)
	assert.Equal(t, 1, h.line.Inputs)
	assert.False(t, h.line.IsOutput)
	assert.Empty(t, h.line.Writes)
}

func TestReadScaled(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame))

	r, err := h.d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 20.9, r.Humidity, 1e-9)
	assert.InDelta(t, 34.2, r.Temperature, 1e-9)
	assert.Equal(t, goodFrame, r.Raw)
	assert.True(t, r.Time.Equal(startTime))

	assert.InDelta(t, 20.9, h.d.ReadHumidity(), 1e-9)
	assert.InDelta(t, 34.2, h.d.ReadTemperature(false), 1e-9)
	assert.InDelta(t, 93.56, h.d.ReadTemperature(true), 1e-9)
}

func TestReadSimple(t *testing.T) {
	h := newHarness(t, logic.ModelSimple, trainOf(logic.NewFrame(45, 7, 23, 9)))

	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, 45.0, r.Humidity)
	assert.Equal(t, 23.0, r.Temperature)
}

func TestReadHandshake(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame))

	_, err := h.d.Read()
	require.NoError(t, err)

	assert.Equal(t, []bool{gpio.High, gpio.Low, gpio.High}, h.line.Writes)
	assert.Equal(t, 2, h.line.Inputs) // Initialize + release
	assert.False(t, h.line.IsOutput, "line must be released to the sensor")
	assert.Equal(t, 270*time.Millisecond, h.clock.Slept)
	assert.Equal(t, 40*time.Microsecond, h.clock.Delayed)
	assert.Equal(t, 1, h.guard.Suspends)
	assert.Equal(t, 1, h.guard.Resumes)
	assert.False(t, h.guard.Held)
}

type samplerFunc func(gpio.Line) (logic.PulseTrain, error)

func (f samplerFunc) Sample(l gpio.Line) (logic.PulseTrain, error) { return f(l) }

func TestGuardHeldWhileSampling(t *testing.T) {
	guard := &FakeGuard{}
	line := gpio.NewFakeLine(gpio.High)
	var heldDuringSample, releasedDuringSample bool
	sampler := samplerFunc(func(l gpio.Line) (logic.PulseTrain, error) {
		heldDuringSample = guard.Held
		releasedDuringSample = !line.IsOutput
		return trainOf(goodFrame), nil
	})

	d, err := New(line, DefaultConfig(logic.ModelScaled),
		WithSampler(sampler), WithClock(NewFakeClock(startTime)), WithGuard(guard))
	require.NoError(t, err)

	_, err = d.Read()
	require.NoError(t, err)
	assert.True(t, heldDuringSample)
	assert.True(t, releasedDuringSample)
	assert.False(t, guard.Held)
}

func TestReadThrottledWithinInterval(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(otherFrame))

	first, err := h.d.Read()
	require.NoError(t, err)
	writes := len(h.line.Writes)

	h.clock.Set(startTime.Add(1999 * time.Millisecond))
	second, err := h.d.Read()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, writes, len(h.line.Writes), "throttled read must not drive the line")
	assert.Equal(t, 1, h.sampler.Calls)
	assert.Equal(t, 1, h.guard.Suspends)
}

func TestReadAfterInterval(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(otherFrame))

	_, err := h.d.Read()
	require.NoError(t, err)

	h.clock.Set(startTime.Add(2 * time.Second))
	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, otherFrame, r.Raw)
	assert.Equal(t, 2, h.sampler.Calls)
	assert.Len(t, h.line.Writes, 6)
}

func TestReadClockRolloverForcesAcquisition(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(otherFrame))

	_, err := h.d.Read()
	require.NoError(t, err)

	// The clock is now earlier than the cached reading.
	h.clock.Set(startTime.Add(-time.Hour))
	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, otherFrame, r.Raw)
	assert.Equal(t, 2, h.sampler.Calls)
	assert.True(t, r.Time.Equal(startTime.Add(-time.Hour)))
}

func TestReadChecksumFailureKeepsCache(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(corrupt(otherFrame)))

	first, err := h.d.Read()
	require.NoError(t, err)

	h.clock.Set(startTime.Add(3 * time.Second))
	_, err = h.d.Read()
	require.ErrorIs(t, err, logic.ErrChecksum)
	assert.Equal(t, first, h.d.last)
	assert.True(t, h.d.warm)
	assert.True(t, math.IsNaN(h.d.ReadHumidity()))

	// Within the interval of the cached reading the stale value is served.
	h.clock.Set(startTime.Add(time.Second))
	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, first, r)
}

func TestReadColdTimeout(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, truncated(goodFrame, 30))

	_, err := h.d.Read()
	require.ErrorIs(t, err, logic.ErrTimeout)
	assert.False(t, h.d.warm)
	assert.Equal(t, logic.Reading{}, h.d.last)

	assert.True(t, math.IsNaN(h.d.ReadHumidity()))
	assert.True(t, math.IsNaN(h.d.ReadTemperature(false)))
	assert.True(t, math.IsNaN(h.d.ReadTemperature(true)))
}

func TestReadShortFrameKeepsCache(t *testing.T) {
	full := trainOf(otherFrame)
	short := logic.PulseTrain{Pulses: full.Pulses[:50]}
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), short)

	first, err := h.d.Read()
	require.NoError(t, err)

	h.clock.Set(startTime.Add(5 * time.Second))
	_, err = h.d.Read()
	require.ErrorIs(t, err, logic.ErrShortFrame)
	assert.Equal(t, first, h.d.last)
}

func TestReadFailureAfterColdStartRetriesImmediately(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(corrupt(goodFrame)), trainOf(goodFrame))

	_, err := h.d.Read()
	require.Error(t, err)

	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, goodFrame, r.Raw)
	assert.Equal(t, 2, h.sampler.Calls)
}

func TestReadLineWriteError(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame))
	h.line.WriteError = errors.New("bus fault")

	_, err := h.d.Read()
	assert.ErrorContains(t, err, "bus fault")
	assert.Equal(t, 0, h.sampler.Calls)
	assert.Equal(t, h.guard.Suspends, h.guard.Resumes)
}

func TestReadSamplerErrorResumesGuard(t *testing.T) {
	h := newHarness(t, logic.ModelScaled)
	h.sampler.SampleError = errors.New("read pin 4: no such device")

	_, err := h.d.Read()
	require.Error(t, err)
	assert.Equal(t, logic.OutcomeLineError, logic.Classify(err))
	assert.Equal(t, 1, h.guard.Suspends)
	assert.Equal(t, 1, h.guard.Resumes)
}

func TestInitializeResetsCache(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(otherFrame))

	_, err := h.d.Read()
	require.NoError(t, err)
	require.NoError(t, h.d.Initialize())

	r, err := h.d.Read()
	require.NoError(t, err)
	assert.Equal(t, otherFrame, r.Raw)
}

func TestReadRetry(t *testing.T) {
	bad := trainOf(corrupt(goodFrame))
	h := newHarness(t, logic.ModelScaled, bad, bad, trainOf(goodFrame))

	r, err := h.d.ReadRetry(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, goodFrame, r.Raw)
	assert.Equal(t, 3, h.sampler.Calls)
	// Each failed attempt costs the handshake holds plus one MinInterval wait.
	attempt := 270*time.Millisecond + 40*time.Microsecond + 2*time.Second
	assert.True(t, r.Time.Equal(startTime.Add(2*attempt)))
}

func TestReadRetryExhausted(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, truncated(goodFrame, 10))

	_, err := h.d.ReadRetry(context.Background(), 3)
	require.ErrorIs(t, err, logic.ErrTimeout)
	assert.Equal(t, 3, h.sampler.Calls)
}

func TestReadRetryCanceled(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, truncated(goodFrame, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.d.ReadRetry(ctx, 3)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.sampler.Calls)
}

func TestSense(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame))

	env := physic.Env{Pressure: 101325 * physic.Pascal}
	require.NoError(t, h.d.Sense(&env))
	assert.Equal(t, 101325*physic.Pascal, env.Pressure)
	assert.InDelta(t, float64(physic.ZeroCelsius+34200*physic.MilliCelsius), float64(env.Temperature), float64(physic.MilliKelvin))
}

func TestConcurrentReadsShareOneAcquisition(t *testing.T) {
	h := newHarness(t, logic.ModelScaled, trainOf(goodFrame), trainOf(otherFrame))

	var wg sync.WaitGroup
	results := make([]logic.Reading, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.d.Read()
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	// Sleeps inside the first acquisition advance the fake clock by 270ms,
	// well inside the interval, so every caller gets the same reading.
	for _, r := range results {
		assert.Equal(t, goodFrame, r.Raw)
	}
	assert.Equal(t, 1, h.sampler.Calls)
}

func TestLineSamplerThroughDriver(t *testing.T) {
	want := logic.NewFrame(0x01, 0x90, 0x80, 0x32)
	line := gpio.NewFakeLine(levelsFor(trainOf(want))...)
	clock := NewFakeClock(startTime)

	d, err := New(line, DefaultConfig(logic.ModelScaled), WithClock(clock), WithGuard(&FakeGuard{}))
	require.NoError(t, err)

	r, err := d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 40.0, r.Humidity, 1e-9)
	assert.InDelta(t, -5.0, r.Temperature, 1e-9)
}
