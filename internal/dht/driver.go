// Package dht drives a single-wire DHT temperature/humidity sensor: the reset
// handshake on the line, pulse sampling, frame decoding and a reading cache
// that keeps acquisitions at least MinInterval apart.
package dht

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
)

// Config holds the protocol timings. Zero durations and threshold take the
// defaults from DefaultConfig.
type Config struct {
	Model logic.Model
	// Threshold is the tick count above which a data pulse is a 1.
	Threshold int
	// MinInterval is the shortest time between two real acquisitions.
	MinInterval time.Duration
	// Settle is how long the line is held high before the start pulse.
	Settle time.Duration
	// StartLow is the length of the start (attention) pulse.
	StartLow time.Duration
	// StartHigh is the short high before the line is released.
	StartHigh time.Duration
}

// DefaultConfig returns the standard timings for model.
func DefaultConfig(model logic.Model) Config {
	return Config{
		Model:       model,
		Threshold:   logic.DefaultThreshold,
		MinInterval: 2 * time.Second,
		Settle:      250 * time.Millisecond,
		StartLow:    20 * time.Millisecond,
		StartHigh:   40 * time.Microsecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Model)
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.MinInterval <= 0 {
		c.MinInterval = def.MinInterval
	}
	if c.Settle <= 0 {
		c.Settle = def.Settle
	}
	if c.StartLow <= 0 {
		c.StartLow = def.StartLow
	}
	if c.StartHigh <= 0 {
		c.StartHigh = def.StartHigh
	}
	return c
}

// Option customizes a Driver.
type Option func(*Driver)

// WithSampler replaces the busy-loop line sampler.
func WithSampler(s Sampler) Option {
	return func(d *Driver) { d.sampler = s }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithGuard replaces the runtime guard around the sampling window.
func WithGuard(g Guard) Option {
	return func(d *Driver) { d.guard = g }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver owns one sensor line and the last good reading taken from it.
// It is safe for concurrent use; acquisitions are serialized.
type Driver struct {
	mu      sync.Mutex
	line    gpio.Line
	cfg     Config
	sampler Sampler
	clock   Clock
	guard   Guard
	log     *zap.Logger

	last logic.Reading
	warm bool
}

// New creates a driver for line. An unknown model is a configuration error.
func New(line gpio.Line, cfg Config, opts ...Option) (*Driver, error) {
	if !cfg.Model.Valid() {
		return nil, fmt.Errorf("new driver: %w: %v", logic.ErrUnknownModel, cfg.Model)
	}
	if line == nil {
		return nil, errors.New("new driver: nil line")
	}

	d := &Driver{
		line: line,
		cfg:  cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = realClock{}
	}
	if d.sampler == nil {
		d.sampler = NewLineSampler(d.clock)
	}
	if d.guard == nil {
		d.guard = &runtimeGuard{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d, nil
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

func (d *Driver) String() string {
	return fmt.Sprintf("dht(%s)", d.cfg.Model)
}

// Initialize puts the line in its idle state (input, pulled high) and
// forgets any cached reading, so the next Read always acquires.
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = logic.Reading{}
	d.warm = false
	if err := d.line.Input(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// Read returns a checksum-validated reading.
//
// The first call always acquires. After that, a call made less than
// MinInterval after the last good reading returns that reading again without
// touching the line: the sensor cannot produce new data any faster, so
// callers polling faster than MinInterval see repeated values. A failed
// acquisition returns an error and leaves the cached reading as it was, so a
// later throttled call may still return the older reading. If the clock is
// earlier than the cached reading's time, the cache is treated as expired.
func (d *Driver) Read() (logic.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if d.warm && !now.Before(d.last.Time) && now.Sub(d.last.Time) < d.cfg.MinInterval {
		return d.last, nil
	}

	frame, err := d.acquire()
	if err != nil {
		d.log.Debug("acquisition failed", zap.Error(err))
		return logic.Reading{}, err
	}

	d.last = frame.Decode(d.cfg.Model, now)
	d.warm = true
	d.log.Debug("acquired frame",
		zap.Stringer("frame", frame),
		zap.Float64("humidity", d.last.Humidity),
		zap.Float64("temperature", d.last.Temperature),
	)
	return d.last, nil
}

// ReadHumidity returns relative humidity in percent, or NaN if no valid
// reading could be taken.
func (d *Driver) ReadHumidity() float64 {
	r, err := d.Read()
	if err != nil {
		return math.NaN()
	}
	return r.Humidity
}

// ReadTemperature returns the temperature in Celsius, or Fahrenheit if
// requested, or NaN if no valid reading could be taken.
func (d *Driver) ReadTemperature(fahrenheit bool) float64 {
	r, err := d.Read()
	if err != nil {
		return math.NaN()
	}
	if fahrenheit {
		return r.TemperatureF()
	}
	return r.Temperature
}

// ReadRetry calls Read up to maxRetries times, waiting MinInterval between
// failed attempts. It returns the last error if every attempt failed.
func (d *Driver) ReadRetry(ctx context.Context, maxRetries int) (logic.Reading, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return logic.Reading{}, ctxErr
			}
			select {
			case <-ctx.Done():
				return logic.Reading{}, ctx.Err()
			case <-d.clock.After(d.cfg.MinInterval):
			}
		}
		var r logic.Reading
		r, err = d.Read()
		if err == nil {
			return r, nil
		}
		d.log.Debug("read attempt failed", zap.Int("attempt", i+1), zap.Error(err))
	}
	return logic.Reading{}, fmt.Errorf("%d attempts: %w", maxRetries, err)
}

// Sense fills e with the current reading in periph.io units. Pressure is not
// touched.
func (d *Driver) Sense(e *physic.Env) error {
	r, err := d.Read()
	if err != nil {
		return err
	}
	env := r.Env()
	e.Temperature = env.Temperature
	e.Humidity = env.Humidity
	return nil
}

// acquire runs the handshake, samples the response and decodes it.
func (d *Driver) acquire() (logic.Frame, error) {
	if err := d.line.Output(gpio.High); err != nil {
		return logic.Frame{}, fmt.Errorf("settle: %w", err)
	}
	d.clock.Sleep(d.cfg.Settle)

	if err := d.line.Output(gpio.Low); err != nil {
		return logic.Frame{}, fmt.Errorf("start pulse: %w", err)
	}
	d.clock.Sleep(d.cfg.StartLow)

	train, err := d.sampleWindow()
	if err != nil {
		return logic.Frame{}, err
	}

	frame, err := logic.DecodeFrame(train, d.cfg.Threshold)
	if err != nil {
		return logic.Frame{}, fmt.Errorf("decode %d transitions: %w", train.Len(), err)
	}
	return frame, nil
}

// sampleWindow is the timing-critical part: release the line and sample the
// sensor's response with the guard held.
func (d *Driver) sampleWindow() (logic.PulseTrain, error) {
	d.guard.Suspend()
	defer d.guard.Resume()

	if err := d.line.Output(gpio.High); err != nil {
		return logic.PulseTrain{}, fmt.Errorf("release: %w", err)
	}
	d.clock.Delay(d.cfg.StartHigh)
	if err := d.line.Input(); err != nil {
		return logic.PulseTrain{}, fmt.Errorf("release: %w", err)
	}

	return d.sampler.Sample(d.line)
}
