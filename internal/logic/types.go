// Package logic contains the pure protocol logic for single-wire DHT sensors.
// This package has NO external dependencies on GPIO, MQTT, OS, or time.Sleep.
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Protocol constants for the DHT single-wire frame.
const (
	// FrameBytes is the payload size: two measurement words plus a checksum.
	FrameBytes = 5
	// FrameBits is the number of data bits the sensor sends.
	FrameBits = FrameBytes * 8
	// SkipTransitions is the number of leading transitions that belong to the
	// sensor's response preamble rather than to the data.
	SkipTransitions = 4
	// MaxTimings caps the number of transitions sampled per acquisition.
	MaxTimings = 85
	// TimeoutTicks is the per-transition iteration cap.
	TimeoutTicks = 255
	// DefaultThreshold separates a short (0) from a long (1) high pulse.
	DefaultThreshold = 6
)

// Decode failures. All are expected in normal operation and non-fatal.
var (
	ErrTimeout    = errors.New("dht: transition timed out before frame completed")
	ErrShortFrame = errors.New("dht: pulse train ended before 40 bits")
	ErrChecksum   = errors.New("dht: checksum mismatch")
)

// Level is the logical level of the data line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Pulse is one measured transition: how many ticks the line stayed at Level.
type Pulse struct {
	Index int
	Level Level
	Count int
}

// PulseTrain is the ordered set of transitions captured in one acquisition.
type PulseTrain struct {
	Pulses []Pulse
	// TimedOut is set when the last pulse saturated the tick counter.
	TimedOut bool
}

// Len returns the number of recorded transitions.
func (t PulseTrain) Len() int {
	return len(t.Pulses)
}

// Reading is a decoded, checksum-validated measurement.
type Reading struct {
	Humidity    float64 // percent relative humidity
	Temperature float64 // degrees Celsius
	Time        time.Time
	Raw         Frame
}

// TemperatureF returns the temperature in degrees Fahrenheit.
func (r Reading) TemperatureF() float64 {
	return CtoF(r.Temperature)
}

// HeatIndex returns the heat index in degrees Celsius.
func (r Reading) HeatIndex() float64 {
	return HeatIndex(r.Temperature, r.Humidity, false)
}

// Env converts the reading to periph.io physical units. Pressure is left at zero.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(r.Temperature*float64(physic.Celsius)),
		Humidity:    physic.RelativeHumidity(r.Humidity * float64(physic.PercentRH)),
	}
}

// Counts tracks acquisition outcomes since startup.
type Counts struct {
	OK         int
	Cached     int
	Timeout    int
	ShortFrame int
	Checksum   int
	LineError  int
}

// Failures returns the total number of failed acquisitions.
func (c Counts) Failures() int {
	return c.Timeout + c.ShortFrame + c.Checksum + c.LineError
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
