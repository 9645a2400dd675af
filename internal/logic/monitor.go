package logic

import (
	"errors"
	"time"
)

// Outcome classifies the result of one driver read.
type Outcome string

const (
	OutcomeFresh      Outcome = "FRESH"
	OutcomeCached     Outcome = "CACHED"
	OutcomeTimeout    Outcome = "TIMEOUT"
	OutcomeShortFrame Outcome = "SHORT_FRAME"
	OutcomeChecksum   Outcome = "CHECKSUM"
	OutcomeLineError  Outcome = "LINE_ERROR"
)

// Failed reports whether the outcome carries no usable reading.
func (o Outcome) Failed() bool {
	return o != OutcomeFresh && o != OutcomeCached
}

// Classify maps a read error to its outcome. A nil error is treated as fresh.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeFresh
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrShortFrame):
		return OutcomeShortFrame
	case errors.Is(err, ErrChecksum):
		return OutcomeChecksum
	}
	return OutcomeLineError
}

// Monitor tracks read outcomes and decides when a heartbeat is due.
type Monitor struct {
	startTime     time.Time
	counts        Counts
	last          Reading
	hasReading    bool
	lastHeartbeat time.Time
}

// NewMonitor creates a Monitor. The startTime is used for calculating uptime
// in heartbeat events.
func NewMonitor(startTime time.Time) *Monitor {
	return &Monitor{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record takes the result of one read and returns its outcome. A successful
// read whose capture time matches the previous reading was served from the
// driver cache.
func (m *Monitor) Record(r Reading, err error) Outcome {
	outcome := Classify(err)
	if outcome == OutcomeFresh && m.hasReading && r.Time.Equal(m.last.Time) {
		outcome = OutcomeCached
	}

	switch outcome {
	case OutcomeFresh:
		m.counts.OK++
		m.last = r
		m.hasReading = true
	case OutcomeCached:
		m.counts.Cached++
	case OutcomeTimeout:
		m.counts.Timeout++
	case OutcomeShortFrame:
		m.counts.ShortFrame++
	case OutcomeChecksum:
		m.counts.Checksum++
	case OutcomeLineError:
		m.counts.LineError++
	}
	return outcome
}

// HasReading returns whether at least one fresh reading was recorded.
func (m *Monitor) HasReading() bool {
	return m.hasReading
}

// Last returns the most recent fresh reading.
func (m *Monitor) Last() (Reading, bool) {
	return m.last, m.hasReading
}

// CountsSnapshot returns a copy of the outcome counters.
func (m *Monitor) CountsSnapshot() Counts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
}
