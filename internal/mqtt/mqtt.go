// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/dht-logger/internal/logic"
)

// TopicPrefix is the root of all topics published by the logger.
const TopicPrefix = "environment/dht"

// TopicReadings returns the topic for sensor readings of device.
func TopicReadings(device string) string {
	return TopicPrefix + "/" + device + "/readings"
}

// TopicSystem returns the topic for system lifecycle events of device.
func TopicSystem(device string) string {
	return TopicPrefix + "/" + device + "/system"
}

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends a sensor reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(reading logic.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains one reading in both temperature units.
type ReadingPayload struct {
	Timestamp    string  `json:"timestamp"`
	Device       string  `json:"device"`
	Humidity     float64 `json:"humidity"`
	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`
	HeatIndexC   float64 `json:"heat_index_c"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(device string, reading logic.Reading) ([]byte, error) {
	payload := Payload{
		Reading: ReadingPayload{
			Timestamp:    reading.Time.UTC().Format(time.RFC3339),
			Device:       device,
			Humidity:     round2(reading.Humidity),
			TemperatureC: round2(reading.Temperature),
			TemperatureF: round2(reading.TemperatureF()),
			HeatIndexC:   round2(reading.HeatIndex()),
		},
	}
	return json.Marshal(payload)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
