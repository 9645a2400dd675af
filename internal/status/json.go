package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Ready         bool         `json:"ready"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	LastOutcome   string       `json:"last_outcome,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"read_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the last good reading.
type ReadingJSON struct {
	Timestamp    string  `json:"timestamp"`
	AgeSeconds   int64   `json:"age_seconds"`
	Humidity     float64 `json:"humidity"`
	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`
	HeatIndexC   float64 `json:"heat_index_c"`
	Raw          string  `json:"raw"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of read outcome counts.
type CountsJSON struct {
	OK         int `json:"ok"`
	Cached     int `json:"cached"`
	Timeout    int `json:"timeout"`
	ShortFrame int `json:"short_frame"`
	Checksum   int `json:"checksum"`
	LineError  int `json:"line_error"`
	Failures   int `json:"failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Model       string `json:"model"`
	Backend     string `json:"backend"`
	Pin         string `json:"pin"`
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Counts
	inner := StatusInner{
		Device:        snap.Config.Device,
		Ready:         snap.HasReading,
		LastOutcome:   string(snap.LastOutcome),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			OK:         c.OK,
			Cached:     c.Cached,
			Timeout:    c.Timeout,
			ShortFrame: c.ShortFrame,
			Checksum:   c.Checksum,
			LineError:  c.LineError,
			Failures:   c.Failures(),
		},
		Config: ConfigJSON{
			Model:       snap.Config.Model,
			Backend:     snap.Config.Backend,
			Pin:         snap.Config.Pin,
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
		},
	}

	if snap.HasReading {
		r := snap.LastReading
		inner.Reading = &ReadingJSON{
			Timestamp:    r.Time.UTC().Format(time.RFC3339),
			AgeSeconds:   int64(snap.ReadingAge().Truncate(time.Second).Seconds()),
			Humidity:     round2(r.Humidity),
			TemperatureC: round2(r.Temperature),
			TemperatureF: round2(r.TemperatureF()),
			HeatIndexC:   round2(r.HeatIndex()),
			Raw:          r.Raw.String(),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
