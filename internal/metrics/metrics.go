// Package metrics exposes sensor readings and read outcomes as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/dht-logger/internal/logic"
)

const namespace = "dht"

// Metrics holds the collectors for one sensor.
type Metrics struct {
	Humidity    prometheus.Gauge
	Temperature prometheus.Gauge
	HeatIndex   prometheus.Gauge
	LastReading prometheus.Gauge

	Reads    *prometheus.CounterVec
	MQTTUp   prometheus.Gauge
	Buffered prometheus.Gauge
}

// New creates the collectors and registers them with reg. The device name is
// attached to every series as a constant label.
func New(reg prometheus.Registerer, device string) *Metrics {
	labels := prometheus.Labels{"device": device}
	m := &Metrics{
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "relative_humidity_percent",
			Help:        "Relative humidity of the last good reading",
			ConstLabels: labels,
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "temperature_celsius",
			Help:        "Temperature C of the last good reading",
			ConstLabels: labels,
		}),
		HeatIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "heat_index_celsius",
			Help:        "Heat index C of the last good reading",
			ConstLabels: labels,
		}),
		LastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_reading_timestamp_seconds",
			Help:        "Unix time the last good reading was captured",
			ConstLabels: labels,
		}),
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reads_total",
			Help:        "Driver reads by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		MQTTUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mqtt_connected",
			Help:        "1 if the broker connection is up",
			ConstLabels: labels,
		}),
		Buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mqtt_buffered_messages",
			Help:        "Messages waiting for the broker connection",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		m.Humidity,
		m.Temperature,
		m.HeatIndex,
		m.LastReading,
		m.Reads,
		m.MQTTUp,
		m.Buffered,
	)
	return m
}

// Observe records one read. Gauges only move on a fresh reading.
func (m *Metrics) Observe(outcome logic.Outcome, r logic.Reading) {
	m.Reads.WithLabelValues(string(outcome)).Inc()
	if outcome != logic.OutcomeFresh {
		return
	}
	m.Humidity.Set(r.Humidity)
	m.Temperature.Set(r.Temperature)
	m.HeatIndex.Set(r.HeatIndex())
	m.LastReading.Set(float64(r.Time.Unix()))
}

// SetMQTT records the publisher connection state.
func (m *Metrics) SetMQTT(connected bool, buffered int) {
	if connected {
		m.MQTTUp.Set(1)
	} else {
		m.MQTTUp.Set(0)
	}
	m.Buffered.Set(float64(buffered))
}
