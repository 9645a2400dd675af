package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/dht-logger/internal/logic"
	"github.com/sweeney/dht-logger/internal/metrics"
	"github.com/sweeney/dht-logger/internal/mqtt"
	"github.com/sweeney/dht-logger/internal/status"
)

// sensorReader is satisfied by *dht.Driver.
type sensorReader interface {
	Read() (logic.Reading, error)
}

// readingSink stores fresh readings. Satisfied by *store.Store.
type readingSink interface {
	Save(ctx context.Context, device string, r logic.Reading) error
}

// bufferStatus is implemented by publishers that queue while disconnected.
type bufferStatus interface {
	Buffered() int
}

const saveTimeout = 5 * time.Second

// daemon polls the sensor on every tick and fans fresh readings out to the
// publisher, the sink and the metrics. Optional collaborators may be nil.
type daemon struct {
	reader     sensorReader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	sink       readingSink
	device     string
	heartbeat  time.Duration
	log        *zap.Logger

	monitor *logic.Monitor
}

func (d *daemon) run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	if d.log == nil {
		d.log = zap.NewNop()
	}
	d.monitor = logic.NewMonitor(now())

	// First reading right away rather than one interval after startup.
	d.poll(now())

	for {
		select {
		case s := <-sig:
			d.shutdown(now(), s)
			return nil

		case <-tick:
			d.poll(now())
		}
	}
}

func (d *daemon) poll(t time.Time) {
	r, err := d.reader.Read()
	outcome := d.monitor.Record(r, err)

	if d.metrics != nil {
		d.metrics.Observe(outcome, r)
	}

	switch {
	case outcome.Failed():
		d.log.Warn("sensor read failed", zap.String("outcome", string(outcome)), zap.Error(err))
	case outcome == logic.OutcomeCached:
		d.log.Debug("sensor returned cached reading", zap.Time("taken", r.Time))
	default:
		d.log.Info("reading",
			zap.Float64("humidity", r.Humidity),
			zap.Float64("temperature_c", r.Temperature),
			zap.Float64("heat_index_c", r.HeatIndex()),
			zap.Stringer("frame", r.Raw),
		)
		if err := d.publisher.Publish(r); err != nil {
			// Don't crash on publish failure
			d.log.Warn("publish error", zap.Error(err))
		}
		if d.sink != nil {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			if err := d.sink.Save(ctx, d.device, r); err != nil {
				d.log.Warn("store error", zap.Error(err))
			}
			cancel()
		}
	}

	d.refreshStatus(outcome)

	if hb := d.monitor.CheckHeartbeat(t, d.heartbeat); hb != nil {
		d.log.Info("heartbeat",
			zap.Duration("uptime", hb.Uptime),
			zap.Int("ok", hb.Counts.OK),
			zap.Int("cached", hb.Counts.Cached),
			zap.Int("failures", hb.Counts.Failures()),
		)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hb.Timestamp,
			Event:     "HEARTBEAT",
		}
		if d.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			snap := d.tracker.Snapshot()
			hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		}
		if err := d.publisher.PublishSystem(hbEvent); err != nil {
			d.log.Warn("heartbeat publish error", zap.Error(err))
		}
	}
}

// refreshStatus pushes the monitor state and connection state to the
// tracker and the metrics.
func (d *daemon) refreshStatus(outcome logic.Outcome) {
	connected := false
	if d.mqttStatus != nil {
		connected = d.mqttStatus.IsConnected()
	}

	if d.tracker != nil {
		last, ok := d.monitor.Last()
		d.tracker.Update(outcome, last, ok, d.monitor.CountsSnapshot())
		d.tracker.SetMQTTConnected(connected)
	}

	if d.metrics != nil {
		buffered := 0
		if b, ok := d.publisher.(bufferStatus); ok {
			buffered = b.Buffered()
		}
		d.metrics.SetMQTT(connected, buffered)
	}
}

func (d *daemon) shutdown(t time.Time, s os.Signal) {
	d.log.Info("shutting down", zap.Stringer("signal", s))

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if d.tracker != nil {
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		snap := d.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		d.log.Warn("failed to publish shutdown event", zap.Error(err))
	} else {
		d.log.Info("published shutdown event")
	}
}
