// Command dht-logger reads a DHT temperature/humidity sensor and publishes
// its readings to MQTT, Prometheus and, optionally, PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/dht-logger/internal/dht"
	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
	"github.com/sweeney/dht-logger/internal/metrics"
	"github.com/sweeney/dht-logger/internal/mqtt"
	"github.com/sweeney/dht-logger/internal/status"
	"github.com/sweeney/dht-logger/internal/store"
	"github.com/sweeney/dht-logger/internal/web"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dht-logger: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core)
}

func run(cfg config, log *zap.Logger) error {
	line, err := openLine(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer line.Close()

	driver, err := newDriver(cfg, line, log.Named("dht"))
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}

	// Print reading mode
	if cfg.Print {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r, err := driver.ReadRetry(ctx, cfg.Retries)
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Println(formatReading(r))
		return nil
	}

	publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.Device, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry, cfg.Device)

	var sink readingSink
	if cfg.DB != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := store.Open(ctx, cfg.DB, cfg.DBTable)
		if err == nil {
			err = db.Migrate(ctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer db.Close()
		sink = db
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Device:      cfg.Device,
		Model:       cfg.Model.String(),
		Backend:     cfg.Backend,
		Pin:         cfg.Pin,
		IntervalMs:  cfg.Interval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		WSBroker:    cfg.WSBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", zap.Error(err))
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, registry)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	log.Info("started",
		zap.String("device", cfg.Device),
		zap.Stringer("sensor", driver),
		zap.String("backend", cfg.Backend),
		zap.String("pin", cfg.Pin),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.String("broker", cfg.Broker),
		zap.Bool("store", sink != nil),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		reader:     driver,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		sink:       sink,
		device:     cfg.Device,
		heartbeat:  cfg.Heartbeat,
		log:        log,
	}
	return d.run(time.Now, ticker.C, sigCh)
}

func openLine(cfg config) (gpio.Line, error) {
	switch cfg.Backend {
	case backendCdev:
		offset, err := strconv.Atoi(cfg.Pin)
		if err != nil {
			return nil, fmt.Errorf("pin %q: %w", cfg.Pin, err)
		}
		return gpio.NewCdevLine(cfg.Chip, offset)
	case backendPeriph:
		return gpio.NewPeriphLine(cfg.periphPinName())
	case backendFake:
		return gpio.NewFakeLine(gpio.High), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func newDriver(cfg config, line gpio.Line, log *zap.Logger) (*dht.Driver, error) {
	dcfg := dht.DefaultConfig(cfg.Model)
	dcfg.Threshold = cfg.Threshold

	opts := []dht.Option{dht.WithLogger(log)}
	if cfg.Backend == backendFake {
		opts = append(opts, dht.WithSampler(dht.NewFrameSampler(demoFrame(cfg.Model))))
	}

	d, err := dht.New(line, dcfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		return nil, err
	}
	return d, nil
}

// demoFrame is what the fake backend's sensor reports: 65.2 %RH at 21.5 °C.
func demoFrame(m logic.Model) logic.Frame {
	if m == logic.ModelSimple {
		return logic.NewFrame(65, 0, 21, 0)
	}
	return logic.NewFrame(0x02, 0x8c, 0x00, 0xd7)
}

func formatReading(r logic.Reading) string {
	return fmt.Sprintf("Humidity: %.1f%%  Temperature: %.1f°C / %.1f°F  Heat index: %.1f°C",
		r.Humidity, r.Temperature, r.TemperatureF(), r.HeatIndex())
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
