package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/dht-logger/internal/dht"
	"github.com/sweeney/dht-logger/internal/gpio"
	"github.com/sweeney/dht-logger/internal/logic"
	"github.com/sweeney/dht-logger/internal/store"
)

// Supported line backends.
const (
	backendCdev   = "cdev"
	backendPeriph = "periph"
	backendFake   = "fake"
)

type config struct {
	Device    string
	Model     logic.Model
	Backend   string
	Chip      string
	Pin       string
	Threshold int
	Interval  time.Duration
	Heartbeat time.Duration
	Retries   int
	Broker    string
	WSBroker  string
	HTTPAddr  string
	DB        string
	DBTable   string
	Print     bool
	Debug     bool
}

// envFlags maps flag names to the environment variables that provide their
// defaults. A flag given on the command line wins.
var envFlags = map[string]string{
	"device":    "DHT_DEVICE",
	"model":     "DHT_MODEL",
	"backend":   "DHT_BACKEND",
	"chip":      "DHT_CHIP",
	"pin":       "DHT_PIN",
	"interval":  "DHT_INTERVAL",
	"heartbeat": "DHT_HEARTBEAT",
	"broker":    "DHT_BROKER",
	"ws-broker": "DHT_WS_BROKER",
	"http":      "DHT_HTTP",
	"db":        "DHT_DB",
	"db-table":  "DHT_DB_TABLE",
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	fs := pflag.NewFlagSet("dht-logger", pflag.ContinueOnError)

	device := fs.String("device", defaultDevice(), "Device name used in MQTT topics and stored rows")
	model := fs.String("model", "dht22", "Sensor model (dht11, dht21, dht22, am2301, am2302)")
	backend := fs.String("backend", backendCdev, "GPIO backend (cdev, periph, fake)")
	chip := fs.String("chip", gpio.DefaultChip, "GPIO chip for the cdev backend")
	pin := fs.String("pin", strconv.Itoa(gpio.DefaultPin), "Data pin: line offset for cdev, pin name or BCM number for periph")
	threshold := fs.Int("threshold", logic.DefaultThreshold, "Tick count separating a 0 bit from a 1 bit")
	interval := fs.Duration("interval", 60*time.Second, "Read interval")
	heartbeat := fs.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	retries := fs.Int("retries", 3, "Read attempts in --print mode")
	broker := fs.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	wsBroker := fs.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	httpAddr := fs.String("http", ":80", "HTTP status address (empty to disable)")
	db := fs.String("db", "", "PostgreSQL DSN for reading history (empty to disable)")
	dbTable := fs.String("db-table", store.DefaultTable, "PostgreSQL table for reading history")
	printReading := fs.BoolP("print", "p", false, "Print one reading and exit")
	debug := fs.Bool("debug", false, "Enable debug logging")

	for name, env := range envFlags {
		if v := getenv(env); v != "" {
			if err := fs.Lookup(name).Value.Set(v); err != nil {
				return config{}, fmt.Errorf("%s: %w", env, err)
			}
		}
	}

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	m, err := logic.ParseModel(*model)
	if err != nil {
		return config{}, err
	}

	cfg := config{
		Device:    *device,
		Model:     m,
		Backend:   *backend,
		Chip:      *chip,
		Pin:       *pin,
		Threshold: *threshold,
		Interval:  *interval,
		Heartbeat: *heartbeat,
		Retries:   *retries,
		Broker:    *broker,
		WSBroker:  resolveWSBroker(*wsBroker, *broker),
		HTTPAddr:  *httpAddr,
		DB:        *db,
		DBTable:   *dbTable,
		Print:     *printReading,
		Debug:     *debug,
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device name is empty"))
	}
	switch c.Backend {
	case backendCdev:
		if _, err := strconv.Atoi(c.Pin); err != nil {
			errs = append(errs, fmt.Errorf("cdev pin must be a line offset, got %q", c.Pin))
		}
	case backendPeriph, backendFake:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Threshold <= 0 || c.Threshold >= logic.TimeoutTicks {
		errs = append(errs, fmt.Errorf("threshold %d out of range (1..%d)", c.Threshold, logic.TimeoutTicks-1))
	}
	if floor := dht.DefaultConfig(c.Model).MinInterval; c.Interval < floor {
		errs = append(errs, fmt.Errorf("interval %v is below the sensor minimum of %v", c.Interval, floor))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat %v is negative", c.Heartbeat))
	}
	if c.Retries < 1 {
		errs = append(errs, fmt.Errorf("retries must be at least 1, got %d", c.Retries))
	}
	return errors.Join(errs...)
}

// periphPinName turns a bare BCM number into the name periph registers it under.
func (c config) periphPinName() string {
	if _, err := strconv.Atoi(c.Pin); err == nil {
		return "GPIO" + c.Pin
	}
	return c.Pin
}

func defaultDevice() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "dht"
	}
	return host
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
