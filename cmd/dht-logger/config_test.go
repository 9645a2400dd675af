package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/dht-logger/internal/logic"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, noEnv)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Device)
	assert.Equal(t, logic.ModelScaled, cfg.Model)
	assert.Equal(t, backendCdev, cfg.Backend)
	assert.Equal(t, "gpiochip0", cfg.Chip)
	assert.Equal(t, "4", cfg.Pin)
	assert.Equal(t, logic.DefaultThreshold, cfg.Threshold)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat)
	assert.Equal(t, "tcp://192.168.1.200:1883", cfg.Broker)
	assert.Equal(t, "ws://192.168.1.200:9001", cfg.WSBroker)
	assert.Equal(t, ":80", cfg.HTTPAddr)
	assert.Empty(t, cfg.DB)
	assert.Equal(t, "dht_readings", cfg.DBTable)
	assert.False(t, cfg.Print)
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{
		"--device=porch",
		"--model=dht11",
		"--backend=periph",
		"--pin=GPIO17",
		"--interval=5s",
		"--heartbeat=0",
		"--db=postgres://localhost/weather",
		"-p",
	}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "porch", cfg.Device)
	assert.Equal(t, logic.ModelSimple, cfg.Model)
	assert.Equal(t, backendPeriph, cfg.Backend)
	assert.Equal(t, "GPIO17", cfg.Pin)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Zero(t, cfg.Heartbeat)
	assert.Equal(t, "postgres://localhost/weather", cfg.DB)
	assert.True(t, cfg.Print)
}

func TestParseConfigEnvFallback(t *testing.T) {
	env := envMap(map[string]string{
		"DHT_DEVICE":   "greenhouse",
		"DHT_MODEL":    "am2302",
		"DHT_PIN":      "17",
		"DHT_INTERVAL": "30s",
		"DHT_BROKER":   "tcp://broker.local:1883",
	})
	cfg, err := parseConfig(nil, env)
	require.NoError(t, err)

	assert.Equal(t, "greenhouse", cfg.Device)
	assert.Equal(t, logic.ModelScaled, cfg.Model)
	assert.Equal(t, "17", cfg.Pin)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, "ws://broker.local:9001", cfg.WSBroker)
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	env := envMap(map[string]string{"DHT_DEVICE": "greenhouse", "DHT_INTERVAL": "30s"})
	cfg, err := parseConfig([]string{"--device=porch"}, env)
	require.NoError(t, err)

	assert.Equal(t, "porch", cfg.Device)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestParseConfigBadEnvValue(t *testing.T) {
	_, err := parseConfig(nil, envMap(map[string]string{"DHT_INTERVAL": "soon"}))
	assert.ErrorContains(t, err, "DHT_INTERVAL")
}

func TestParseConfigUnknownModel(t *testing.T) {
	_, err := parseConfig([]string{"--model=dht99"}, noEnv)
	assert.ErrorIs(t, err, logic.ErrUnknownModel)
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"interval below minimum", []string{"--interval=1s"}, "below the sensor minimum"},
		{"cdev pin not numeric", []string{"--pin=GPIO4"}, "line offset"},
		{"unknown backend", []string{"--backend=sysfs"}, "unknown backend"},
		{"threshold zero", []string{"--threshold=0"}, "threshold"},
		{"threshold saturated", []string{"--threshold=255"}, "threshold"},
		{"negative heartbeat", []string{"--heartbeat=-1s"}, "negative"},
		{"no retries", []string{"--retries=0"}, "retries"},
		{"empty device", []string{"--device="}, "device name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args, noEnv)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseConfigJoinsValidationErrors(t *testing.T) {
	_, err := parseConfig([]string{"--interval=1s", "--backend=sysfs"}, noEnv)
	assert.ErrorContains(t, err, "below the sensor minimum")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestPeriphPinName(t *testing.T) {
	assert.Equal(t, "GPIO4", config{Pin: "4"}.periphPinName())
	assert.Equal(t, "P1_7", config{Pin: "P1_7"}.periphPinName())
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"", "tcp://192.168.1.200:1883", ""},
		{"wss://example.com/mqtt", "tcp://192.168.1.200:1883", "wss://example.com/mqtt"},
		{"=broker", "::not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveWSBroker(tt.ws, tt.broker), "ws=%q broker=%q", tt.ws, tt.broker)
	}
}
