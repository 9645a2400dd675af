package logic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is a configuration fault: the sensor name is not supported.
var ErrUnknownModel = errors.New("unknown sensor model")

// Model selects how a frame is decoded into measurement values.
type Model int

const (
	// ModelSimple reads integer humidity and temperature from bytes 0 and 2 (DHT11).
	ModelSimple Model = iota + 1
	// ModelScaled reads 16-bit tenths with a temperature sign bit (DHT21, DHT22, AM2301, AM2302).
	ModelScaled
)

func (m Model) String() string {
	switch m {
	case ModelSimple:
		return "simple"
	case ModelScaled:
		return "scaled"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Valid reports whether m is one of the known layouts.
func (m Model) Valid() bool {
	return m == ModelSimple || m == ModelScaled
}

// ParseModel maps a sensor part name or layout name to a Model.
func ParseModel(name string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dht11", "11", "simple":
		return ModelSimple, nil
	case "dht21", "21", "dht22", "22", "am2301", "am2302", "scaled":
		return ModelScaled, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}
