package logic

import (
	"fmt"
	"time"
)

// Frame is the 5-byte payload sent by the sensor.
//
//	[0] humidity high / integer part
//	[1] humidity low / fraction
//	[2] temperature high / integer part, bit 7 is the sign on scaled sensors
//	[3] temperature low / fraction
//	[4] checksum
type Frame [FrameBytes]byte

// Checksum returns the low 8 bits of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the checksum byte matches the data bytes.
func (f Frame) Valid() bool {
	return f[4] == f.Checksum()
}

func (f Frame) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x %02x", f[0], f[1], f[2], f[3], f[4])
}

// NewFrame builds a frame from four data bytes with a correct checksum.
func NewFrame(b0, b1, b2, b3 byte) Frame {
	f := Frame{b0, b1, b2, b3}
	f[4] = f.Checksum()
	return f
}

// Decode converts a validated frame into a Reading stamped with t.
// Each model has its own decode path; one never falls into the other.
func (f Frame) Decode(m Model, t time.Time) Reading {
	var r Reading
	switch m {
	case ModelSimple:
		r = decodeSimple(f)
	case ModelScaled:
		r = decodeScaled(f)
	}
	r.Time = t
	r.Raw = f
	return r
}

func decodeSimple(f Frame) Reading {
	return Reading{
		Humidity:    float64(f[0]),
		Temperature: float64(f[2]),
	}
}

func decodeScaled(f Frame) Reading {
	humidity := float64(int(f[0]&0x7F)<<8|int(f[1])) / 10
	temperature := float64(int(f[2]&0x7F)<<8|int(f[3])) / 10
	if f[2]&0x80 != 0 {
		temperature = -temperature
	}
	return Reading{
		Humidity:    humidity,
		Temperature: temperature,
	}
}
