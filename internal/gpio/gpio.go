// Package gpio provides a single bidirectional GPIO line with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

// Line levels. true is electrically high.
const (
	Low  = false
	High = true
)

// Line is one GPIO line that can be driven as an output or released as an
// input with a pull-up, which is how single-wire sensors share the line.
type Line interface {
	// Output switches the line to output mode and drives it to level.
	Output(level bool) error

	// Input releases the line: input mode with the pull-up enabled.
	Input() error

	// Read returns the current level. Called in a tight loop while sampling.
	Read() (bool, error)

	// Close returns the line to input with pull-up and releases it.
	Close() error
}

// Default line settings (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 4
)
