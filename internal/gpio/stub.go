//go:build !linux

package gpio

import "errors"

// CdevLine is not available on non-Linux platforms.
type CdevLine struct{}

// NewCdevLine returns an error on non-Linux platforms.
func NewCdevLine(chipName string, offset int) (*CdevLine, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

// Output is not implemented on non-Linux platforms.
func (c *CdevLine) Output(level bool) error {
	return errors.New("gpio: not supported")
}

// Input is not implemented on non-Linux platforms.
func (c *CdevLine) Input() error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (c *CdevLine) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *CdevLine) Close() error {
	return nil
}
