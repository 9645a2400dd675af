//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevLine drives a line through the Linux GPIO character device.
type CdevLine struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	offset int
	output bool
}

// NewCdevLine requests offset on the named chip as an input with pull-up,
// the idle state of a single-wire sensor bus.
func NewCdevLine(chipName string, offset int) (*CdevLine, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("dht-logger"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}

	return &CdevLine{
		chip:   chip,
		line:   line,
		offset: offset,
	}, nil
}

// Output drives the line. Switching from input reconfigures the line with
// the level as its initial value so there is no glitch.
func (c *CdevLine) Output(level bool) error {
	v := 0
	if level {
		v = 1
	}
	if c.output {
		if err := c.line.SetValue(v); err != nil {
			return fmt.Errorf("set pin %d: %w", c.offset, err)
		}
		return nil
	}
	if err := c.line.Reconfigure(gpiocdev.AsOutput(v)); err != nil {
		return fmt.Errorf("reconfigure pin %d as output: %w", c.offset, err)
	}
	c.output = true
	return nil
}

// Input releases the line to the sensor.
func (c *CdevLine) Input() error {
	if err := c.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		return fmt.Errorf("reconfigure pin %d as input: %w", c.offset, err)
	}
	c.output = false
	return nil
}

// Read returns the current level.
func (c *CdevLine) Read() (bool, error) {
	v, err := c.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", c.offset, err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-up before closing so the bus idles
// high between runs and the sensor is not held in reset.
func (c *CdevLine) Close() error {
	var errs []error

	if c.line != nil {
		if err := c.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", c.offset, err))
		}
		if err := c.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", c.offset, err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
