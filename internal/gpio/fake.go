package gpio

import "errors"

// FakeLine is a test double that records writes and returns scripted levels.
type FakeLine struct {
	// Levels contains scripted values returned by Read.
	// Each call to Read consumes the next level; once exhausted the last
	// level is returned repeatedly.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Writes contains every level passed to Output, in order.
	Writes []bool

	// Inputs counts calls to Input.
	Inputs int

	// Reads counts calls to Read.
	Reads int

	// IsOutput reports the current mode.
	IsOutput bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read.
	ReadError error

	// WriteError, if set, will be returned by Output and Input.
	WriteError error
}

// NewFakeLine creates a FakeLine with the given scripted levels.
func NewFakeLine(levels ...bool) *FakeLine {
	return &FakeLine{Levels: levels}
}

// Output records the level and switches to output mode.
func (f *FakeLine) Output(level bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.IsOutput = true
	f.Writes = append(f.Writes, level)
	return nil
}

// Input switches to input mode.
func (f *FakeLine) Input() error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.IsOutput = false
	f.Inputs++
	return nil
}

// Read returns the next scripted level.
func (f *FakeLine) Read() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return level, nil
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.Closed = true
	f.IsOutput = false
	return nil
}

// Reset rewinds the scripted levels and clears recorded activity.
func (f *FakeLine) Reset() {
	f.index = 0
	f.Writes = nil
	f.Inputs = 0
	f.Reads = 0
	f.IsOutput = false
	f.Closed = false
}
