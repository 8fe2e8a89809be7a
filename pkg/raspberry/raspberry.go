//go:build linux
// +build linux

// Package raspberry reads digital inputs of the gpio character device.
package raspberry

import (
	"fmt"

	"github.com/warthog618/gpiod"
)

var ErrInvalidParam = fmt.Errorf("invalid parameters")

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
}

// Input represents a single requested input line.
type Input struct {
	gpiodLine *gpiod.Line
	offset    int
}

// Open opens the GPIO character device name, e.g. gpiochip0.
func Open(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %v: %w", name, err)
	}
	return &Chip{gpiodChip: c}, nil
}

// NewInput requests the line offset as input.
// terminator is one of pullup, pulldown or none.
//   If granted, control is maintained until the Input is closed.
func (c *Chip) NewInput(offset int, terminator string) (*Input, error) {
	var opts []gpiod.LineReqOption

	switch terminator {
	case "pullup":
		opts = []gpiod.LineReqOption{gpiod.AsInput, gpiod.WithPullUp}
	case "pulldown":
		opts = []gpiod.LineReqOption{gpiod.AsInput, gpiod.WithPullDown}
	case "none", "":
		opts = []gpiod.LineReqOption{gpiod.AsInput}
	default:
		return nil, ErrInvalidParam
	}

	l, err := c.gpiodChip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request line %v: %w", offset, err)
	}
	return &Input{gpiodLine: l, offset: offset}, nil
}

// Offset returns the line offset of the input.
func (i *Input) Offset() int {
	return i.offset
}

// Read returns the current level of the input.
func (i *Input) Read() (bool, error) {
	v, err := i.gpiodLine.Value()
	if err != nil {
		return false, fmt.Errorf("read line %v: %w", i.offset, err)
	}
	return v == 1, nil
}

// Close releases the line.
func (i *Input) Close() error {
	return i.gpiodLine.Close()
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be closed
// independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}
