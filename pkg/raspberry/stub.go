//go:build !linux
// +build !linux

package raspberry

import "errors"

var (
	ErrInvalidParam = errors.New("invalid parameters")
	errUnsupported  = errors.New("gpio: not supported on this platform (requires Linux)")
)

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Input is not available on non-Linux platforms.
type Input struct {
	offset int
}

// Open returns an error on non-Linux platforms.
func Open(name string) (*Chip, error) {
	return nil, errUnsupported
}

func (c *Chip) NewInput(offset int, terminator string) (*Input, error) {
	return nil, errUnsupported
}

func (i *Input) Offset() int {
	return i.offset
}

func (i *Input) Read() (bool, error) {
	return false, errUnsupported
}

func (i *Input) Close() error {
	return nil
}

func (c *Chip) Close() error {
	return nil
}
