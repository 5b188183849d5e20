package monitor

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by row accessors for positions that are not
// currently valid.
var ErrIndexOutOfRange = errors.New("index out of range")

func outOfRange(index, size int) error {
	return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, size)
}
