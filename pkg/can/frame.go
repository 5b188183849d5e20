package can

import (
	"errors"
	"fmt"
)

const (
	// MaxStandardID is the largest 11-bit identifier.
	MaxStandardID = 0x7FF
	// MaxExtendedID is the largest 29-bit identifier.
	MaxExtendedID = 0x1FFFFFFF
	// MaxDataLength is the classic CAN payload limit.
	MaxDataLength = 8
)

var (
	ErrInvalidID  = errors.New("can: identifier out of range")
	ErrDataLength = errors.New("can: payload longer than 8 bytes")
	ErrRemoteData = errors.New("can: remote request carries payload")
	ErrMalformed  = errors.New("can: malformed frame text")
)

// Frame is one classic CAN frame as seen on the bus.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Data     []byte
}

// NewFrame builds and validates a frame. data is copied.
func NewFrame(id uint32, data []byte, extended, rtr bool) (*Frame, error) {
	f := &Frame{
		ID:       id,
		Extended: extended,
		RTR:      rtr,
	}
	if len(data) > 0 {
		f.Data = append([]byte(nil), data...)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks identifier width, payload length and the remote request rule.
func (f *Frame) Validate() error {
	limit := uint32(MaxStandardID)
	if f.Extended {
		limit = MaxExtendedID
	}
	if f.ID > limit {
		return fmt.Errorf("%w: %#x exceeds %#x", ErrInvalidID, f.ID, limit)
	}
	if len(f.Data) > MaxDataLength {
		return fmt.Errorf("%w: got %d", ErrDataLength, len(f.Data))
	}
	if f.RTR && len(f.Data) > 0 {
		return ErrRemoteData
	}
	return nil
}

// DLC returns the payload length.
func (f *Frame) DLC() int { return len(f.Data) }

// Clone returns a deep copy. A nil frame clones to nil.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Data != nil {
		c.Data = append([]byte(nil), f.Data...)
	}
	return &c
}

// Equal reports whether both frames carry the same content.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.ID != o.ID || f.Extended != o.Extended || f.RTR != o.RTR || len(f.Data) != len(o.Data) {
		return false
	}
	for i := range f.Data {
		if f.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}
