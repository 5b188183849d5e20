package transport

import (
	"fmt"

	einride "go.einride.tech/can"

	"github.com/autopeer-io/canscope/pkg/can"
)

var _ Transport = (*SocketCAN)(nil)

func (s *SocketCAN) Name() string { return "socketcan" }

// toWire converts a frame to the SocketCAN representation.
func toWire(f *can.Frame) (einride.Frame, error) {
	if err := f.Validate(); err != nil {
		return einride.Frame{}, err
	}
	w := einride.Frame{
		ID:         f.ID,
		Length:     uint8(len(f.Data)),
		IsRemote:   f.RTR,
		IsExtended: f.Extended,
	}
	copy(w.Data[:], f.Data)
	return w, w.Validate()
}

// fromWire converts a received SocketCAN frame. The length of a remote
// request is not kept.
func fromWire(w einride.Frame) (*can.Frame, error) {
	if w.Length > can.MaxDataLength {
		return nil, fmt.Errorf("%w: got %d", can.ErrDataLength, w.Length)
	}
	f := &can.Frame{
		ID:       w.ID,
		Extended: w.IsExtended,
		RTR:      w.IsRemote,
	}
	if !w.IsRemote && w.Length > 0 {
		f.Data = append([]byte(nil), w.Data[:w.Length]...)
	}
	return f, f.Validate()
}
