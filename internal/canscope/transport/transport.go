// Package transport connects the scope to a CAN bus.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/canscope/pkg/can"
)

var (
	// ErrClosed is returned by Receive and Send after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrNotOpen is returned by Receive and Send before Open succeeded.
	ErrNotOpen = errors.New("transport: not open")

	// ErrUnsupported is returned when the platform lacks the backend.
	ErrUnsupported = errors.New("transport: not supported on this platform")
)

// Lifecycle of a transport.
const (
	stateIdle int32 = iota
	stateOpen
	stateClosed
)

// Info describes the device behind an opened transport.
type Info struct {
	// Device is a human name, e.g. "USBtin" or "can0".
	Device string

	// Firmware and Hardware are version strings; empty when unknown.
	Firmware string
	Hardware string
}

// String renders the connect notice subject: "USBtin (FW1.8/HW1.0)".
func (i Info) String() string {
	if i.Firmware == "" && i.Hardware == "" {
		return i.Device
	}
	return fmt.Sprintf("%s (FW%s/HW%s)", i.Device, i.Firmware, i.Hardware)
}

// Transport is a bidirectional CAN channel.
//
// Receive and Send may be called concurrently with each other. Close unblocks
// a pending Receive.
type Transport interface {
	// Name identifies the backend, e.g. "slcan".
	Name() string

	// Open connects to the device and starts the channel.
	Open(ctx context.Context) (Info, error)

	// Receive blocks until a frame arrives. A *NoticeError reports a
	// non-fatal device condition; the caller may keep reading.
	Receive(ctx context.Context) (*can.Frame, error)

	// Send transmits one frame.
	Send(ctx context.Context, frame *can.Frame) error

	// Close stops the channel and releases the device.
	Close() error
}

// NoticeError is a non-fatal condition reported by the device.
type NoticeError struct {
	Msg string
}

func (e *NoticeError) Error() string { return e.Msg }

// IsNotice reports whether err carries a *NoticeError.
func IsNotice(err error) bool {
	var n *NoticeError
	return errors.As(err, &n)
}
