//go:build !linux

package transport

import (
	"context"

	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/options"
)

// SocketCAN is only available on Linux.
type SocketCAN struct {
	iface string
}

// NewSocketCAN returns a transport whose Open fails with ErrUnsupported.
func NewSocketCAN(o *options.SocketCANOptions) *SocketCAN {
	return &SocketCAN{iface: o.Interface}
}

func (s *SocketCAN) Open(ctx context.Context) (Info, error) { return Info{}, ErrUnsupported }

func (s *SocketCAN) Receive(ctx context.Context) (*can.Frame, error) { return nil, ErrNotOpen }

func (s *SocketCAN) Send(ctx context.Context, frame *can.Frame) error { return ErrNotOpen }

func (s *SocketCAN) Close() error { return nil }
