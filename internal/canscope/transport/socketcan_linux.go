//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.einride.tech/can/pkg/socketcan"

	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/options"
)

// SocketCAN reads and writes a Linux CAN network interface.
type SocketCAN struct {
	iface string

	mu     sync.Mutex
	conn   net.Conn
	tx     *socketcan.Transmitter
	frames chan result
	done   chan struct{}
	state  atomic.Int32
}

// NewSocketCAN returns a transport bound to o.Interface.
func NewSocketCAN(o *options.SocketCANOptions) *SocketCAN {
	return &SocketCAN{iface: o.Interface}
}

func (s *SocketCAN) Open(ctx context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() == stateOpen {
		return Info{}, errors.New("socketcan: already open")
	}

	conn, err := socketcan.DialContext(ctx, "can", s.iface)
	if err != nil {
		return Info{}, fmt.Errorf("dial %s: %w", s.iface, err)
	}
	s.conn = conn
	s.tx = socketcan.NewTransmitter(conn)
	s.frames = make(chan result, 256)
	s.done = make(chan struct{})
	go s.readLoop(socketcan.NewReceiver(conn), s.frames, s.done)

	s.state.Store(stateOpen)
	return Info{Device: s.iface}, nil
}

func (s *SocketCAN) readLoop(rx *socketcan.Receiver, frames chan<- result, done <-chan struct{}) {
	defer close(frames)

	for rx.Receive() {
		var res result
		if rx.HasErrorFrame() {
			res.err = &NoticeError{Msg: fmt.Sprintf("CAN error frame on %s: %v", s.iface, rx.ErrorFrame())}
		} else {
			res.frame, res.err = fromWire(rx.Frame())
			if res.err != nil {
				res.err = &NoticeError{Msg: res.err.Error()}
			}
		}

		select {
		case frames <- res:
		case <-done:
			return
		}
	}
	if err := rx.Err(); err != nil {
		select {
		case frames <- result{err: fmt.Errorf("socketcan: read: %w", err)}:
		case <-done:
		}
	}
}

func (s *SocketCAN) Receive(ctx context.Context) (*can.Frame, error) {
	switch s.state.Load() {
	case stateClosed:
		return nil, ErrClosed
	case stateIdle:
		return nil, ErrNotOpen
	}

	select {
	case res, ok := <-s.frames:
		if !ok {
			return nil, ErrClosed
		}
		return res.frame, res.err
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SocketCAN) Send(ctx context.Context, frame *can.Frame) error {
	switch s.state.Load() {
	case stateClosed:
		return ErrClosed
	case stateIdle:
		return ErrNotOpen
	}

	w, err := toWire(frame)
	if err != nil {
		return err
	}
	return s.tx.TransmitFrame(ctx, w)
}

func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(stateOpen, stateClosed) {
		return nil
	}
	close(s.done)
	return s.conn.Close()
}
