package canscope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/autopeer-io/canscope/internal/canscope/transport"
	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/internal/pkg/metrics"
	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/log"
)

var (
	// ErrNotConnected is returned by Send while the transport is not connected.
	ErrNotConnected = errors.New("canscope: not connected")

	// ErrBusy is returned when Connect or Disconnect is already in progress.
	ErrBusy = errors.New("canscope: connection change in progress")
)

// Scope is a running CAN monitor: one transport feeding one session.
type Scope struct {
	transport transport.Transport
	session   *Session
	conn      *ConnectionFSM
	limiter   *rate.Limiter

	// mu serializes Connect and Disconnect.
	mu   sync.Mutex
	info transport.Info

	// wg tracks the receive loop of the current connection.
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScope wires a transport to a session. A nil limiter sends without limit.
func NewScope(t transport.Transport, session *Session, limiter *rate.Limiter) *Scope {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Scope{
		transport: t,
		session:   session,
		limiter:   limiter,
		conn: NewConnectionFSM(func(from, to string) {
			metrics.SetConnected(to == StateConnected)
		}),
	}
}

// Session returns the session fed by this scope.
func (s *Scope) Session() *Session { return s.session }

// State returns the connection state.
func (s *Scope) State() string { return s.conn.Current() }

// Connected reports whether Send is possible.
func (s *Scope) Connected() bool { return s.conn.Connected() }

// Info describes the connected device. It is zero while disconnected.
func (s *Scope) Info() transport.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Connect opens the transport and starts recording received frames. The
// outcome is recorded in the session as an INFO or ERROR notice.
func (s *Scope) Connect(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	if err := s.conn.Event(ctx, EventConnect); err != nil {
		return fmt.Errorf("connect from state %s: %w", s.conn.Current(), err)
	}

	info, err := s.transport.Open(ctx)
	if err != nil {
		s.session.Error(err)
		_ = s.conn.Event(ctx, EventFail)
		log.Error(err, "Failed to connect", "transport", s.transport.Name())
		return err
	}

	s.info = info
	rctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.receiveLoop(rctx)
	}()

	_ = s.conn.Event(ctx, EventOpened)
	s.session.Info(fmt.Sprintf("Connected to %s", info))
	log.Info("Connected", "transport", s.transport.Name(), "device", info.String())
	return nil
}

// Disconnect stops the receive loop and closes the transport.
func (s *Scope) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if err := s.conn.Event(ctx, EventDisconnect); err != nil {
		return fmt.Errorf("disconnect from state %s: %w", s.conn.Current(), err)
	}

	err := s.transport.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.info = transport.Info{}

	if err != nil {
		s.session.Error(err)
		_ = s.conn.Event(ctx, EventFail)
		log.Error(err, "Failed to close transport", "transport", s.transport.Name())
		return err
	}

	_ = s.conn.Event(ctx, EventClosed)
	s.session.Info("Disconnected")
	log.Info("Disconnected", "transport", s.transport.Name())
	return nil
}

// Send records the frame as OUT, then transmits it. A transmit failure is
// recorded as an ERROR notice and returned.
func (s *Scope) Send(ctx context.Context, frame *can.Frame) error {
	if !s.conn.Connected() {
		return ErrNotConnected
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	s.session.Record(frame, monitor.ClassOut)

	start := time.Now()
	err := s.transport.Send(ctx, frame)
	metrics.SendLatency.WithLabelValues(s.transport.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		s.session.Error(err)
		return err
	}
	return nil
}

// Resend sends the frames of the given trace rows again, in order. Notices
// are skipped. All indices are resolved before anything is sent; sending stops
// at the first failure.
func (s *Scope) Resend(ctx context.Context, indices []int) (sent int, err error) {
	if !s.conn.Connected() {
		return 0, ErrNotConnected
	}
	frames, err := s.session.Frames(indices)
	if err != nil {
		return 0, err
	}
	for _, f := range frames {
		if err := s.Send(ctx, f); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// SendText parses SLCAN text such as "t1232aabb" and sends it.
func (s *Scope) SendText(ctx context.Context, text string) error {
	frame, err := can.ParseFrame(text)
	if err != nil {
		return err
	}
	return s.Send(ctx, frame)
}

// Clear resets the session.
func (s *Scope) Clear() {
	s.session.Clear()
}

// receiveLoop records every received frame as IN until ctx ends or the
// transport fails.
func (s *Scope) receiveLoop(ctx context.Context) {
	for {
		frame, err := s.transport.Receive(ctx)
		switch {
		case err == nil:
			s.session.Record(frame, monitor.ClassIn)
		case transport.IsNotice(err):
			s.session.Error(err)
		case ctx.Err() != nil, errors.Is(err, transport.ErrClosed):
			return
		default:
			s.session.Error(err)
			log.Error(err, "Receive failed, dropping connection", "transport", s.transport.Name())
			go s.drop()
			return
		}
	}
}

// drop tears the connection down after a fatal receive error.
func (s *Scope) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.conn.Connected() {
		return
	}
	_ = s.transport.Close()
	s.cancel()
	s.wg.Wait()
	s.info = transport.Info{}
	_ = s.conn.Event(context.Background(), EventFail)
	s.session.Info("Disconnected")
}
