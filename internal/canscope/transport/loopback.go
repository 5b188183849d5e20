package transport

import (
	"context"
	"sync"

	"github.com/autopeer-io/canscope/pkg/can"
)

var _ Transport = (*Loopback)(nil)

// Loopback is an in-memory bus. Every sent frame is received back, and Inject
// delivers frames as if another node had sent them. It can be reopened after
// Close; frames still queued survive.
type Loopback struct {
	mu    sync.Mutex
	queue chan *can.Frame
	done  chan struct{}
	state int32
}

// NewLoopback returns a loopback transport buffering up to size frames.
func NewLoopback(size int) *Loopback {
	if size < 1 {
		size = 1
	}
	return &Loopback{queue: make(chan *can.Frame, size)}
}

func (l *Loopback) Name() string { return "loopback" }

func (l *Loopback) Open(ctx context.Context) (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != stateOpen {
		l.done = make(chan struct{})
		l.state = stateOpen
	}
	return Info{Device: "loopback"}, nil
}

func (l *Loopback) Receive(ctx context.Context) (*can.Frame, error) {
	done, err := l.ready()
	if err != nil {
		return nil, err
	}

	select {
	case f := <-l.queue:
		return f, nil
	case <-done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) Send(ctx context.Context, frame *can.Frame) error {
	done, err := l.ready()
	if err != nil {
		return err
	}
	return l.push(ctx, done, frame)
}

// Inject queues a frame for Receive. Unlike Send it works on a transport that
// is not open yet.
func (l *Loopback) Inject(ctx context.Context, frame *can.Frame) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	return l.push(ctx, done, frame)
}

// push blocks while the queue is full. A nil done never fires.
func (l *Loopback) push(ctx context.Context, done <-chan struct{}, frame *can.Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}

	select {
	case l.queue <- frame.Clone():
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateOpen {
		close(l.done)
	}
	l.state = stateClosed
	return nil
}

func (l *Loopback) ready() (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case stateClosed:
		return nil, ErrClosed
	case stateIdle:
		return nil, ErrNotOpen
	}
	return l.done, nil
}
