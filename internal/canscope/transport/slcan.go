package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/log"
	"github.com/autopeer-io/canscope/pkg/options"
)

const (
	slcanCR  = '\r'
	slcanBEL = 0x07
	belToken = "\a"

	// defaultSettle is how long Open waits for replies to the flush sequence.
	defaultSettle = 100 * time.Millisecond

	// defaultCommandTimeout bounds one command round trip during Open.
	defaultCommandTimeout = time.Second
)

var _ Transport = (*SLCAN)(nil)

// ErrCommand is returned when the adapter answers a command with BEL.
var ErrCommand = errors.New("slcan: command rejected")

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Opener connects to the raw byte stream of an adapter.
type Opener func() (io.ReadWriteCloser, error)

// SerialOpener opens a serial port with go.bug.st/serial.
func SerialOpener(port string, baud int) Opener {
	return func() (io.ReadWriteCloser, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", port, err)
		}
		return p, nil
	}
}

// SLCAN drives a USBtin or compatible adapter speaking the Lawicel ASCII
// protocol.
type SLCAN struct {
	open           Opener
	bitrate        int
	mode           string
	settle         time.Duration
	commandTimeout time.Duration

	wmu  sync.Mutex
	conn io.ReadWriteCloser

	// running is set once the channel is open. Before that, replies go to
	// replies for Open to consume.
	running atomic.Bool
	replies chan string
	frames  chan result
	done    chan struct{}
	readErr error
	state   atomic.Int32
}

type result struct {
	frame *can.Frame
	err   error
}

// SLCANOption tunes an SLCAN transport.
type SLCANOption func(*SLCAN)

// WithSettle sets how long Open waits for the adapter to answer the flush.
func WithSettle(d time.Duration) SLCANOption {
	return func(s *SLCAN) { s.settle = d }
}

// WithCommandTimeout bounds each command round trip during Open.
func WithCommandTimeout(d time.Duration) SLCANOption {
	return func(s *SLCAN) { s.commandTimeout = d }
}

// NewSLCAN builds an SLCAN transport on top of a serial port.
func NewSLCAN(o *options.SerialOptions, opts ...SLCANOption) *SLCAN {
	return NewSLCANWithOpener(SerialOpener(o.Port, o.Baud), o.Bitrate, o.Mode, opts...)
}

// NewSLCANWithOpener builds an SLCAN transport over any byte stream.
func NewSLCANWithOpener(open Opener, bitrate int, mode string, opts ...SLCANOption) *SLCAN {
	s := &SLCAN{
		open:           open,
		bitrate:        bitrate,
		mode:           mode,
		settle:         defaultSettle,
		commandTimeout: defaultCommandTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SLCAN) Name() string { return "slcan" }

// Open resets the adapter, reads its versions and opens the CAN channel.
func (s *SLCAN) Open(ctx context.Context) (Info, error) {
	if s.state.Load() == stateOpen {
		return Info{}, errors.New("slcan: already open")
	}

	bitrateCmd, err := bitrateCommand(s.bitrate)
	if err != nil {
		return Info{}, err
	}
	modeCmd, err := modeCommand(s.mode)
	if err != nil {
		return Info{}, err
	}

	conn, err := s.open()
	if err != nil {
		return Info{}, err
	}
	s.conn = conn
	s.replies = make(chan string, 8)
	s.frames = make(chan result, 256)
	s.done = make(chan struct{})
	s.readErr = nil
	s.running.Store(false)
	go s.readLoop(conn, s.frames, s.done)

	info, err := s.handshake(ctx, bitrateCmd, modeCmd)
	if err != nil {
		close(s.done)
		_ = conn.Close()
		return Info{}, err
	}

	s.running.Store(true)
	s.state.Store(stateOpen)
	log.Debug("SLCAN channel open", "bitrate", s.bitrate, "mode", s.mode, "firmware", info.Firmware, "hardware", info.Hardware)
	return info, nil
}

func (s *SLCAN) handshake(ctx context.Context, bitrateCmd, modeCmd string) (Info, error) {
	// Flush any partial command, then discard whatever the adapter says.
	if err := s.write("\r\r\r"); err != nil {
		return Info{}, err
	}
	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
	s.drainReplies()

	// The channel may already be closed; a BEL here is expected.
	if _, err := s.command(ctx, "C", ""); err != nil && !errors.Is(err, ErrCommand) {
		return Info{}, err
	}

	// Late replies to the flush may still be queued; the version replies are
	// recognisable by their prefix.
	hw, err := s.command(ctx, "V", "V")
	if err != nil {
		return Info{}, fmt.Errorf("read hardware version: %w", err)
	}
	fw, err := s.command(ctx, "v", "v")
	if err != nil {
		return Info{}, fmt.Errorf("read firmware version: %w", err)
	}

	if _, err := s.command(ctx, bitrateCmd, ""); err != nil {
		return Info{}, fmt.Errorf("set bitrate %d: %w", s.bitrate, err)
	}
	if _, err := s.command(ctx, modeCmd, ""); err != nil {
		return Info{}, fmt.Errorf("open channel: %w", err)
	}

	return Info{
		Device:   "USBtin",
		Firmware: strings.TrimPrefix(fw, "v"),
		Hardware: strings.TrimPrefix(hw, "V"),
	}, nil
}

// command sends cmd and waits for its reply. With a prefix, replies that do
// not start with it are skipped.
func (s *SLCAN) command(ctx context.Context, cmd, prefix string) (string, error) {
	if err := s.write(cmd + "\r"); err != nil {
		return "", err
	}

	timer := time.NewTimer(s.commandTimeout)
	defer timer.Stop()

	for {
		select {
		case r := <-s.replies:
			if prefix != "" && !strings.HasPrefix(r, prefix) {
				continue
			}
			if r == belToken {
				return "", fmt.Errorf("%w: %q", ErrCommand, cmd)
			}
			return r, nil
		case <-timer.C:
			return "", fmt.Errorf("slcan: no reply to %q within %s", cmd, s.commandTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *SLCAN) drainReplies() {
	for {
		select {
		case <-s.replies:
		default:
			return
		}
	}
}

func (s *SLCAN) write(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.conn == nil {
		return ErrNotOpen
	}
	_, err := io.WriteString(s.conn, line)
	return err
}

// readLoop splits the stream on CR and BEL.
func (s *SLCAN) readLoop(conn io.Reader, frames chan<- result, done <-chan struct{}) {
	defer close(frames)

	r := bufio.NewReader(conn)
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			select {
			case <-done:
			default:
				s.readErr = fmt.Errorf("slcan: read: %w", err)
			}
			return
		}

		switch b {
		case slcanCR:
			s.dispatch(string(line), frames, done)
			line = line[:0]
		case slcanBEL:
			line = line[:0]
			s.dispatch(belToken, frames, done)
		default:
			line = append(line, b)
		}
	}
}

func (s *SLCAN) dispatch(token string, frames chan<- result, done <-chan struct{}) {
	var res result

	switch {
	case token != "" && strings.ContainsRune("tTrR", rune(token[0])):
		f, err := can.ParseFrame(token)
		if err != nil {
			res.err = &NoticeError{Msg: fmt.Sprintf("Malformed frame from adapter: %q", token)}
		} else {
			res.frame = f
		}
	case !s.running.Load():
		select {
		case s.replies <- token:
		default:
			log.Debug("Dropping unsolicited SLCAN reply", "reply", token)
		}
		return
	case token == belToken:
		res.err = &NoticeError{Msg: "Adapter signalled an error"}
	default:
		// z, Z and bare CR acknowledge transmissions.
		return
	}

	select {
	case frames <- res:
	case <-done:
	}
}

func (s *SLCAN) Receive(ctx context.Context) (*can.Frame, error) {
	if s.state.Load() != stateOpen {
		if s.state.Load() == stateClosed {
			return nil, ErrClosed
		}
		return nil, ErrNotOpen
	}

	select {
	case res, ok := <-s.frames:
		if !ok {
			if s.readErr != nil {
				return nil, s.readErr
			}
			return nil, ErrClosed
		}
		return res.frame, res.err
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes the frame. The adapter's acknowledgement is consumed by the
// reader; a rejection surfaces as a notice on Receive.
func (s *SLCAN) Send(ctx context.Context, frame *can.Frame) error {
	switch s.state.Load() {
	case stateClosed:
		return ErrClosed
	case stateIdle:
		return ErrNotOpen
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(frame.String() + "\r")
}

// Close closes the CAN channel and the port.
func (s *SLCAN) Close() error {
	if !s.state.CompareAndSwap(stateOpen, stateClosed) {
		return nil
	}

	werr := s.write("C\r")
	close(s.done)

	s.wmu.Lock()
	cerr := s.conn.Close()
	s.conn = nil
	s.wmu.Unlock()

	return errors.Join(werr, cerr)
}

func bitrateCommand(bitrate int) (string, error) {
	i := slices.Index(options.Bitrates, bitrate)
	if i < 0 {
		return "", fmt.Errorf("slcan: unsupported bitrate %d", bitrate)
	}
	return fmt.Sprintf("S%d", i), nil
}

func modeCommand(mode string) (string, error) {
	switch mode {
	case options.ModeActive, "":
		return "O", nil
	case options.ModeListenOnly:
		return "L", nil
	case options.ModeLoopback:
		return "l", nil
	}
	return "", fmt.Errorf("slcan: unknown mode %q", mode)
}
