package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/canscope/pkg/options"
)

// fakeUSBtin answers the Lawicel commands on one end of a pipe.
type fakeUSBtin struct {
	conn   net.Conn
	wmu    sync.Mutex
	reject map[string]bool

	mu       sync.Mutex
	commands []string
	open     bool
}

func newFakeUSBtin(t *testing.T) (*fakeUSBtin, Opener) {
	t.Helper()
	host, dev := net.Pipe()
	d := &fakeUSBtin{conn: dev, reject: map[string]bool{}}
	go d.serve()
	t.Cleanup(func() { _ = dev.Close() })
	return d, func() (io.ReadWriteCloser, error) { return host, nil }
}

func (d *fakeUSBtin) serve() {
	r := bufio.NewReader(d.conn)
	for {
		cmd, err := r.ReadString('\r')
		if err != nil {
			return
		}
		cmd = strings.TrimSuffix(cmd, "\r")

		d.mu.Lock()
		d.commands = append(d.commands, cmd)
		open := d.open
		d.mu.Unlock()

		if d.reject[cmd] {
			d.emit("\a")
			continue
		}

		switch {
		case cmd == "":
			d.emit("\a")
		case cmd == "C":
			if !open {
				d.emit("\a")
				continue
			}
			d.setOpen(false)
			d.emit("\r")
		case cmd == "V":
			d.emit("V0100\r")
		case cmd == "v":
			d.emit("v0108\r")
		case cmd[0] == 'S':
			d.emit("\r")
		case cmd == "O" || cmd == "L" || cmd == "l":
			d.setOpen(true)
			d.emit("\r")
		case cmd[0] == 't' || cmd[0] == 'r':
			d.emit("z\r")
		case cmd[0] == 'T' || cmd[0] == 'R':
			d.emit("Z\r")
		default:
			d.emit("\a")
		}
	}
}

func (d *fakeUSBtin) setOpen(open bool) {
	d.mu.Lock()
	d.open = open
	d.mu.Unlock()
}

func (d *fakeUSBtin) emit(s string) {
	d.wmu.Lock()
	defer d.wmu.Unlock()
	_, _ = io.WriteString(d.conn, s)
}

func (d *fakeUSBtin) sawCommand(cmd string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

func openFake(t *testing.T, mode string) (*SLCAN, *fakeUSBtin) {
	t.Helper()
	d, opener := newFakeUSBtin(t)
	s := NewSLCANWithOpener(opener, 125000, mode, WithSettle(5*time.Millisecond))

	info, err := s.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USBtin (FW0108/HW0100)", info.String())
	return s, d
}

func TestSLCANOpenSequence(t *testing.T) {
	s, d := openFake(t, options.ModeListenOnly)
	defer s.Close()

	assert.True(t, d.sawCommand("S4"))
	assert.True(t, d.sawCommand("L"))
	assert.False(t, d.sawCommand("O"))
}

func TestSLCANReceive(t *testing.T) {
	s, d := openFake(t, options.ModeActive)
	defer s.Close()
	ctx := context.Background()

	d.emit("t1232aabb\r")
	d.emit("z\r")
	d.emit("\a")
	d.emit("R1ABCDEF00\r")

	f, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1232aabb", f.String())

	_, err = s.Receive(ctx)
	assert.True(t, IsNotice(err))

	f, err = s.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, f.Extended)
	assert.True(t, f.RTR)
	assert.Equal(t, uint32(0x1abcdef0), f.ID)
}

func TestSLCANSend(t *testing.T) {
	s, d := openFake(t, options.ModeActive)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), mustFrame(t, "T000004001ff")))
	assert.Eventually(t, func() bool { return d.sawCommand("T000004001ff") }, time.Second, 5*time.Millisecond)
}

func TestSLCANClose(t *testing.T) {
	s, _ := openFake(t, options.ModeActive)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Send(context.Background(), mustFrame(t, "t0010")), ErrClosed)
}

func TestSLCANRejectedOpen(t *testing.T) {
	d, opener := newFakeUSBtin(t)
	d.reject["O"] = true
	s := NewSLCANWithOpener(opener, 125000, options.ModeActive, WithSettle(5*time.Millisecond))

	_, err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrCommand)
}

func TestSLCANUnsupportedBitrate(t *testing.T) {
	called := false
	s := NewSLCANWithOpener(func() (io.ReadWriteCloser, error) {
		called = true
		return nil, io.EOF
	}, 33333, options.ModeActive)

	_, err := s.Open(context.Background())
	assert.ErrorContains(t, err, "unsupported bitrate")
	assert.False(t, called)
}

func TestSLCANDeviceGone(t *testing.T) {
	s, d := openFake(t, options.ModeActive)
	defer s.Close()

	require.NoError(t, d.conn.Close())

	_, err := s.Receive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
	assert.False(t, IsNotice(err))
}

func TestSLCANCommands(t *testing.T) {
	cmd, err := bitrateCommand(1000000)
	require.NoError(t, err)
	assert.Equal(t, "S8", cmd)

	cmd, err = modeCommand(options.ModeLoopback)
	require.NoError(t, err)
	assert.Equal(t, "l", cmd)

	_, err = modeCommand("silent")
	assert.Error(t, err)
}
