package canscope

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/can"
)

func newTestSession() (*Session, *testingclock.FakeClock) {
	c := testingclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewSession(c), c
}

func TestSessionRecordTimestamps(t *testing.T) {
	s, c := newTestSession()
	frame := &can.Frame{ID: 0x402, Data: []byte{0xaa}}

	c.Step(10 * time.Millisecond)
	s.Record(frame, monitor.ClassIn)
	c.Step(25 * time.Millisecond)
	e := s.Record(frame, monitor.ClassIn)

	assert.Equal(t, int64(35), e.Timestamp())
	assert.Equal(t, 2, s.Log().Size())
	require.Equal(t, 1, s.Monitor().Size())

	row, err := s.Monitor().RowAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), row.Count)
	assert.Equal(t, int64(25), row.Period)
}

func TestSessionNotices(t *testing.T) {
	s, _ := newTestSession()

	s.Info("Connected to loopback")
	s.Error(errors.New("port vanished"))

	assert.Equal(t, 2, s.Log().Size())
	assert.Equal(t, 0, s.Monitor().Size())

	e, err := s.Log().Get(1)
	require.NoError(t, err)
	assert.Equal(t, monitor.ClassError, e.Class())
	assert.Equal(t, "port vanished", e.Text())
}

func TestSessionClearRebaselines(t *testing.T) {
	s, c := newTestSession()
	id := s.ID()

	c.Step(time.Second)
	s.Record(&can.Frame{ID: 1}, monitor.ClassOut)
	s.Clear()

	assert.NotEqual(t, id, s.ID())
	assert.Equal(t, 0, s.Log().Size())
	assert.Equal(t, 0, s.Monitor().Size())
	assert.Equal(t, int64(0), s.Elapsed())

	c.Step(5 * time.Millisecond)
	e := s.Record(&can.Frame{ID: 1}, monitor.ClassOut)
	assert.Equal(t, int64(5), e.Timestamp())
}

func TestSessionFrames(t *testing.T) {
	s, _ := newTestSession()
	s.Record(&can.Frame{ID: 0x100}, monitor.ClassIn)
	s.Info("connected")
	s.Record(&can.Frame{ID: 0x200, Extended: true}, monitor.ClassOut)

	frames, err := s.Frames([]int{2, 1, 0})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(0x200), frames[0].ID)
	assert.Equal(t, uint32(0x100), frames[1].ID)

	frames, err = s.Frames([]int{0, 3})
	assert.ErrorIs(t, err, monitor.ErrIndexOutOfRange)
	assert.Nil(t, frames)
}
