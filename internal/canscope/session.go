package canscope

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/can"
)

// Session owns the trace and the monitor table of one viewing session.
// Timestamps are milliseconds since the session epoch.
type Session struct {
	clock clock.PassiveClock

	// mu orders appends so that both stores see entries in the same order.
	mu    sync.Mutex
	id    uuid.UUID
	epoch time.Time

	log     *monitor.LogStore
	monitor *monitor.AggregationStore
}

// NewSession starts a session whose epoch is now.
func NewSession(c clock.PassiveClock) *Session {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Session{
		clock:   c,
		id:      uuid.New(),
		epoch:   c.Now(),
		log:     monitor.NewLogStore(),
		monitor: monitor.NewAggregationStore(),
	}
}

// ID identifies the session. Clear starts a new one.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id.String()
}

// Log is the trace store.
func (s *Session) Log() *monitor.LogStore { return s.log }

// Monitor is the per-signal table.
func (s *Session) Monitor() *monitor.AggregationStore { return s.monitor }

// Record appends a frame entry of the given class and feeds it to the
// monitor table. Store observers run while the session is locked and must not
// call back into the Session.
func (s *Session) Record(frame *can.Frame, class monitor.Class) *monitor.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := monitor.NewFrameEntry(frame, class, s.elapsed())
	s.log.Append(e)
	s.monitor.Ingest(e)
	return e
}

// Info appends an informational notice.
func (s *Session) Info(text string) *monitor.LogEntry {
	return s.notice(text, monitor.ClassInfo)
}

// Error appends an error notice carrying err's message.
func (s *Session) Error(err error) *monitor.LogEntry {
	return s.notice(err.Error(), monitor.ClassError)
}

func (s *Session) notice(text string, class monitor.Class) *monitor.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := monitor.NewTextEntry(text, class, s.elapsed())
	s.log.Append(e)
	return e
}

// Frames resolves trace rows to their frames in the order given. Notices are
// skipped. An index outside the trace fails with monitor.ErrIndexOutOfRange
// and nothing is returned.
func (s *Session) Frames(indices []int) ([]*can.Frame, error) {
	frames := make([]*can.Frame, 0, len(indices))
	for _, i := range indices {
		e, err := s.log.Get(i)
		if err != nil {
			return nil, err
		}
		if e.Aggregatable() {
			frames = append(frames, e.Frame())
		}
	}
	return frames, nil
}

// Clear empties both stores, moves the epoch to now and issues a new id.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Clear()
	s.epoch = s.clock.Now()
	s.monitor.Clear()
	s.id = uuid.New()
}

// Elapsed returns the current session time in milliseconds.
func (s *Session) Elapsed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed()
}

func (s *Session) elapsed() int64 {
	return s.clock.Since(s.epoch).Milliseconds()
}
