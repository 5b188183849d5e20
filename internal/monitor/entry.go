package monitor

import (
	"github.com/autopeer-io/canscope/pkg/can"
)

// Class tells how a log entry came to be.
type Class int

const (
	// ClassInfo is an informational notice (connect, disconnect, ...).
	ClassInfo Class = iota
	// ClassError is an error notice raised by the transport or the user path.
	ClassError
	// ClassIn is a frame received from the bus.
	ClassIn
	// ClassOut is a frame sent to the bus by this process.
	ClassOut
)

func (c Class) String() string {
	switch c {
	case ClassInfo:
		return "INFO"
	case ClassError:
		return "ERROR"
	case ClassIn:
		return "IN"
	case ClassOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Directional reports whether the class describes bus traffic.
func (c Class) Directional() bool {
	return c == ClassIn || c == ClassOut
}

// LogEntry is one row of the trace. It is immutable once built; the
// aggregation store keeps references to entries it has seen.
type LogEntry struct {
	frame     *can.Frame
	text      string
	class     Class
	timestamp int64
}

// NewFrameEntry wraps a frame. The frame is copied so later changes by the
// caller cannot leak into the trace.
func NewFrameEntry(frame *can.Frame, class Class, timestamp int64) *LogEntry {
	return &LogEntry{
		frame:     frame.Clone(),
		class:     class,
		timestamp: timestamp,
	}
}

// NewTextEntry builds a notice entry without a frame.
func NewTextEntry(text string, class Class, timestamp int64) *LogEntry {
	return &LogEntry{
		text:      text,
		class:     class,
		timestamp: timestamp,
	}
}

// Frame returns the logged frame, or nil for notices.
func (e *LogEntry) Frame() *can.Frame { return e.frame }

// Text returns the notice text. It is empty for frame entries.
func (e *LogEntry) Text() string { return e.text }

// Class returns the entry classification.
func (e *LogEntry) Class() Class { return e.class }

// Timestamp returns milliseconds since the session epoch.
func (e *LogEntry) Timestamp() int64 { return e.timestamp }

// Aggregatable reports whether the entry feeds the monitor view.
func (e *LogEntry) Aggregatable() bool {
	return e != nil && e.frame != nil && e.class.Directional()
}
