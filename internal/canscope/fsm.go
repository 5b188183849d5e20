package canscope

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/canscope/internal/pkg/util/fsm"
	"github.com/autopeer-io/canscope/pkg/log"
)

// Connection states.
const (
	StateDisconnected  = "disconnected"
	StateConnecting    = "connecting"
	StateConnected     = "connected"
	StateDisconnecting = "disconnecting"
)

const (
	// EventConnect (Active) starts opening the transport.
	EventConnect = "event_connect"
	// EventOpened marks the transport as usable.
	EventOpened = "event_opened"
	// EventDisconnect (Active) starts closing the transport.
	EventDisconnect = "event_disconnect"
	// EventClosed marks the transport as released.
	EventClosed = "event_closed"
	// EventFail drops back to disconnected from any transitional state.
	EventFail = "event_fail"
)

// ConnectionFSM tracks the transport lifecycle of a Scope.
type ConnectionFSM struct {
	*fsm.FSM

	onChange func(from, to string)
}

// NewConnectionFSM returns a machine in StateDisconnected. onChange, if not
// nil, runs after every state change.
func NewConnectionFSM(onChange func(from, to string)) *ConnectionFSM {
	f := &ConnectionFSM{onChange: onChange}

	events := fsm.Events{
		{Name: EventConnect, Src: []string{StateDisconnected}, Dst: StateConnecting},
		{Name: EventOpened, Src: []string{StateConnecting}, Dst: StateConnected},
		{Name: EventDisconnect, Src: []string{StateConnected}, Dst: StateDisconnecting},
		{Name: EventClosed, Src: []string{StateDisconnecting}, Dst: StateDisconnected},

		// Failure from any transitional or live state
		{Name: EventFail, Src: []string{StateConnecting, StateConnected, StateDisconnecting}, Dst: StateDisconnected},
	}

	callbacks := fsm.Callbacks{
		// Side-Effects: observe every completed transition
		"enter_state": fsmutil.WrapEvent(f.ActionEnterState),
	}

	f.FSM = fsm.NewFSM(StateDisconnected, events, callbacks)
	return f
}

// ActionEnterState is a "Side-Effect" callback.
func (f *ConnectionFSM) ActionEnterState(ctx context.Context, e *fsm.Event) error {
	log.Debug("Connection state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
	if f.onChange != nil {
		f.onChange(e.Src, e.Dst)
	}
	return nil
}

// Connected reports whether frames may be sent.
func (f *ConnectionFSM) Connected() bool {
	return f.Is(StateConnected)
}
