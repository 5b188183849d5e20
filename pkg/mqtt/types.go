package mqtt

import (
	"context"
	"errors"
)

// ErrNotStarted is returned by operations issued before Start.
var ErrNotStarted = errors.New("mqtt client not started")

// MessageHandler receives one PUBLISH. Handlers run on the client's reader
// goroutine and must not block for long.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the subset of an MQTT v5 session the CAN gateway transport needs.
type Client interface {
	// Start begins connecting in the background. The connection lives until
	// ctx is cancelled or Disconnect is called.
	Start(ctx context.Context) error

	// AwaitConnection blocks until the first CONNACK or ctx is done.
	AwaitConnection(ctx context.Context) error

	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for filter. Registered filters are
	// subscribed again after every reconnect.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, filter string) error

	IsConnected() bool
}
