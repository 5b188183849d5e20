package transport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/log"
	"github.com/autopeer-io/canscope/pkg/mqtt"
	"github.com/autopeer-io/canscope/pkg/mqtt/topic"
	"github.com/autopeer-io/canscope/pkg/options"
)

var _ Transport = (*MQTT)(nil)

// WireFrame is the JSON payload exchanged with a CAN gateway.
type WireFrame struct {
	ID       uint32 `json:"id"`
	Extended bool   `json:"extended"`
	RTR      bool   `json:"rtr"`
	Data     string `json:"data"`
}

// EncodeWireFrame renders f as a gateway payload.
func EncodeWireFrame(f *can.Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(WireFrame{
		ID:       f.ID,
		Extended: f.Extended,
		RTR:      f.RTR,
		Data:     hex.EncodeToString(f.Data),
	})
}

// DecodeWireFrame parses a gateway payload.
func DecodeWireFrame(payload []byte) (*can.Frame, error) {
	var w WireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", can.ErrMalformed, err)
	}
	data, err := hex.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data %q", can.ErrMalformed, w.Data)
	}
	return can.NewFrame(w.ID, data, w.Extended, w.RTR)
}

// MQTT talks to a remote CAN gateway through an MQTT broker.
type MQTT struct {
	client         mqtt.Client
	topics         *topic.TopicBuilder
	bus            string
	broker         string
	connectTimeout time.Duration

	mu     sync.Mutex
	frames chan result
	done   chan struct{}
	state  atomic.Int32
}

// NewMQTT creates the gateway transport and its MQTT client.
func NewMQTT(o *options.MqttOptions) (*MQTT, error) {
	cfg := o.ToClientConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("canscope-%s", uuid.NewString()[:8])
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	m := NewMQTTWithClient(client, topic.NewTopicBuilder(o.TopicRoot), o.Bus)
	m.broker = o.Broker
	m.connectTimeout = o.ConnectTimeout
	return m, nil
}

// NewMQTTWithClient builds the transport on an existing client.
func NewMQTTWithClient(client mqtt.Client, topics *topic.TopicBuilder, bus string) *MQTT {
	return &MQTT{
		client:         client,
		topics:         topics,
		bus:            bus,
		connectTimeout: 5 * time.Second,
	}
}

func (m *MQTT) Name() string { return "mqtt" }

// Open connects to the broker and subscribes to the bus's rx topic. The
// connection outlives ctx and is released by Close.
func (m *MQTT) Open(ctx context.Context) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Load() == stateOpen {
		return Info{}, errors.New("mqtt: already open")
	}

	m.frames = make(chan result, 256)
	m.done = make(chan struct{})

	if err := m.client.Start(context.WithoutCancel(ctx)); err != nil {
		return Info{}, fmt.Errorf("start mqtt client: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()
	if err := m.client.AwaitConnection(actx); err != nil {
		m.client.Disconnect(context.Background())
		return Info{}, fmt.Errorf("connect to broker %s: %w", m.broker, err)
	}

	frames, done := m.frames, m.done
	handler := func(ctx context.Context, topic string, payload []byte) {
		var res result
		f, err := DecodeWireFrame(payload)
		if err != nil {
			res.err = &NoticeError{Msg: fmt.Sprintf("Bad frame from gateway on %s: %v", topic, err)}
		} else {
			res.frame = f
		}

		select {
		case frames <- res:
		case <-done:
		}
	}
	if err := m.client.Subscribe(ctx, m.topics.Rx(m.bus), 0, handler); err != nil {
		m.client.Disconnect(context.Background())
		return Info{}, err
	}

	m.state.Store(stateOpen)
	log.Debug("MQTT gateway attached", "bus", m.bus, "rx", m.topics.Rx(m.bus), "tx", m.topics.Tx(m.bus))

	device := m.bus
	if m.broker != "" {
		device = fmt.Sprintf("%s via %s", m.bus, m.broker)
	}
	return Info{Device: device}, nil
}

func (m *MQTT) Receive(ctx context.Context) (*can.Frame, error) {
	switch m.state.Load() {
	case stateClosed:
		return nil, ErrClosed
	case stateIdle:
		return nil, ErrNotOpen
	}

	select {
	case res := <-m.frames:
		return res.frame, res.err
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MQTT) Send(ctx context.Context, frame *can.Frame) error {
	switch m.state.Load() {
	case stateClosed:
		return ErrClosed
	case stateIdle:
		return ErrNotOpen
	}

	payload, err := EncodeWireFrame(frame)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, m.topics.Tx(m.bus), 0, false, payload)
}

func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.CompareAndSwap(stateOpen, stateClosed) {
		return nil
	}
	close(m.done)

	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	defer cancel()
	err := m.client.Unsubscribe(ctx, m.topics.Rx(m.bus))
	m.client.Disconnect(ctx)
	return err
}
