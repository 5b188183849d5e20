package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/canscope/pkg/log"
	"github.com/autopeer-io/canscope/pkg/mqtt/topic"
)

type client struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	mu   sync.RWMutex
	subs map[string]subscription

	connected atomic.Bool
}

type subscription struct {
	filter  string
	qos     byte
	handler MessageHandler
}

var _ Client = (*client)(nil)

// NewClient returns a Client backed by the paho autopaho connection manager.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}, nil
}

func (c *client) Start(ctx context.Context) error {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return err
	}

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectDelay),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.will(),
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError:                c.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      func(err error) { log.Error(err, "MQTT client error") },
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.dispatch},
		},
	})
	if err != nil {
		return err
	}

	log.Info("MQTT client started", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)
	c.cm = cm
	return nil
}

func (c *client) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return ErrNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *client) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		log.Debug("MQTT disconnect", "error", err)
	}
	c.connected.Store(false)
	log.Info("MQTT client disconnected", "broker", c.cfg.BrokerURL)
}

func (c *client) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return ErrNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

func (c *client) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return ErrNotStarted
	}

	c.mu.Lock()
	c.subs[filter] = subscription{filter: filter, qos: byte(qos), handler: handler}
	c.mu.Unlock()

	// onConnectionUp sends it once the session is up.
	if !c.connected.Load() {
		log.Debug("MQTT subscription deferred", "filter", filter)
		return nil
	}
	if err := c.subscribe(ctx, c.cm, filter, byte(qos)); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

func (c *client) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return ErrNotStarted
	}

	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *client) IsConnected() bool {
	return c.connected.Load()
}

func (c *client) subscribe(ctx context.Context, cm *autopaho.ConnectionManager, filter string, qos byte) error {
	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: qos}},
	})
	if err == nil {
		log.Info("MQTT subscribed", "filter", filter)
	}
	return err
}

// snapshot returns the registered subscriptions ordered by filter.
func (c *client) snapshot() []subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].filter < subs[j].filter })
	return subs
}

func (c *client) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	log.Info("MQTT connection up", "broker", c.cfg.BrokerURL)

	for _, s := range c.snapshot() {
		if err := c.subscribe(context.Background(), cm, s.filter, s.qos); err != nil {
			log.Error(err, "MQTT resubscribe failed", "filter", s.filter)
		}
	}
}

func (c *client) onConnectError(err error) {
	c.connected.Store(false)
	log.Warn("MQTT connect failed, retrying", "broker", c.cfg.BrokerURL, "error", err)
}

func (c *client) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT broker closed the session", "code", d.ReasonCode, "reason", reason)
}

// dispatch hands a PUBLISH to every matching handler. It runs on the paho
// reader goroutine, so frames reach a handler in broker order.
func (c *client) dispatch(p paho.PublishReceived) (bool, error) {
	handled := false
	for _, s := range c.snapshot() {
		if topic.Match(s.filter, p.Packet.Topic) {
			s.handler(context.Background(), p.Packet.Topic, p.Packet.Payload)
			handled = true
		}
	}
	if !handled {
		log.Debug("MQTT message without handler", "topic", p.Packet.Topic)
	}
	return true, nil
}

func (c *client) will() *paho.WillMessage {
	if c.cfg.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.WillTopic,
		Payload: c.cfg.WillPayload,
		QoS:     c.cfg.WillQoS,
		Retain:  c.cfg.WillRetain,
	}
}
