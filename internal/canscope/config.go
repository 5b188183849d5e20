package canscope

import (
	"fmt"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/canscope/internal/canscope/transport"
	"github.com/autopeer-io/canscope/internal/pkg/metrics"
	"github.com/autopeer-io/canscope/pkg/options"
)

// Config is the completed configuration of a Scope.
type Config struct {
	SessionOptions   *options.SessionOptions
	SerialOptions    *options.SerialOptions
	SocketCANOptions *options.SocketCANOptions
	MqttOptions      *options.MqttOptions

	// Clock stamps log entries. Nil means the real clock.
	Clock clock.PassiveClock
}

// NewScope builds the transport and session described by cfg. The stores are
// instrumented with the package metrics.
func (cfg *Config) NewScope() (*Scope, error) {
	t, err := cfg.NewTransport()
	if err != nil {
		return nil, fmt.Errorf("failed to init transport: %w", err)
	}

	session := NewSession(cfg.Clock)
	session.Log().Subscribe(metrics.LogObserver())
	session.Monitor().Subscribe(metrics.MonitorObserver())

	limiter := rate.NewLimiter(cfg.SessionOptions.Limit(), max(cfg.SessionOptions.SendBurst, 1))
	return NewScope(t, session, limiter), nil
}

// NewTransport returns the transport selected by SessionOptions.Transport.
func (cfg *Config) NewTransport() (transport.Transport, error) {
	switch name := cfg.SessionOptions.Transport; name {
	case options.TransportSLCAN:
		return transport.NewSLCAN(cfg.SerialOptions), nil
	case options.TransportSocketCAN:
		return transport.NewSocketCAN(cfg.SocketCANOptions), nil
	case options.TransportMQTT:
		return transport.NewMQTT(cfg.MqttOptions)
	case options.TransportLoopback:
		return transport.NewLoopback(256), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}
