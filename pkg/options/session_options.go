package options

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

var _ IOptions = (*SessionOptions)(nil)

// Transport names accepted by --session.transport.
const (
	TransportSLCAN     = "slcan"
	TransportSocketCAN = "socketcan"
	TransportMQTT      = "mqtt"
	TransportLoopback  = "loopback"
)

// Transports lists every transport name.
var Transports = []string{TransportSLCAN, TransportSocketCAN, TransportMQTT, TransportLoopback}

// SessionOptions configures the monitoring session.
type SessionOptions struct {
	// Transport selects the bus backend.
	Transport string `json:"transport" mapstructure:"transport"`

	// SendRate caps outbound frames per second. Zero disables the cap.
	SendRate float64 `json:"send-rate" mapstructure:"send-rate"`

	// SendBurst is the number of frames allowed above SendRate at once.
	SendBurst int `json:"send-burst" mapstructure:"send-burst"`

	// Follow prints every new trace row to stdout.
	Follow bool `json:"follow" mapstructure:"follow"`
}

// NewSessionOptions returns SessionOptions with defaults.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Transport: TransportSLCAN,
		SendRate:  100,
		SendBurst: 10,
		Follow:    true,
	}
}

// Limit converts SendRate into a limiter setting.
func (o *SessionOptions) Limit() rate.Limit {
	if o.SendRate <= 0 {
		return rate.Inf
	}
	return rate.Limit(o.SendRate)
}

// Validate checks the transport name and send limits.
func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !slices.Contains(Transports, o.Transport) {
		errs = append(errs, fmt.Errorf("--session.transport must be one of %v, got %q", Transports, o.Transport))
	}
	if o.SendRate < 0 {
		errs = append(errs, fmt.Errorf("--session.send-rate must not be negative"))
	}
	if o.SendRate > 0 && o.SendBurst < 1 {
		errs = append(errs, fmt.Errorf("--session.send-burst must be at least 1"))
	}
	return errs
}

// AddFlags binds the options to fs.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Transport, join(prefixes, "session.transport"), o.Transport, "Bus backend: slcan, socketcan, mqtt or loopback.")
	fs.Float64Var(&o.SendRate, join(prefixes, "session.send-rate"), o.SendRate, "Maximum frames sent per second, 0 for unlimited.")
	fs.IntVar(&o.SendBurst, join(prefixes, "session.send-burst"), o.SendBurst, "Frames allowed above the send rate at once.")
	fs.BoolVar(&o.Follow, join(prefixes, "session.follow"), o.Follow, "Print each new trace row to stdout.")
}
