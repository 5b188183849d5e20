package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/canscope/internal/canscope"
	"github.com/autopeer-io/canscope/pkg/app"
	"github.com/autopeer-io/canscope/pkg/log"
	"github.com/autopeer-io/canscope/pkg/options"
)

type ScopeOptions struct {
	SessionOptions   *options.SessionOptions   `json:"session" mapstructure:"session"`
	SerialOptions    *options.SerialOptions    `json:"serial" mapstructure:"serial"`
	SocketCANOptions *options.SocketCANOptions `json:"socketcan" mapstructure:"socketcan"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*ScopeOptions)(nil)
	_ app.LogOptionsProvider  = (*ScopeOptions)(nil)
)

func NewScopeOptions() *ScopeOptions {
	o := &ScopeOptions{
		SessionOptions:   options.NewSessionOptions(),
		SerialOptions:    options.NewSerialOptions(),
		SocketCANOptions: options.NewSocketCANOptions(),
		MqttOptions:      options.NewMqttOptions(),
		HttpOptions:      options.NewHttpOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *ScopeOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.SerialOptions.AddFlags(fss.FlagSet("serial"))
	o.SocketCANOptions.AddFlags(fss.FlagSet("socketcan"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *ScopeOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "canscope"
	}
	return nil
}

// Validate checks the session, HTTP and log options, plus the options of the
// selected transport only.
func (o *ScopeOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.SessionOptions.Validate()...)
	switch o.SessionOptions.Transport {
	case options.TransportSLCAN:
		errs = append(errs, o.SerialOptions.Validate()...)
	case options.TransportSocketCAN:
		errs = append(errs, o.SocketCANOptions.Validate()...)
	case options.TransportMQTT:
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ScopeOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *ScopeOptions) Config() (*canscope.Config, error) {
	return &canscope.Config{
		SessionOptions:   o.SessionOptions,
		SerialOptions:    o.SerialOptions,
		SocketCANOptions: o.SocketCANOptions,
		MqttOptions:      o.MqttOptions,
	}, nil
}
