package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SocketCANOptions)(nil)

// SocketCANOptions selects a Linux SocketCAN interface.
type SocketCANOptions struct {
	Interface string `json:"interface" mapstructure:"interface"`
}

// NewSocketCANOptions returns SocketCANOptions with defaults.
func NewSocketCANOptions() *SocketCANOptions {
	return &SocketCANOptions{Interface: "can0"}
}

// Validate requires an interface name.
func (o *SocketCANOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Interface == "" {
		return []error{errors.New("--socketcan.interface must not be empty")}
	}
	return nil
}

// AddFlags binds the options to fs.
func (o *SocketCANOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Interface, join(prefixes, "socketcan.interface"), o.Interface, "SocketCAN network interface.")
}
