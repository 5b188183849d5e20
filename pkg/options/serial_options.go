package options

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SerialOptions)(nil)

// Bitrates accepted by SLCAN adapters through the S command.
var Bitrates = []int{10000, 20000, 50000, 100000, 125000, 250000, 500000, 800000, 1000000}

// Open modes of an SLCAN channel.
const (
	ModeActive     = "active"
	ModeListenOnly = "listen-only"
	ModeLoopback   = "loopback"
)

// SerialOptions configures a USBtin or other SLCAN adapter.
type SerialOptions struct {
	// Port is the serial device, e.g. /dev/ttyACM0 or COM3.
	Port string `json:"port" mapstructure:"port"`

	// Baud is the serial line speed. USB CDC adapters ignore it.
	Baud int `json:"baud" mapstructure:"baud"`

	// Bitrate is the CAN bus bitrate in bit/s.
	Bitrate int `json:"bitrate" mapstructure:"bitrate"`

	// Mode is active, listen-only or loopback.
	Mode string `json:"mode" mapstructure:"mode"`
}

// NewSerialOptions returns SerialOptions with defaults.
func NewSerialOptions() *SerialOptions {
	return &SerialOptions{
		Port:    "/dev/ttyACM0",
		Baud:    115200,
		Bitrate: 125000,
		Mode:    ModeActive,
	}
}

// Validate checks bitrate and mode.
func (o *SerialOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Port == "" {
		errs = append(errs, fmt.Errorf("--serial.port must not be empty"))
	}
	if !slices.Contains(Bitrates, o.Bitrate) {
		errs = append(errs, fmt.Errorf("--serial.bitrate %d is not one of %v", o.Bitrate, Bitrates))
	}
	if !slices.Contains([]string{ModeActive, ModeListenOnly, ModeLoopback}, o.Mode) {
		errs = append(errs, fmt.Errorf("--serial.mode must be %s, %s or %s", ModeActive, ModeListenOnly, ModeLoopback))
	}
	return errs
}

// AddFlags binds the options to fs.
func (o *SerialOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Port, join(prefixes, "serial.port"), o.Port, "Serial device of the SLCAN adapter.")
	fs.IntVar(&o.Baud, join(prefixes, "serial.baud"), o.Baud, "Serial line speed.")
	fs.IntVar(&o.Bitrate, join(prefixes, "serial.bitrate"), o.Bitrate, "CAN bitrate in bit/s.")
	fs.StringVar(&o.Mode, join(prefixes, "serial.mode"), o.Mode, "Channel mode: active, listen-only or loopback.")
}
