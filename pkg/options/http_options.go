package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions configures the embedded HTTP server (probes, metrics, row API).
type HttpOptions struct {
	// Enabled turns the server on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// RequestTimeout bounds each API request.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Enabled:         true,
		Addr:            "127.0.0.1:8480",
		ShutdownTimeout: 5 * time.Second,
		RequestTimeout:  10 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errors []error
	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.RequestTimeout < 0 {
		errors = append(errors, fmt.Errorf("--http.request-timeout cannot be negative"))
	}
	return errors
}

// AddFlags adds flags for the HTTP server to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, join(prefixes, "http.enabled"), o.Enabled, "Serve probes, metrics and the row API over HTTP.")
	fs.StringVar(&o.Addr, join(prefixes, "http.addr"), o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.ShutdownTimeout, join(prefixes, "http.shutdown-timeout"), o.ShutdownTimeout, "Time allowed for in-flight requests on shutdown.")
	fs.DurationVar(&o.RequestTimeout, join(prefixes, "http.request-timeout"), o.RequestTimeout, "Deadline applied to each API request.")
}
