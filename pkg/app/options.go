package app

import (
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/canscope/pkg/log"
)

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the flag sets grouped by section.
	Flags() cliflag.NamedFlagSets

	// Validate returns an aggregate of every invalid option.
	Validate() error
}

// NamedFlagSetOptions is implemented by option structs that also need a
// completion step after flags and the config file are merged.
type NamedFlagSetOptions interface {
	CliOptions

	// Complete fills in fields derived from other fields.
	Complete() error
}

// LogOptionsProvider is implemented by option structs that carry log options.
// The application initializes the global logger from them before running.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}
