package app

import (
	"fmt"
	"os"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/canscope/cmd/cpeer-canscope/app/options"
	"github.com/autopeer-io/canscope/internal/canscope"
	"github.com/autopeer-io/canscope/internal/canscope/server"
	"github.com/autopeer-io/canscope/internal/canscope/transport"
	"github.com/autopeer-io/canscope/internal/canscope/view"
	"github.com/autopeer-io/canscope/pkg/app"
)

const (
	commandName = "cpeer-canscope"
	commandDesc = `The Autopeer CAN scope connects to a CAN bus through a USBtin (SLCAN)
adapter, a SocketCAN interface or an MQTT gateway. It keeps a trace of every
frame and notice, and a monitor table with one row per identifier, format and
direction showing the last frame, count and period. Both are served over HTTP
and the trace can be followed on stdout.`
)

func NewApp() *app.App {
	opts := options.NewScopeOptions()
	application := app.NewApp(
		commandName,
		"Launch the Autopeer CAN scope",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithCommands(newPortsCommand()),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ScopeOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		scope, err := cfg.NewScope()
		if err != nil {
			return fmt.Errorf("failed to create scope: %w", err)
		}

		servers := []canscope.Server{server.NewServer(opts.HttpOptions, scope)}
		if opts.SessionOptions.Follow {
			session := scope.Session()
			servers = append(servers, view.NewFollower(os.Stdout, session.Log(), session.Monitor()))
		}

		return scope.Run(ctx, servers...)
	}
}

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports usable by the slcan transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.Ports()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}

			table := uitable.New()
			table.AddRow("PORT")
			for _, p := range ports {
				table.AddRow(p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

// PrintError reports a fatal error on stderr.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", commandName, err)
}
