package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tsarna/obsws/pkg/obsws/transport"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	verbose  bool
	debug    bool
	logLevel string
	configs  []string

	statsInterval time.Duration

	// dialer replaces the WebSocket dialer when set.
	dialer transport.Dialer
}

// NewRootCmd builds the obsws command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "obsws",
		Short: "OBS WebSocket client",
		Long: `obsws talks to OBS Studio over the obs-websocket v5 protocol.

Targets are either obsws:// URIs or the names of connection profiles
defined in HCL files passed with --config:

  obsws://host[:port]/<password>[/resource/path]`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVarP(&opts.configs, "config", "c", nil, "config files or directories with connection profiles")
	rootCmd.PersistentFlags().DurationVar(&opts.statsInterval, "stats-interval", 0, "log session metrics at this interval and on exit (0 disables)")

	rootCmd.AddCommand(
		newRequestCmd(opts),
		newEventsCmd(opts),
		newProfilesCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the command tree. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
