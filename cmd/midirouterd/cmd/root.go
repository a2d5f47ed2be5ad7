package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rtpmididns/midirouter/internal/config"
)

// Execute runs the midirouterd command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "midirouterd",
		Short: "MIDI routing daemon",
		Long: `midirouterd routes MIDI packets between network peers.

Peers connect over websocket and exchange one MIDI packet per binary message.
Packets from a peer are forwarded to every peer it is connected to, either
through the configured routes or the control API.

Running 'midirouterd' without a subcommand is the same as 'midirouterd serve'.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults are used when empty)")
	root.CompletionOptions.DisableDefaultCmd = true

	serve := newServeCmd(&configPath)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newCheckConfigCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads and validates path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.DaemonConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}
