package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "instance:   %s\n", cfg.Instance.Name)
			fmt.Fprintf(out, "log:        %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
			fmt.Fprintf(out, "websocket:  %s%s\n", cfg.WebSocket.ListenAddr, cfg.WebSocket.Path)
			fmt.Fprintf(out, "http:       %s\n", cfg.HTTP.ListenAddr)
			if cfg.Database.Enabled {
				fmt.Fprintf(out, "database:   %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
			} else {
				fmt.Fprintln(out, "database:   disabled")
			}
			fmt.Fprintf(out, "peers:      %d echo, %d monitor\n", len(cfg.Peers.Echo), len(cfg.Peers.Monitor))
			for _, r := range cfg.Routes {
				fmt.Fprintf(out, "route:      %s -> %s\n", r.From, r.To)
			}
			fmt.Fprintln(out, "config ok")
			return nil
		},
	}
}
