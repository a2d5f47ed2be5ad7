package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtpmididns/midirouter/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "midirouterd %s\n", version.String())
			fmt.Fprintf(cmd.OutOrStdout(), "go %s\n", info.GoVersion)
		},
	}
}
