package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "capturebridge %s\n", info.Version)
			fmt.Fprintf(out, "  commit:   %s", info.GitCommit)
			if info.Modified {
				fmt.Fprint(out, " (modified)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  built:    %s\n", info.BuildDate)
			fmt.Fprintf(out, "  go:       %s %s\n", info.GoVersion, info.Platform)
			fmt.Fprintf(out, "  backends: %v\n", devices.Backends())
		},
	}
}
