package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/logging"
)

type listing struct {
	Kind    string         `json:"kind"`
	Source  string         `json:"source"`
	Count   int            `json:"count"`
	Devices []devices.Info `json:"devices"`
}

// writeDevices prints devs as a table, or as JSON when asJSON is set.
func writeDevices(w io.Writer, kind devices.Kind, source string, devs []*devices.Device, asJSON bool) error {
	infos := devices.Infos(devs)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing{Kind: kind.String(), Source: source, Count: len(infos), Devices: infos})
	}

	if len(infos) == 0 {
		_, err := fmt.Fprintf(w, "No %s capture devices found (%s)\n", kind, source)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tPATH")
	for i, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, info.Name, info.Path)
	}
	return tw.Flush()
}

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capture devices",
		Long:  `Runs one enumeration pass with the configured backend and prints the devices in enumeration order.`,
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, opts *config.Options) {
			logger := logging.GetLogger("devices")

			kind, err := opts.Kind()
			if err != nil {
				logger.Error("Invalid device kind", "error", err)
				os.Exit(1)
			}
			src, err := devices.NewSource(opts.DeviceBackend, kind, logger)
			if err != nil {
				logger.Error("Failed to select backend", "error", err, "available", devices.Backends())
				os.Exit(1)
			}
			manager, err := devices.NewManager(src, devices.WithKind(kind), devices.WithLogger(logger))
			if err != nil {
				logger.Error("Enumeration failed", "error", err)
				os.Exit(1)
			}

			err = writeDevices(os.Stdout, kind, manager.SourceName(), manager.Devices(), asJSON)
			if closeErr := manager.Close(); closeErr != nil {
				logger.Warn("Failed to close device manager", "error", closeErr)
			}
			if err != nil {
				logger.Error("Failed to write device list", "error", err)
				os.Exit(1)
			}
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}
