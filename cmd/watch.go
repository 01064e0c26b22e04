package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/logging"
)

// eventName is the label printed in front of each watched event.
func eventName(ev any) string {
	switch ev.(type) {
	case events.DevicesChangedEvent:
		return "devices-changed"
	case events.DevicesEnumeratedEvent:
		return "devices-enumerated"
	case events.DeviceSkippedEvent:
		return "device-skipped"
	case events.RelayDroppedEvent:
		return "relay-dropped"
	case events.LogEntryEvent:
		return "log"
	default:
		return "unknown"
	}
}

func writeEvent(w io.Writer, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s\n", eventName(ev), data)
	return err
}

// Watch loads the bridge and writes bus events to w, one per line, until ctx
// is cancelled. Log entries are included only when logs is set.
func Watch(ctx context.Context, opts *config.Options, w io.Writer, logs bool) error {
	stack, err := NewStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()

	ch := make(chan any, 64)
	unsubscribe := events.SubscribeAll(stack.Bus, ch)
	defer unsubscribe()

	stack.Start(ctx)
	rt, release, err := stack.OpenRuntime(os.Stderr)
	if err != nil {
		return err
	}
	if err := stack.Load(rt, release); err != nil {
		release()
		return err
	}

	if err := writeDevices(w, stack.Manager.Kind(), stack.Manager.SourceName(), stack.Manager.Devices(), false); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if _, isLog := ev.(events.LogEntryEvent); isLog && !logs {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
		}
	}
}

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var logs bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch for capture device changes",
		Long: `Loads the bridge, registers the hotplug watcher and prints every device change, ` +
			`enumeration pass and dropped relay until interrupted.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			err := Watch(ctx, opts, os.Stdout, logs)
			stop()
			if err != nil {
				logging.GetLogger("main").Error("Watch failed", "error", err)
				os.Exit(1)
			}
		}),
	}

	cmd.Flags().BoolVar(&logs, "logs", false, "Also print log entries")
	return cmd
}
