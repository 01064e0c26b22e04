package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/bridge/hostrt"
	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/logging"
)

// ErrNotStreamable is returned when the selected device cannot deliver
// capture buffers.
var ErrNotStreamable = errors.New("device does not support streaming")

// selectStreamer picks the device at path, or the first device when path is
// empty.
func selectStreamer(m *devices.Manager, path string) (*devices.Device, devices.Streamer, error) {
	var dev *devices.Device
	if path == "" {
		devs := m.Devices()
		if len(devs) == 0 {
			return nil, nil, fmt.Errorf("no %s capture devices found", m.Kind())
		}
		dev = devs[0]
	} else {
		d, ok := m.Lookup(path)
		if !ok {
			return nil, nil, fmt.Errorf("device %q not found", path)
		}
		dev = d
	}

	streamer, ok := dev.Binding().(devices.Streamer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrNotStreamable, dev.Name, dev.Source)
	}
	return dev, streamer, nil
}

// resolveTarget looks up the buffer callback of obj on an attached thread.
func resolveTarget(ctx *bridge.Context, obj *hostrt.Object) (bridge.CallbackTarget, error) {
	att, err := ctx.Attach()
	if err != nil {
		return bridge.CallbackTarget{}, err
	}
	defer att.Release()
	return bridge.ResolveCallbackTarget(att.Env(), obj.Ref(), StreamCallback)
}

// Relay streams buffers from the device at path through the bridge into an
// in-process stream object until ctx is cancelled or the device list
// changes. A summary is written to w.
func Relay(ctx context.Context, opts *config.Options, path string, w io.Writer) error {
	logger := logging.GetLogger("main")

	stack, err := NewStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()
	stack.Start(ctx)

	dev, streamer, err := selectStreamer(stack.Manager, path)
	if err != nil {
		return err
	}

	rt := NewManagedRuntime(stack, os.Stderr)
	stats := &StreamStats{}
	obj := NewStreamObject(rt, stats)
	if err := stack.Load(rt, nil); err != nil {
		return err
	}
	target, err := resolveTarget(stack.Bridge, obj)
	if err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	unsubscribe := stack.Bus.Subscribe(func(events.DevicesChangedEvent) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	started := time.Now()
	if err := streamer.Start(func(buf []byte) {
		stack.Bridge.Relay(buf, len(buf), target)
	}); err != nil {
		return fmt.Errorf("failed to start %s: %w", dev.Name, err)
	}
	logger.Info("Relaying capture buffers", "device", dev.Name, "path", dev.Path)

	select {
	case <-ctx.Done():
	case <-changed:
		logger.Warn("Device list changed, stopping relay")
	}

	if err := streamer.Stop(); err != nil {
		logger.Warn("Failed to stop capture", "error", err)
	}

	bs := stack.Stats.Stats()
	_, err = fmt.Fprintf(w, "%s: %d buffers, %d bytes, %d dropped, peak %d in %s\n",
		dev.Name, stats.Buffers(), stats.Bytes(), bs.RelaysDropped, stats.Peak(),
		time.Since(started).Round(time.Millisecond))
	return err
}

// CreateRelayCmd creates the relay command.
func CreateRelayCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "relay [device-path]",
		Short: "Relay capture buffers through the bridge",
		Long: `Opens a capture device (the first one when no path is given) and hands every ` +
			`buffer to an in-process managed callback through the bridge, then prints what arrived.`,
		Args: cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *config.Options) {
			var path string
			if len(args) > 0 {
				path = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			cancel := func() {}
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
			}
			err := Relay(ctx, opts, path, os.Stdout)
			cancel()
			stop()
			if err != nil {
				logging.GetLogger("main").Error("Relay failed", "error", err)
				os.Exit(1)
			}
		}),
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}
