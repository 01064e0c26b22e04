package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/capturebridge/internal/api"
	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/logging"
	"github.com/smazurov/capturebridge/internal/metrics/exporters"
	"github.com/smazurov/capturebridge/internal/systemd"
)

const shutdownTimeout = 5 * time.Second

// Serve loads the bridge and runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, opts *config.Options) error {
	logger := logging.GetLogger("main")

	stack, err := NewStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()
	stack.Start(ctx)

	rt, release, err := stack.OpenRuntime(os.Stderr)
	if err != nil {
		return err
	}
	if err := stack.Load(rt, release); err != nil {
		release()
		return err
	}

	server := api.NewServer(&api.Options{
		AuthUsername:      opts.AuthUsername,
		AuthPassword:      opts.AuthPassword,
		Devices:           stack.Manager,
		Bridge:            stack.Bridge,
		Stats:             stack.Stats,
		EventBus:          stack.Bus,
		PrometheusHandler: exporters.HTTPHandler(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(opts.Port)
	}()

	sd := systemd.NewNotifier(logger)
	sd.Ready(fmt.Sprintf("%d %s device(s), API on %s", len(stack.Manager.Devices()), stack.Manager.Kind(), opts.Port))
	go sd.Watchdog(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	sd.Stopping()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// CreateServeCmd creates the serve command. Running the binary without a
// subcommand does the same.
func CreateServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge and its HTTP API",
		Long: `Enumerates capture devices, loads the bridge into the managed runtime ` +
			`(a JVM when --jvm-lib-path is set, the in-process runtime otherwise), ` +
			`watches for device changes and serves the REST and SSE API.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			err := Serve(ctx, opts)
			stop()
			if err != nil {
				logging.GetLogger("main").Error("Server failed", "error", err)
				os.Exit(1)
			}
		}),
	}
}
