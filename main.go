package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/capturebridge/cmd"
	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/logging"
)

func main() {
	var cli humacli.CLI

	// Create Huma CLI. The callback runs before every command, so it only
	// loads configuration; the server is built when the root command starts.
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		logging.Initialize(opts.Logging())
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			if err := cmd.Serve(ctx, opts); err != nil {
				logger.Error("Server failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			<-done
		})
	})

	root := cli.Root()
	root.Use = "capturebridge"
	root.Short = "Capture device enumeration and managed runtime bridge"

	root.AddCommand(cmd.CreateServeCmd())
	root.AddCommand(cmd.CreateListCmd())
	root.AddCommand(cmd.CreateWatchCmd())
	root.AddCommand(cmd.CreateRelayCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
