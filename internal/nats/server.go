package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	defaultPort       = 4222
	defaultHost       = "127.0.0.1"
	readyTimeout      = 5 * time.Second
	maxControlLine    = 4096
	maxPayloadBytes   = 1 << 20
	serverLoggerLabel = "nats-server"
)

// ServerOptions configures the embedded NATS server.
type ServerOptions struct {
	Port   int // -1 picks a free port
	Host   string
	Name   string
	Logger *slog.Logger
	// Debug forwards the server's debug output.
	Debug bool
}

// DefaultServerOptions returns the defaults for the embedded server.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Port: defaultPort,
		Host: defaultHost,
		Name: "capturebridge",
	}
}

// Server is a loopback NATS broker for hosts without one.
type Server struct {
	ns     *server.Server
	opts   ServerOptions
	logger *slog.Logger
}

// NewServer fills unset options from DefaultServerOptions.
func NewServer(opts ServerOptions) *Server {
	defaults := DefaultServerOptions()
	if opts.Port == 0 {
		opts.Port = defaults.Port
	}
	if opts.Host == "" {
		opts.Host = defaults.Host
	}
	if opts.Name == "" {
		opts.Name = defaults.Name
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", serverLoggerLabel)}
}

// Start runs the server and waits until it accepts connections.
func (s *Server) Start() error {
	if s.ns != nil {
		return errors.New("NATS server already running")
	}

	ns, err := server.NewServer(&server.Options{
		Host:           s.opts.Host,
		Port:           s.opts.Port,
		ServerName:     s.opts.Name,
		NoSigs:         true,
		MaxControlLine: maxControlLine,
		MaxPayload:     maxPayloadBytes,
		Debug:          s.opts.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}
	ns.SetLogger(&serverLogger{logger: s.logger}, s.opts.Debug, false)

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready after %s", readyTimeout)
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", ns.ClientURL())
	return nil
}

// Stop shuts the server down and waits for it to exit.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL returns the URL clients should use to connect. Before Start it
// is built from the configured address.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
	}
	return s.ns.ClientURL()
}

// IsRunning returns true if the server is running and accepting connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// serverLogger routes nats-server output into slog.
type serverLogger struct {
	logger *slog.Logger
}

func (l *serverLogger) log(level slog.Level, format string, v ...any) {
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func (l *serverLogger) Noticef(format string, v ...any) { l.log(slog.LevelDebug, format, v...) }
func (l *serverLogger) Warnf(format string, v ...any)   { l.log(slog.LevelWarn, format, v...) }
func (l *serverLogger) Fatalf(format string, v ...any)  { l.log(slog.LevelError, format, v...) }
func (l *serverLogger) Errorf(format string, v ...any)  { l.log(slog.LevelError, format, v...) }
func (l *serverLogger) Debugf(format string, v ...any)  { l.log(slog.LevelDebug, format, v...) }
func (l *serverLogger) Tracef(format string, v ...any)  { l.log(slog.LevelDebug-4, format, v...) }
