package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/bridge/jvm"
	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/hotplug"
	"github.com/smazurov/capturebridge/internal/logging"
	"github.com/smazurov/capturebridge/internal/metrics"
	"github.com/smazurov/capturebridge/internal/nats"
)

// Stack is the set of components shared by the long-running commands: the
// device manager, the bridge context and whatever publishes their events.
type Stack struct {
	Options *config.Options
	Bus     *events.Bus
	Manager *devices.Manager
	Bridge  *bridge.Context
	Stats   *metrics.BridgeObserver
	// ManagedLogger writes to the sLog field of the configured logger class.
	ManagedLogger *bridge.LoggerAdapter

	logger       *slog.Logger
	natsServer   *nats.Server
	natsClient   *nats.Client
	natsBridge   *nats.Bridge
	cfgWatcher   *config.Watcher[logging.Config]
	rt           bridge.Runtime
	releaseRT    func()
	nativeReinit bool
}

// NewStack enumerates devices and builds an unloaded bridge. Nothing is
// delivered to a managed runtime until Load.
func NewStack(opts *config.Options) (*Stack, error) {
	kind, err := opts.Kind()
	if err != nil {
		return nil, err
	}
	debounce, err := opts.Debounce()
	if err != nil {
		return nil, err
	}
	interval, err := opts.PollInterval()
	if err != nil {
		return nil, err
	}

	bus := events.New()
	logging.SetLogCallback(func(entry logging.LogEntry) {
		bus.Publish(events.FromLogEntry(entry))
	})

	devLogger := logging.GetLogger("devices")
	src, err := devices.NewSource(opts.DeviceBackend, kind, devLogger)
	if err != nil {
		return nil, err
	}
	manager, err := devices.NewManager(src,
		devices.WithKind(kind),
		devices.WithLogger(devLogger),
		devices.WithObserver(metrics.NewDeviceObserver(src.Name()), events.NewDeviceObserver(bus, src.Name())),
	)
	if err != nil {
		return nil, err
	}

	s := &Stack{
		Options: opts,
		Bus:     bus,
		Manager: manager,
		Stats:   metrics.NewBridgeObserver(),
		logger:  logging.GetLogger("main"),
	}
	// A JVM has no entry point back into this process, so native code
	// re-enumerates before notifying it.
	s.nativeReinit = opts.JVMLibPath != ""

	source := hotplug.Default(manager.Paths, interval, opts.Subsystems()...)
	watcher := &changeWatcher{
		inner: hotplug.New(source,
			hotplug.WithDebounce(debounce),
			hotplug.WithLogger(logging.GetLogger("hotplug")),
		),
		bus:    bus,
		source: source.Name(),
		kind:   kind.String(),
	}
	if s.nativeReinit {
		watcher.reinitialize = s.reinitialize
	}

	var fwdOpts []bridge.ForwarderOption
	if opts.BridgeLogCache {
		fwdOpts = append(fwdOpts, bridge.WithResolutionCache())
	}
	s.Bridge = bridge.NewContext(
		bridge.WithLogger(logging.GetLogger("bridge")),
		bridge.WithObserver(s.Stats, events.NewBridgeObserver(bus)),
		bridge.WithHotplug(watcher, opts.BridgeHotplugClass, opts.BridgeHotplugMethod),
		bridge.WithForwarder(opts.BridgeLogClass, opts.BridgeLogMethod, fwdOpts...),
	)
	s.ManagedLogger = bridge.NewLoggerAdapter(s.Bridge, opts.BridgeLoggerClass).
		WithField(opts.BridgeLoggerField, opts.BridgeLoggerSig)
	return s, nil
}

// reinitialize re-enumerates and tells the managed logger how many devices
// are present.
func (s *Stack) reinitialize() error {
	err := s.Manager.Reinitialize()
	if err != nil && !errors.Is(err, devices.ErrEnumerationUnavailable) {
		s.logger.Error("Device reinitialization failed", "error", err)
		return err
	}
	if s.Bridge.Loaded() {
		s.ManagedLogger.Info("%d %s capture device(s) present", len(s.Manager.Devices()), s.Manager.Kind())
	}
	return nil
}

// Start brings up NATS publishing and the logging config watcher. Both are
// optional: failures are logged and the stack keeps running.
func (s *Stack) Start(ctx context.Context) {
	s.startNATS()

	if _, err := os.Stat(s.Options.Config); err == nil {
		w := config.NewLoggingWatcher(s.Options.Config, logging.GetLogger("config"))
		w.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg)
			s.logger.Info("Logging levels reloaded", "level", cfg.Level)
		})
		if err := w.Start(ctx); err != nil {
			s.logger.Warn("Config watcher unavailable", "error", err)
		} else {
			s.cfgWatcher = w
		}
	}
}

func (s *Stack) startNATS() {
	opts := s.Options
	url := opts.NatsURL
	if url == "" && opts.NatsEmbedded {
		srvOpts := nats.DefaultServerOptions()
		srvOpts.Logger = logging.GetLogger("nats")
		srv := nats.NewServer(srvOpts)
		if err := srv.Start(); err != nil {
			s.logger.Warn("Embedded NATS server unavailable", "error", err)
			return
		}
		s.natsServer = srv
		url = srv.ClientURL()
	}
	if url == "" {
		return
	}

	client := nats.NewClient(url, opts.NatsSubject, logging.GetLogger("nats"))
	client.OnControl(func(msg nats.ControlMessage) {
		if msg.Action != nats.ActionReinitialize {
			s.logger.Warn("Ignoring unknown control action", "action", msg.Action)
			return
		}
		s.logger.Info("Reinitializing devices on request", "reason", msg.Reason)
		_ = s.reinitialize()
	})
	if err := client.Connect(); err != nil {
		s.logger.Warn("NATS unavailable, events stay local", "url", url, "error", err)
	}
	s.natsClient = client

	var bridgeOpts []nats.BridgeOption
	if opts.NatsLogs {
		bridgeOpts = append(bridgeOpts, nats.WithLogs())
	}
	s.natsBridge = nats.NewBridge(s.Bus, client, logging.GetLogger("nats"), bridgeOpts...)
	s.natsBridge.Start()
}

// OpenRuntime returns the managed runtime selected by the options: a JVM
// when a libjvm path is configured, the in-process runtime otherwise. With
// JVMAttach the JVM already running in the process is used and left running
// on release. Managed-side output of the in-process runtime goes to out.
func (s *Stack) OpenRuntime(out io.Writer) (bridge.Runtime, func(), error) {
	if s.Options.JVMLibPath == "" {
		return NewManagedRuntime(s, out), func() {}, nil
	}

	if s.Options.JVMAttach {
		vm, err := jvm.Existing(s.Options.JVMLibPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to attach to JVM: %w", err)
		}
		return vm, func() {}, nil
	}

	vm, err := jvm.Create(jvm.Options{
		LibPath:   s.Options.JVMLibPath,
		ClassPath: s.Options.JVMClassPath,
		Args:      s.Options.VMArgs(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start JVM: %w", err)
	}
	release := func() {
		if err := vm.Destroy(); err != nil {
			s.logger.Warn("Failed to destroy JVM", "error", err)
		}
	}
	return vm, release, nil
}

// Load binds rt to the bridge and starts forwarding logs to it. release is
// called by Close after the bridge unloads.
func (s *Stack) Load(rt bridge.Runtime, release func()) error {
	if err := s.Bridge.OnLoad(rt); err != nil {
		return err
	}
	s.rt = rt
	s.releaseRT = release
	if s.Options.BridgeForwardLogs {
		logging.SetForwardSink(s.Bridge.Forwarder())
	}
	s.logger.Info("Bridge ready",
		"id", s.Bridge.ID,
		"devices", len(s.Manager.Devices()),
		"hotplug", s.Bridge.Notifier().Registered(),
	)
	return nil
}

// Close unloads the bridge and shuts everything down in reverse order.
func (s *Stack) Close() {
	logging.SetForwardSink(nil)
	if s.rt != nil {
		s.Bridge.OnUnload(s.rt)
		s.rt = nil
		if s.releaseRT != nil {
			s.releaseRT()
		}
	}

	if s.cfgWatcher != nil {
		_ = s.cfgWatcher.Stop()
	}
	if s.natsBridge != nil {
		s.natsBridge.Stop()
	}
	if s.natsClient != nil {
		s.natsClient.Close()
	}
	if s.natsServer != nil {
		s.natsServer.Stop()
	}

	if err := s.Manager.Close(); err != nil {
		s.logger.Warn("Failed to close device manager", "error", err)
	}
	logging.SetLogCallback(nil)
}

// changeWatcher wraps the hotplug watcher so every notification is also
// published on the bus, optionally after re-enumerating.
type changeWatcher struct {
	inner        bridge.Watcher
	bus          *events.Bus
	source       string
	kind         string
	reinitialize func() error
}

func (w *changeWatcher) Register(notify func()) error {
	return w.inner.Register(func() {
		w.bus.Publish(events.DevicesChangedEvent{
			Header: events.NewHeader(),
			Source: w.source,
			Kind:   w.kind,
		})
		if w.reinitialize != nil {
			_ = w.reinitialize()
		}
		notify()
	})
}

func (w *changeWatcher) Unregister() { w.inner.Unregister() }
