package bridge

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Observer receives bridge crossings for metrics and events. Methods are
// called on native threads and must not block.
type Observer interface {
	Attached(owned bool)
	AttachFailed(err error)
	Relayed(delivered bool, length int)
	Notified(delivered bool)
	Forwarded(delivered bool)
}

type nopObserver struct{}

func (nopObserver) Attached(bool) {}
func (nopObserver) AttachFailed(error) {}
func (nopObserver) Relayed(bool, int) {}
func (nopObserver) Notified(bool) {}
func (nopObserver) Forwarded(bool) {}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports every crossing to each of obs in order.
func WithObserver(obs ...Observer) Option {
	return func(c *Context) {
		var all multiObserver
		for _, o := range obs {
			if o != nil {
				all = append(all, o)
			}
		}
		switch len(all) {
		case 0:
		case 1:
			c.observer = all[0]
		default:
			c.observer = all
		}
	}
}

type multiObserver []Observer

func (m multiObserver) Attached(owned bool) {
	for _, o := range m {
		o.Attached(owned)
	}
}

func (m multiObserver) AttachFailed(err error) {
	for _, o := range m {
		o.AttachFailed(err)
	}
}

func (m multiObserver) Relayed(delivered bool, length int) {
	for _, o := range m {
		o.Relayed(delivered, length)
	}
}

func (m multiObserver) Notified(delivered bool) {
	for _, o := range m {
		o.Notified(delivered)
	}
}

func (m multiObserver) Forwarded(delivered bool) {
	for _, o := range m {
		o.Forwarded(delivered)
	}
}

// WithHotplug installs a Notifier that calls the static no-arg method
// className.method whenever watcher reports a device change.
func WithHotplug(watcher Watcher, className, method string) Option {
	return func(c *Context) {
		c.notifier = &Notifier{
			ctx:        c,
			watcher:    watcher,
			className:  className,
			methodName: method,
		}
	}
}

// WithForwarder installs a Forwarder that delivers diagnostics to the static
// className.method([B)V.
func WithForwarder(className, method string, opts ...ForwarderOption) Option {
	return func(c *Context) {
		c.forwarder = newForwarder(c, className, method, opts...)
	}
}

// Context is one loaded instance of the bridge. The runtime binding is set
// once by OnLoad and cleared by OnUnload; all crossings read it atomically.
type Context struct {
	ID uuid.UUID

	rt        atomic.Pointer[runtimeBinding]
	logger    *slog.Logger
	observer  Observer
	notifier  *Notifier
	forwarder *Forwarder
}

type runtimeBinding struct {
	rt Runtime
}

// NewContext creates an unloaded bridge.
func NewContext(opts ...Option) *Context {
	c := &Context{
		ID:       uuid.New(),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("bridge", c.ID.String())
	return c
}

// OnLoad binds rt and initializes the hotplug notifier. A notifier that
// cannot initialize leaves the bridge loaded; only hotplug is unavailable.
func (c *Context) OnLoad(rt Runtime) error {
	if rt == nil {
		return ErrRuntimeUnavailable
	}
	if !c.rt.CompareAndSwap(nil, &runtimeBinding{rt: rt}) {
		return ErrAlreadyLoaded
	}
	c.logger.Info("Bridge loaded")

	if c.notifier != nil {
		if err := c.notifier.Initialize(); err != nil {
			c.logger.Warn("Device hotplug unavailable", "error", err)
		}
	}
	return nil
}

// OnUnload tears down the notifier and the forwarder cache, then clears the
// runtime binding. It is a no-op when rt is not the bound runtime.
func (c *Context) OnUnload(rt Runtime) {
	b := c.rt.Load()
	if b == nil || (rt != nil && b.rt != rt) {
		return
	}

	if c.notifier != nil {
		c.notifier.Uninitialize()
	}
	if c.forwarder != nil {
		c.forwarder.dropCache()
	}

	c.rt.CompareAndSwap(b, nil)
	c.logger.Info("Bridge unloaded")
}

// Loaded reports whether a runtime is bound.
func (c *Context) Loaded() bool {
	return c.rt.Load() != nil
}

// Notifier returns the hotplug notifier, or nil when none was configured.
func (c *Context) Notifier() *Notifier {
	return c.notifier
}

// Forwarder returns the diagnostic forwarder, or nil when none was
// configured. A nil Forwarder discards everything.
func (c *Context) Forwarder() *Forwarder {
	return c.forwarder
}

func (c *Context) runtime() Runtime {
	if b := c.rt.Load(); b != nil {
		return b.rt
	}
	return nil
}
