package nats

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/smazurov/capturebridge/internal/events"
)

// Publisher is the subset of Client the bridge needs.
type Publisher interface {
	Subjects() Subjects
	Publish(subject string, v any) error
}

// Bridge forwards event bus traffic to NATS subjects.
type Bridge struct {
	bus       *events.Bus
	publisher Publisher
	logs      bool
	logger    *slog.Logger
	dropped   atomic.Uint64

	mu     sync.Mutex
	unsubs []func()
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogs also forwards log entries.
func WithLogs() BridgeOption {
	return func(b *Bridge) { b.logs = true }
}

// NewBridge creates a bus-to-NATS bridge.
func NewBridge(bus *events.Bus, publisher Publisher, logger *slog.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		bus:       bus,
		publisher: publisher,
		logger:    logger.With("component", "nats-bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to the bus. Calling Start twice is a no-op.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubs != nil {
		return
	}

	s := b.publisher.Subjects()
	b.unsubs = []func(){
		b.bus.Subscribe(func(e events.DevicesChangedEvent) { b.publish(s.DevicesChanged(), e) }),
		b.bus.Subscribe(func(e events.DevicesEnumeratedEvent) { b.publish(s.DevicesEnumerated(), e) }),
		b.bus.Subscribe(func(e events.DeviceSkippedEvent) { b.publish(s.DeviceSkipped(), e) }),
		b.bus.Subscribe(func(e events.RelayDroppedEvent) { b.publish(s.RelayDropped(), e) }),
	}
	if b.logs {
		b.unsubs = append(b.unsubs, b.bus.Subscribe(func(e events.LogEntryEvent) {
			b.publish(s.Logs(e.Level), e)
		}))
	}
	b.logger.Info("NATS bridge forwarding events", "prefix", s.Prefix(), "logs", b.logs)
}

// publish never logs: a forwarded log entry would publish itself again.
func (b *Bridge) publish(subject string, v any) {
	if err := b.publisher.Publish(subject, v); err != nil {
		b.dropped.Add(1)
	}
}

// Dropped returns the number of events that could not be published.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Stop unsubscribes from the bus.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
