package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Delivery is asynchronous
// and ordered per subscriber.
// Usage: bus.Publish(DevicesChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DevicesChangedEvent:
		event.Publish(b.dispatcher, e)
	case DevicesEnumeratedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceSkippedEvent:
		event.Publish(b.dispatcher, e)
	case RelayDroppedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e DevicesChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DevicesChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DevicesEnumeratedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceSkippedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RelayDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a callback subscription to a channel for
// select loops such as SSE. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll subscribes ch to every event type published on the bus.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[DevicesChangedEvent](bus, ch),
		SubscribeToChannel[DevicesEnumeratedEvent](bus, ch),
		SubscribeToChannel[DeviceSkippedEvent](bus, ch),
		SubscribeToChannel[RelayDroppedEvent](bus, ch),
		SubscribeToChannel[LogEntryEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
