package events

import (
	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/devices"
)

// DeviceObserver publishes enumeration outcomes.
type DeviceObserver struct {
	bus    *Bus
	source string
}

var _ devices.Observer = (*DeviceObserver)(nil)

// NewDeviceObserver publishes on bus, labelling passes with source.
func NewDeviceObserver(bus *Bus, source string) *DeviceObserver {
	return &DeviceObserver{bus: bus, source: source}
}

func (o *DeviceObserver) Enumerated(kind devices.Kind, devs []*devices.Device) {
	o.bus.Publish(DevicesEnumeratedEvent{
		Header:  NewHeader(),
		Kind:    kind.String(),
		Source:  o.source,
		Count:   len(devs),
		Devices: devices.Infos(devs),
	})
}

func (o *DeviceObserver) DeviceSkipped(err *devices.SkipError) {
	ev := DeviceSkippedEvent{
		Header: NewHeader(),
		Kind:   err.Kind.String(),
		Reason: string(err.Reason),
		Name:   err.Name,
		Path:   err.Path,
	}
	if err.Err != nil {
		ev.Error = err.Err.Error()
	}
	o.bus.Publish(ev)
}

// BridgeObserver publishes dropped relays. Other crossings are left to
// metrics.
type BridgeObserver struct {
	bus *Bus
}

var _ bridge.Observer = (*BridgeObserver)(nil)

// NewBridgeObserver publishes on bus.
func NewBridgeObserver(bus *Bus) *BridgeObserver {
	return &BridgeObserver{bus: bus}
}

func (o *BridgeObserver) Relayed(delivered bool, length int) {
	if !delivered {
		o.bus.Publish(RelayDroppedEvent{Header: NewHeader(), Length: length})
	}
}

func (o *BridgeObserver) Attached(bool) {}
func (o *BridgeObserver) AttachFailed(error) {}
func (o *BridgeObserver) Notified(bool) {}
func (o *BridgeObserver) Forwarded(bool) {}
