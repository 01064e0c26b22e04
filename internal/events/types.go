package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/capturebridge/internal/devices"
)

// Event type constants for kelindar/event.
const (
	TypeDevicesChanged uint32 = iota + 1
	TypeDevicesEnumerated
	TypeDeviceSkipped
	TypeRelayDropped
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Header identifies one published event.
type Header struct {
	ID        string `json:"id" example:"5f1d7c6e-3b9e-4c55-9a51-1c0e1d8f2a10" doc:"Unique event identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// NewHeader stamps an event with a fresh ID and the current time.
func NewHeader() Header {
	return Header{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// DevicesChangedEvent is published when the platform reports a capture
// device was added or removed.
type DevicesChangedEvent struct {
	Header
	Source string `json:"source" example:"netlink" doc:"Hotplug source that reported the change"`
	Kind   string `json:"kind" example:"video" doc:"Capture category being watched"`
}

// Type returns the event type identifier for DevicesChangedEvent.
func (e DevicesChangedEvent) Type() uint32 { return TypeDevicesChanged }

// DevicesEnumeratedEvent carries the result of one enumeration pass.
type DevicesEnumeratedEvent struct {
	Header
	Kind    string         `json:"kind" example:"video" doc:"Capture category"`
	Source  string         `json:"source" example:"v4l2" doc:"Enumeration backend"`
	Count   int            `json:"count" example:"2" doc:"Number of devices"`
	Devices []devices.Info `json:"devices" doc:"Enumerated devices in order"`
}

// Type returns the event type identifier for DevicesEnumeratedEvent.
func (e DevicesEnumeratedEvent) Type() uint32 { return TypeDevicesEnumerated }

// DeviceSkippedEvent reports a candidate left out of enumeration.
type DeviceSkippedEvent struct {
	Header
	Kind   string `json:"kind" example:"video" doc:"Capture category"`
	Reason string `json:"reason" example:"identity" doc:"Why the device was skipped: filtered, identity, bind"`
	Name   string `json:"name,omitempty" example:"Integrated Camera" doc:"Friendly name, if read"`
	Path   string `json:"path,omitempty" example:"/dev/video0" doc:"Device path, if read"`
	Error  string `json:"error,omitempty" doc:"Underlying failure"`
}

// Type returns the event type identifier for DeviceSkippedEvent.
func (e DeviceSkippedEvent) Type() uint32 { return TypeDeviceSkipped }

// RelayDroppedEvent reports a capture buffer that never reached the
// managed side.
type RelayDroppedEvent struct {
	Header
	Length int `json:"length" example:"1920" doc:"Buffer length in bytes"`
}

// Type returns the event type identifier for RelayDroppedEvent.
func (e RelayDroppedEvent) Type() uint32 { return TypeRelayDropped }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"bridge" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
