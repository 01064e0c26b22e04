package nats

import (
	"encoding/json"
	"strings"
)

// DefaultSubjectPrefix roots every subject when none is configured.
const DefaultSubjectPrefix = "capturebridge"

// ActionReinitialize asks the bridge to re-enumerate its devices.
const ActionReinitialize = "reinitialize"

// Subjects derives the subject names under one prefix.
type Subjects struct {
	prefix string
}

// NewSubjects returns subject names rooted at prefix. Blank prefixes and
// trailing dots are normalized away.
func NewSubjects(prefix string) Subjects {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return Subjects{prefix: prefix}
}

// Prefix returns the subject root.
func (s Subjects) Prefix() string { return s.prefix }

// DevicesChanged carries hotplug notifications.
func (s Subjects) DevicesChanged() string { return s.prefix + ".devices.changed" }

// DevicesEnumerated carries the device list after each enumeration.
func (s Subjects) DevicesEnumerated() string { return s.prefix + ".devices.enumerated" }

// DeviceSkipped carries candidates left out of enumeration.
func (s Subjects) DeviceSkipped() string { return s.prefix + ".devices.skipped" }

// RelayDropped carries buffers that never reached the managed side.
func (s Subjects) RelayDropped() string { return s.prefix + ".relay.dropped" }

// Logs returns the subject for log records of one level.
func (s Subjects) Logs(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	return s.prefix + ".logs." + level
}

// Control carries commands for the bridge.
func (s Subjects) Control() string { return s.prefix + ".control" }

// ControlMessage is a command sent to the bridge.
type ControlMessage struct {
	Action    string `json:"action"` // reinitialize
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
