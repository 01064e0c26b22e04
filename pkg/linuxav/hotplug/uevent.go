// Package hotplug reads kernel device events from the netlink
// NETLINK_KOBJECT_UEVENT socket without cgo or libudev.
package hotplug

import (
	"bytes"
	"errors"
	"strings"
)

// Actions the kernel reports for a device.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems carrying capture devices.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemSound       = "sound"
	SubsystemUSB         = "usb"
)

// ErrMalformed is returned for a datagram that is not a kernel uevent.
var ErrMalformed = errors.New("hotplug: malformed uevent")

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" when the
// event has none.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return "/dev/" + e.DevName
}

// IsCaptureNode reports whether the event concerns a device node a capture
// backend would enumerate: a V4L2 video node or an ALSA PCM capture node.
func (e Event) IsCaptureNode() bool {
	switch e.Subsystem {
	case SubsystemVideo4Linux:
		return strings.HasPrefix(e.DevName, "video")
	case SubsystemSound:
		return strings.HasPrefix(e.DevName, "snd/pcm") && strings.HasSuffix(e.DevName, "c")
	}
	return false
}

// ParseUEvent parses "ACTION@KOBJ\0KEY=VALUE\0...". Datagrams relayed by
// udevd start with "libudev\0" and are rejected; they carry a binary header
// and duplicate the kernel's own broadcast.
func ParseUEvent(data []byte) (Event, error) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev\x00")) {
		return Event{}, ErrMalformed
	}

	parts := bytes.Split(data, []byte{0})
	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return Event{}, ErrMalformed
	}

	ev := Event{Action: action, KObj: kobj, Env: make(map[string]string, len(parts)-1)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVTYPE":
			ev.DevType = value
		case "DEVNAME":
			ev.DevName = value
		case "DEVPATH":
			ev.DevPath = value
		}
	}
	return ev, nil
}

// Filter selects events by subsystem. An empty filter passes everything.
type Filter map[string]struct{}

// NewFilter returns a filter for the given subsystems.
func NewFilter(subsystems ...string) Filter {
	f := make(Filter, len(subsystems))
	for _, s := range subsystems {
		if s = strings.TrimSpace(s); s != "" {
			f[s] = struct{}{}
		}
	}
	return f
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[ev.Subsystem]
	return ok
}
