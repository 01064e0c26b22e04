package devices

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Kind selects the capture device category to enumerate.
type Kind int

// Capture categories.
const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts "video" or "audio" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	default:
		return KindVideo, fmt.Errorf("unknown device kind %q", s)
	}
}

// Binding is the initialized native handle behind a device record.
type Binding interface {
	io.Closer
}

// Streamer is implemented by bindings that can deliver capture buffers.
// onData is invoked on a native thread owned by the capture library.
type Streamer interface {
	Start(onData func(buf []byte)) error
	Stop() error
}

// Device is one enumerated capture device. Records are owned by the Manager
// and must not be used after the next Reinitialize.
type Device struct {
	Name   string
	Path   string
	Kind   Kind
	Source string

	binding   Binding
	closeOnce sync.Once
	closeErr  error
}

// Binding returns the native handle the device was initialized with.
func (d *Device) Binding() Binding {
	return d.binding
}

// Close releases the native binding. Only the first call has any effect.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		if d.binding != nil {
			d.closeErr = d.binding.Close()
		}
	})
	return d.closeErr
}

// Info is a detached, serializable copy of a device record.
type Info struct {
	Name   string `json:"name" doc:"Friendly device name"`
	Path   string `json:"path" doc:"Unique device path or identifier"`
	Kind   string `json:"kind" doc:"Capture category (video or audio)"`
	Source string `json:"source" doc:"Enumeration backend"`
}

// Info returns a copy of the identity fields.
func (d *Device) Info() Info {
	return Info{
		Name:   d.Name,
		Path:   d.Path,
		Kind:   d.Kind.String(),
		Source: d.Source,
	}
}

// Infos converts a device list to serializable copies.
func Infos(devices []*Device) []Info {
	infos := make([]Info, len(devices))
	for i, d := range devices {
		infos[i] = d.Info()
	}
	return infos
}
