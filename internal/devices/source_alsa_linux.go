//go:build linux

package devices

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/capturebridge/pkg/linuxav/alsa"
)

func init() {
	RegisterBackend("alsa", NewALSASource, KindAudio)
}

// alsaSource enumerates ALSA capture PCMs. Modem-class PCMs are the
// incompatible class and are filtered.
type alsaSource struct {
	logger *slog.Logger
}

// NewALSASource returns the ALSA backend.
func NewALSASource(logger *slog.Logger) Source {
	return &alsaSource{logger: logger}
}

func (s *alsaSource) Name() string { return "alsa" }
func (s *alsaSource) Init() error { return nil }
func (s *alsaSource) Uninit() {}

func (s *alsaSource) Open(kind Kind) (Category, error) {
	if kind != KindAudio {
		return nil, fmt.Errorf("alsa does not enumerate %s devices", kind)
	}
	pcms, err := alsa.ListCaptureDevices()
	if err != nil {
		return nil, err
	}
	return &alsaCategory{pcms: pcms}, nil
}

type alsaCategory struct {
	pcms []alsa.Device
}

func (c *alsaCategory) Next() (Candidate, error) {
	if len(c.pcms) == 0 {
		return nil, io.EOF
	}
	d := c.pcms[0]
	c.pcms = c.pcms[1:]
	return &alsaCandidate{pcm: d}, nil
}

func (c *alsaCategory) Release() { c.pcms = nil }

type alsaCandidate struct {
	pcm alsa.Device
}

func (c *alsaCandidate) Legacy() bool { return c.pcm.Class == alsa.ClassModem }

func (c *alsaCandidate) Identity() (string, string, error) {
	name := c.pcm.DeviceName
	if c.pcm.CardName != "" {
		name = c.pcm.CardName + ": " + name
	}
	return name, c.pcm.StableID(), nil
}

func (c *alsaCandidate) Bind() (Binding, error) {
	ctl, err := alsa.OpenControl(c.pcm.CardNumber, c.pcm.DeviceNumber)
	if err != nil {
		return nil, err
	}
	return ctl, nil
}

func (c *alsaCandidate) Release() {}
