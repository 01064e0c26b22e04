//go:build cgo

package devices

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Capture format used by miniaudio bindings.
const (
	AudioSampleRate = 48000
	AudioChannels   = 1
	AudioFormat     = malgo.FormatS16
)

func init() {
	if runtime.GOOS == "darwin" {
		RegisterBackend("miniaudio", NewMalgoSource, KindAudio)
		return
	}
	RegisterBackend("miniaudio", NewMalgoSource)
}

// malgoSource enumerates audio capture devices through miniaudio, which
// fronts CoreAudio, WASAPI, PulseAudio and ALSA.
type malgoSource struct {
	logger *slog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoSource returns the miniaudio backend.
func NewMalgoSource(logger *slog.Logger) Source {
	return &malgoSource{logger: logger}
}

func (s *malgoSource) Name() string { return "miniaudio" }

func (s *malgoSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return err
	}
	s.ctx = ctx
	return nil
}

func (s *malgoSource) Uninit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return
	}
	if err := s.ctx.Uninit(); err != nil {
		s.logger.Warn("Failed to uninitialize miniaudio context", "error", err)
	}
	s.ctx.Free()
	s.ctx = nil
}

func (s *malgoSource) Open(kind Kind) (Category, error) {
	if kind != KindAudio {
		return nil, fmt.Errorf("miniaudio does not enumerate %s devices", kind)
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return nil, errors.New("miniaudio context not initialized")
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	return &malgoCategory{ctx: ctx, infos: infos}, nil
}

type malgoCategory struct {
	ctx   *malgo.AllocatedContext
	infos []malgo.DeviceInfo
}

func (c *malgoCategory) Next() (Candidate, error) {
	if len(c.infos) == 0 {
		return nil, io.EOF
	}
	info := c.infos[0]
	c.infos = c.infos[1:]
	return &malgoCandidate{ctx: c.ctx, info: info}, nil
}

func (c *malgoCategory) Release() { c.infos = nil }

type malgoCandidate struct {
	ctx  *malgo.AllocatedContext
	info malgo.DeviceInfo
}

func (c *malgoCandidate) Legacy() bool { return false }

func (c *malgoCandidate) Identity() (string, string, error) {
	return c.info.Name(), c.info.ID.String(), nil
}

func (c *malgoCandidate) Bind() (Binding, error) {
	b, err := newAudioBinding(c.ctx, c.info.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *malgoCandidate) Release() {}

// AudioBinding is an initialized, not yet started, miniaudio capture device.
type AudioBinding struct {
	id     malgo.DeviceID
	device *malgo.Device
	tap    atomic.Pointer[func([]byte)]

	mu      sync.Mutex
	started bool
	closed  bool
}

func newAudioBinding(ctx *malgo.AllocatedContext, id malgo.DeviceID) (*AudioBinding, error) {
	b := &AudioBinding{id: id}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = AudioFormat
	cfg.Capture.Channels = AudioChannels
	cfg.SampleRate = AudioSampleRate
	cfg.Capture.DeviceID = b.id.Pointer()

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: b.onData,
	})
	if err != nil {
		return nil, err
	}
	b.device = device
	return b, nil
}

// onData runs on miniaudio's capture thread.
func (b *AudioBinding) onData(_, input []byte, frameCount uint32) {
	if frameCount == 0 {
		return
	}
	if tap := b.tap.Load(); tap != nil {
		(*tap)(input)
	}
}

// Start begins capture; every buffer is passed to onData on a native thread.
func (b *AudioBinding) Start(onData func(buf []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrManagerClosed
	}
	if b.started {
		return errors.New("capture already started")
	}
	b.tap.Store(&onData)
	if err := b.device.Start(); err != nil {
		b.tap.Store(nil)
		return err
	}
	b.started = true
	return nil
}

// Stop halts capture. Buffers are no longer delivered once it returns.
func (b *AudioBinding) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	err := b.device.Stop()
	b.tap.Store(nil)
	b.started = false
	return err
}

// Close stops capture and uninitializes the device.
func (b *AudioBinding) Close() error {
	if err := b.Stop(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.device.Uninit()
	return nil
}
