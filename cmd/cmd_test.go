package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/capturebridge/internal/bridge/hostrt"
	"github.com/smazurov/capturebridge/internal/config"
	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/events"
	"github.com/smazurov/capturebridge/internal/logging"
)

// stubBuffers are delivered by every stub stream: two 16-bit samples each.
var stubBuffers = [][]byte{
	{0x10, 0x00, 0xf0, 0xff},
	{0x00, 0x40, 0x00, 0x00},
	{0x01, 0x00, 0x02, 0x00},
}

func init() {
	devices.RegisterBackend("stub", func(*slog.Logger) devices.Source { return stubSource{} })
}

type stubSource struct{}

func (stubSource) Name() string { return "stub" }
func (stubSource) Init() error  { return nil }
func (stubSource) Uninit()      {}

func (stubSource) Open(devices.Kind) (devices.Category, error) {
	return &stubCategory{names: []string{"Stub Camera", "Stub Microphone"}}, nil
}

type stubCategory struct {
	names []string
	next  int
}

func (c *stubCategory) Next() (devices.Candidate, error) {
	if c.next >= len(c.names) {
		return nil, io.EOF
	}
	c.next++
	return stubCandidate{index: c.next - 1, name: c.names[c.next-1]}, nil
}

func (c *stubCategory) Release() {}

type stubCandidate struct {
	index int
	name  string
}

func (stubCandidate) Legacy() bool { return false }

func (stubCandidate) Release() {}

func (c stubCandidate) Identity() (string, string, error) {
	return c.name, "/dev/stub" + string(rune('0'+c.index)), nil
}

func (stubCandidate) Bind() (devices.Binding, error) { return &stubBinding{}, nil }

type stubBinding struct {
	wg sync.WaitGroup
}

func (b *stubBinding) Close() error { return nil }

func (b *stubBinding) Start(onData func([]byte)) error {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, buf := range stubBuffers {
			onData(append([]byte(nil), buf...))
		}
	}()
	return nil
}

func (b *stubBinding) Stop() error {
	b.wg.Wait()
	return nil
}

func testOptions(t *testing.T) *config.Options {
	t.Helper()
	logging.Initialize(logging.Config{Level: "error", Format: "text"})
	return &config.Options{
		Config:              filepath.Join(t.TempDir(), "missing.toml"),
		DeviceKind:          "video",
		DeviceBackend:       "stub",
		BridgeHotplugClass:  "org/capturebridge/CaptureDevices",
		BridgeHotplugMethod: "devicesChangedCallback",
		BridgeLogClass:      "org/capturebridge/NativeLog",
		BridgeLogMethod:     "log",
		BridgeLoggerClass:   "org/capturebridge/CaptureDevices",
		HotplugDebounce:     "10ms",
		HotplugInterval:     "1s",
		HotplugSubsystems:   "video4linux",
	}
}

func TestWriteDevices(t *testing.T) {
	devs := []*devices.Device{
		{Name: "Integrated Camera", Path: "/dev/video0", Kind: devices.KindVideo, Source: "v4l2"},
		{Name: "USB Capture", Path: "/dev/video2", Kind: devices.KindVideo, Source: "v4l2"},
	}

	tests := []struct {
		name   string
		devs   []*devices.Device
		asJSON bool
		want   []string
	}{
		{"table", devs, false, []string{"NAME", "0  Integrated Camera  /dev/video0", "1  USB Capture        /dev/video2"}},
		{"empty", nil, false, []string{"No video capture devices found (v4l2)"}},
		{"json", devs, true, []string{`"count": 2`, `"path": "/dev/video2"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeDevices(&buf, devices.KindVideo, "v4l2", tt.devs, tt.asJSON); err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	ev := events.DevicesChangedEvent{Header: events.NewHeader(), Source: "netlink", Kind: "video"}
	if err := writeEvent(&buf, ev); err != nil {
		t.Fatal(err)
	}
	line := buf.String()
	if !strings.HasPrefix(line, "devices-changed {") {
		t.Fatalf("Expected devices-changed prefix, got %s", line)
	}
	var decoded events.DevicesChangedEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "devices-changed ")), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Source != "netlink" {
		t.Errorf("Expected netlink, got %s", decoded.Source)
	}

	if got := eventName(events.LogEntryEvent{}); got != "log" {
		t.Errorf("Expected log, got %s", got)
	}
	if got := eventName(42); got != "unknown" {
		t.Errorf("Expected unknown, got %s", got)
	}
}

func TestStreamStats(t *testing.T) {
	var s StreamStats
	for _, buf := range stubBuffers {
		s.observe(buf)
	}
	s.observe([]byte{0x7f})

	if s.Buffers() != 4 {
		t.Errorf("Expected 4 buffers, got %d", s.Buffers())
	}
	if s.Bytes() != 13 {
		t.Errorf("Expected 13 bytes, got %d", s.Bytes())
	}
	if s.Peak() != 0x4000 {
		t.Errorf("Expected peak %d, got %d", 0x4000, s.Peak())
	}
}

type recordingWatcher struct {
	notify       func()
	unregistered bool
}

func (w *recordingWatcher) Register(notify func()) error {
	w.notify = notify
	return nil
}

func (w *recordingWatcher) Unregister() { w.unregistered = true }

func TestChangeWatcher(t *testing.T) {
	bus := events.New()
	changes := make(chan events.DevicesChangedEvent, 1)
	defer bus.Subscribe(func(e events.DevicesChangedEvent) { changes <- e })()

	inner := &recordingWatcher{}
	var order []string
	w := &changeWatcher{
		inner:        inner,
		bus:          bus,
		source:       "poll",
		kind:         "audio",
		reinitialize: func() error { order = append(order, "reinitialize"); return nil },
	}
	if err := w.Register(func() { order = append(order, "notify") }); err != nil {
		t.Fatal(err)
	}
	inner.notify()

	if len(order) != 2 || order[0] != "reinitialize" || order[1] != "notify" {
		t.Errorf("Expected reinitialize then notify, got %v", order)
	}
	select {
	case e := <-changes:
		if e.Source != "poll" || e.Kind != "audio" || e.ID == "" {
			t.Errorf("Unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for devices changed event")
	}

	w.Unregister()
	if !inner.unregistered {
		t.Error("Expected Unregister to reach the inner watcher")
	}
}

func TestManagedRuntime(t *testing.T) {
	opts := testOptions(t)
	stack, err := NewStack(opts)
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	defer stack.Close()

	var out bytes.Buffer
	w := &syncBuffer{buf: &out}
	if err := stack.Load(NewManagedRuntime(stack, w), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !stack.Bridge.Loaded() {
		t.Fatal("Expected bridge loaded")
	}

	if !stack.Bridge.Forwarder().Forward("hello from native") {
		t.Error("Expected forwarded diagnostic to be delivered")
	}
	stack.ManagedLogger.Warn("%d devices", 2)
	if err := stack.reinitialize(); err != nil {
		t.Fatalf("reinitialize failed: %v", err)
	}

	got := w.String()
	for _, want := range []string{
		"[native] hello from native",
		"[managed warn] 2 devices",
		"[managed info] 2 video capture device(s) present",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected managed output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestSelectStreamer(t *testing.T) {
	stack, err := NewStack(testOptions(t))
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	defer stack.Close()

	dev, _, err := selectStreamer(stack.Manager, "")
	if err != nil {
		t.Fatal(err)
	}
	if dev.Path != "/dev/stub0" {
		t.Errorf("Expected first device, got %s", dev.Path)
	}
	if dev, _, err = selectStreamer(stack.Manager, "/dev/stub1"); err != nil || dev.Name != "Stub Microphone" {
		t.Errorf("Expected Stub Microphone, got %v (%v)", dev, err)
	}
	if _, _, err := selectStreamer(stack.Manager, "/dev/missing"); err == nil {
		t.Error("Expected unknown path to fail")
	}
}

func TestRelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := Relay(ctx, testOptions(t), "/dev/stub1", &out); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
	if !strings.Contains(out.String(), "Stub Microphone: 3 buffers, 12 bytes, 0 dropped, peak 16384") {
		t.Errorf("Unexpected summary %q", out.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamObjectsReportSeparately(t *testing.T) {
	stack, err := NewStack(testOptions(t))
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	defer stack.Close()

	rt := NewManagedRuntime(stack, io.Discard)
	first, second := &StreamStats{}, &StreamStats{}
	firstObj := NewStreamObject(rt, first)
	secondObj := NewStreamObject(rt, second)
	if err := stack.Load(rt, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		obj  *hostrt.Object
		buf  []byte
	}{
		{name: "first", obj: firstObj, buf: []byte{0x10, 0x00}},
		{name: "second", obj: secondObj, buf: []byte{0x00, 0x40, 0x00, 0x00}},
		{name: "second again", obj: secondObj, buf: []byte{0x01, 0x00}},
	}
	for _, tt := range tests {
		target, err := resolveTarget(stack.Bridge, tt.obj)
		if err != nil {
			t.Fatalf("%s: resolveTarget failed: %v", tt.name, err)
		}
		if !stack.Bridge.Relay(tt.buf, len(tt.buf), target) {
			t.Errorf("%s: expected buffer delivered", tt.name)
		}
	}

	if first.Buffers() != 1 || first.Bytes() != 2 || first.Peak() != 0x10 {
		t.Errorf("Expected first 1 buffer, 2 bytes, peak 16, got %d, %d, %d",
			first.Buffers(), first.Bytes(), first.Peak())
	}
	if second.Buffers() != 2 || second.Bytes() != 6 || second.Peak() != 0x4000 {
		t.Errorf("Expected second 2 buffers, 6 bytes, peak 16384, got %d, %d, %d",
			second.Buffers(), second.Bytes(), second.Peak())
	}
}

func TestOpenRuntime(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "libjvm.so")

	tests := []struct {
		name    string
		libPath string
		attach  bool
		wantErr string
	}{
		{name: "in-process", libPath: ""},
		{name: "create", libPath: missing, wantErr: "failed to start JVM"},
		{name: "attach", libPath: missing, attach: true, wantErr: "failed to attach to JVM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			opts.JVMLibPath = tt.libPath
			opts.JVMAttach = tt.attach
			stack, err := NewStack(opts)
			if err != nil {
				t.Fatalf("NewStack failed: %v", err)
			}
			defer stack.Close()

			rt, release, err := stack.OpenRuntime(io.Discard)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("OpenRuntime failed: %v", err)
				}
				if rt == nil || release == nil {
					t.Fatal("Expected runtime and release func")
				}
				release()
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestManagedLoggerField(t *testing.T) {
	opts := testOptions(t)
	opts.BridgeLoggerField = "LOG"
	stack, err := NewStack(opts)
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	defer stack.Close()

	var out bytes.Buffer
	w := &syncBuffer{buf: &out}
	if err := stack.Load(NewManagedRuntime(stack, w), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stack.ManagedLogger.Info("field %s", opts.BridgeLoggerField)
	if got := w.String(); !strings.Contains(got, "[managed info] field LOG") {
		t.Errorf("Expected managed output through LOG field, got:\n%s", got)
	}
}
