package cmd

import (
	"cmp"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/bridge/hostrt"
)

const (
	// StreamClass is the in-process class whose instances receive relayed
	// capture buffers.
	StreamClass = "org/capturebridge/CaptureStream"
	// StreamCallback is the per-buffer method on StreamClass.
	StreamCallback = "onBuffer"

	managedLoggerClass = "org/jitsi/util/Logger"
)

var managedLevels = []string{"trace", "debug", "info", "warn", "error"}

// NewManagedRuntime returns an in-process runtime standing in for the
// managed application. It defines the hotplug callback, the diagnostic sink
// and the logger object the bridge expects, writing managed-side output to
// out. The hotplug callback re-enumerates the stack's devices.
func NewManagedRuntime(s *Stack, out io.Writer) *hostrt.Runtime {
	rt := hostrt.New()
	opts := s.Options
	w := &lockedWriter{w: out}

	rt.DefineClass(opts.BridgeHotplugClass).
		Static(opts.BridgeHotplugMethod, "()V", func(*hostrt.Call) error {
			return s.reinitialize()
		})

	rt.DefineClass(opts.BridgeLogClass).
		Static(opts.BridgeLogMethod, "([B)V", func(call *hostrt.Call) error {
			msg, err := call.Bytes(0)
			if err != nil {
				return err
			}
			w.printf("[native] %s\n", msg)
			return nil
		})

	loggerClass := rt.DefineClass(managedLoggerClass)
	for _, level := range managedLevels {
		loggerClass.Method(level, "(Ljava/lang/Object;)V", func(call *hostrt.Call) error {
			msg, err := call.String(0)
			if err != nil {
				return err
			}
			w.printf("[managed %s] %s\n", level, msg)
			return nil
		})
	}
	rt.DefineClass(opts.BridgeLoggerClass).
		StaticField(
			cmp.Or(opts.BridgeLoggerField, bridge.DefaultLoggerField),
			cmp.Or(opts.BridgeLoggerSig, bridge.DefaultLoggerFieldSig),
			rt.NewObject(loggerClass, nil))

	return rt
}

// StreamStats counts what a stream object has received.
type StreamStats struct {
	buffers atomic.Uint64
	bytes   atomic.Uint64
	peak    atomic.Int32
}

// Buffers returns the number of buffers received.
func (s *StreamStats) Buffers() uint64 { return s.buffers.Load() }

// Bytes returns the total payload received.
func (s *StreamStats) Bytes() uint64 { return s.bytes.Load() }

// Peak returns the largest absolute 16-bit little-endian sample seen.
func (s *StreamStats) Peak() int32 { return s.peak.Load() }

func (s *StreamStats) observe(buf []byte) {
	s.buffers.Add(1)
	s.bytes.Add(uint64(len(buf)))
	var peak int32
	for i := 0; i+1 < len(buf); i += 2 {
		v := int32(int16(uint16(buf[i]) | uint16(buf[i+1])<<8))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	for {
		cur := s.peak.Load()
		if peak <= cur || s.peak.CompareAndSwap(cur, peak) {
			return
		}
	}
}

// NewStreamObject returns an instance of StreamClass whose onBuffer callback
// records into stats. The callback dispatches on the receiving object, so
// every instance on rt shares one definition of StreamClass.
func NewStreamObject(rt *hostrt.Runtime, stats *StreamStats) *hostrt.Object {
	class := rt.DefineClass(StreamClass).
		Method(StreamCallback, bridge.CallbackSignature, onBuffer)
	return rt.NewObject(class, stats)
}

func onBuffer(call *hostrt.Call) error {
	this := call.This()
	if this == nil {
		return fmt.Errorf("%s called without a receiver", StreamCallback)
	}
	stats, ok := this.Value.(*StreamStats)
	if !ok {
		return fmt.Errorf("%s receiver holds %T", StreamCallback, this.Value)
	}
	data, err := call.Bytes(0)
	if err != nil {
		return err
	}
	n := int(call.Int(1))
	if n < 0 || n > len(data) {
		return fmt.Errorf("length %d out of range", n)
	}
	stats.observe(data[:n])
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
