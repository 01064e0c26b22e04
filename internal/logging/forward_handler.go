package logging

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/smazurov/capturebridge/internal/osthread"
)

// ForwardSink receives formatted log lines for delivery outside the
// process, such as the managed runtime's logger. Forward reports whether
// the line was delivered; failures are not retried.
type ForwardSink interface {
	Forward(msg string) bool
}

// forwarding tracks the OS threads currently inside ForwardSink.Forward.
// A forwarding goroutine stays locked to its thread, so a record logged on
// one of these threads was emitted by the sink itself and is dropped.
// Records from other goroutines are forwarded concurrently.
var forwarding = struct {
	sync.Mutex
	threads map[uint64]struct{}
	// fallback serializes forwarding where thread ids are unavailable.
	fallback sync.Mutex
}{threads: make(map[uint64]struct{})}

// enterForward claims the calling thread for one forward. ok is false for a
// record logged from inside the sink.
func enterForward() (leave func(), ok bool) {
	runtime.LockOSThread()
	tid, err := osthread.ID()
	if err != nil {
		runtime.UnlockOSThread()
		if !forwarding.fallback.TryLock() {
			return nil, false
		}
		return forwarding.fallback.Unlock, true
	}

	forwarding.Lock()
	_, nested := forwarding.threads[tid]
	if !nested {
		forwarding.threads[tid] = struct{}{}
	}
	forwarding.Unlock()
	if nested {
		runtime.UnlockOSThread()
		return nil, false
	}

	return func() {
		forwarding.Lock()
		delete(forwarding.threads, tid)
		forwarding.Unlock()
		runtime.UnlockOSThread()
	}, true
}

// SetForwardSink installs the sink, or removes it when sink is nil.
func SetForwardSink(sink ForwardSink) {
	mutex.Lock()
	defer mutex.Unlock()
	forwardSink = sink
}

// ForwardHandler hands records at or above both its level and the global
// forward level to the installed ForwardSink.
type ForwardHandler struct {
	level   slog.Leveler
	minimum slog.Leveler
	// format shares the buffer handler's attribute flattening.
	format *BufferHandler
}

// NewForwardHandler creates a handler gated by level and minimum.
func NewForwardHandler(level, minimum slog.Leveler) *ForwardHandler {
	return &ForwardHandler{level: level, minimum: minimum, format: NewBufferHandler(level)}
}

// Enabled implements slog.Handler.
func (h *ForwardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level() && level >= h.minimum.Level()
}

// Handle implements slog.Handler.
func (h *ForwardHandler) Handle(_ context.Context, r slog.Record) error {
	mutex.RLock()
	sink := forwardSink
	mutex.RUnlock()
	if sink == nil {
		return nil
	}

	leave, ok := enterForward()
	if !ok {
		return nil
	}
	defer leave()

	sink.Forward(FormatLogLine(h.format.entry(r)))
	return nil
}

// WithAttrs implements slog.Handler.
func (h *ForwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ForwardHandler{
		level:   h.level,
		minimum: h.minimum,
		format:  h.format.WithAttrs(attrs).(*BufferHandler),
	}
}

// WithGroup implements slog.Handler.
func (h *ForwardHandler) WithGroup(name string) slog.Handler {
	return &ForwardHandler{
		level:   h.level,
		minimum: h.minimum,
		format:  h.format.WithGroup(name).(*BufferHandler),
	}
}
