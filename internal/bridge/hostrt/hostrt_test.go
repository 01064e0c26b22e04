package hostrt

import (
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"

	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/osthread"
)

func requireThreadIDs(t *testing.T) {
	t.Helper()
	if _, err := osthread.ID(); err != nil {
		t.Skipf("thread identity unavailable: %v", err)
	}
}

func TestAttachIsPerThread(t *testing.T) {
	requireThreadIDs(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt := New()
	if _, err := rt.Env(); !errors.Is(err, bridge.ErrDetached) {
		t.Fatalf("Expected ErrDetached, got %v", err)
	}
	if _, err := rt.AttachDaemon(); err != nil {
		t.Fatalf("AttachDaemon failed: %v", err)
	}
	if _, err := rt.Env(); err != nil {
		t.Errorf("Expected attached Env, got %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if _, err := rt.Env(); !errors.Is(err, bridge.ErrDetached) {
			t.Errorf("Expected other thread detached, got %v", err)
		}
	}()
	wg.Wait()

	if err := rt.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := rt.Detach(); !errors.Is(err, bridge.ErrDetached) {
		t.Errorf("Expected ErrDetached on second detach, got %v", err)
	}

	s := rt.Stats()
	if s.Attaches != 1 || s.Detaches != 1 || s.AttachedThreads != 0 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestDetachFreesLocalRefs(t *testing.T) {
	requireThreadIDs(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt := New()
	rt.DefineClass("org/capturebridge/Sample")
	env, err := rt.AttachDaemon()
	if err != nil {
		t.Fatalf("AttachDaemon failed: %v", err)
	}

	local, err := env.FindClass("org/capturebridge/Sample")
	if err != nil {
		t.Fatalf("FindClass failed: %v", err)
	}
	if _, err := env.NewGlobalRef(local); err != nil {
		t.Fatalf("NewGlobalRef failed: %v", err)
	}
	if _, err := env.NewByteArray([]byte{1, 2, 3}); err != nil {
		t.Fatalf("NewByteArray failed: %v", err)
	}
	if s := rt.Stats(); s.LocalRefs != 2 || s.GlobalRefs != 1 {
		t.Fatalf("Expected 2 locals and 1 global, got %+v", s)
	}

	if err := rt.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if s := rt.Stats(); s.LocalRefs != 0 || s.GlobalRefs != 1 {
		t.Errorf("Expected locals freed and global kept, got %+v", s)
	}
}

func TestResolutionErrors(t *testing.T) {
	requireThreadIDs(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt := New()
	rt.DefineClass("org/capturebridge/Sample").
		Static("ping", "()V", func(*Call) error { return nil })
	env, err := rt.AttachDaemon()
	if err != nil {
		t.Fatalf("AttachDaemon failed: %v", err)
	}
	defer rt.Detach()

	if _, err := env.FindClass("org/capturebridge/Missing"); err == nil {
		t.Error("Expected missing class error")
	}
	class, err := env.FindClass("org/capturebridge/Sample")
	if err != nil {
		t.Fatalf("FindClass failed: %v", err)
	}
	if _, err := env.StaticMethod(class, "ping", "(I)V"); err == nil {
		t.Error("Expected signature mismatch to fail")
	}
	if _, err := env.Method(class, "ping", "()V"); err == nil {
		t.Error("Expected static method not found as instance method")
	}
	if _, err := env.StaticMethod(class, "ping", "()V"); err != nil {
		t.Errorf("Expected ping()V, got %v", err)
	}
}

func TestCallFailures(t *testing.T) {
	requireThreadIDs(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt := New()
	rt.DefineClass("org/capturebridge/Sample").
		Static("raise", "()V", func(*Call) error { return errors.New("IllegalStateException") }).
		Static("crash", "()V", func(*Call) error { panic("NullPointerException") })
	env, err := rt.AttachDaemon()
	if err != nil {
		t.Fatalf("AttachDaemon failed: %v", err)
	}
	defer rt.Detach()

	class, _ := env.FindClass("org/capturebridge/Sample")
	for _, name := range []string{"raise", "crash"} {
		id, err := env.StaticMethod(class, name, "()V")
		if err != nil {
			t.Fatalf("StaticMethod %s failed: %v", name, err)
		}
		if err := env.CallStaticVoid(class, id); !errors.Is(err, bridge.ErrCallFailed) {
			t.Errorf("%s: expected ErrCallFailed, got %v", name, err)
		}
	}
}

func TestRedefinedMethodReplaces(t *testing.T) {
	requireThreadIDs(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rt := New()
	var got []string
	class := rt.DefineClass("org/capturebridge/Sample").
		Static("ping", "()V", func(*Call) error { got = append(got, "old"); return nil })
	env, err := rt.AttachDaemon()
	if err != nil {
		t.Fatalf("AttachDaemon failed: %v", err)
	}
	defer rt.Detach()

	ref, _ := env.FindClass(class.Name())
	before, err := env.StaticMethod(ref, "ping", "()V")
	if err != nil {
		t.Fatalf("StaticMethod failed: %v", err)
	}
	class.Static("ping", "()V", func(*Call) error { got = append(got, "new"); return nil })
	after, err := env.StaticMethod(ref, "ping", "()V")
	if err != nil {
		t.Fatalf("StaticMethod failed: %v", err)
	}
	if before != after {
		t.Errorf("Expected method id %d after redefinition, got %d", before, after)
	}
	if err := env.CallStaticVoid(ref, before); err != nil {
		t.Fatalf("CallStaticVoid failed: %v", err)
	}
	if len(got) != 1 || got[0] != "new" {
		t.Errorf("Expected [new], got %v", got)
	}
}

func TestBridgeOverHostRuntime(t *testing.T) {
	requireThreadIDs(t)

	rt := New()
	var mu sync.Mutex
	changes := 0
	var logged []string
	rt.DefineClass("org/capturebridge/CaptureDevices").
		Static("devicesChangedCallback", "()V", func(*Call) error {
			mu.Lock()
			changes++
			mu.Unlock()
			return nil
		})
	rt.DefineClass("org/capturebridge/NativeLog").
		Static("log", "([B)V", func(c *Call) error {
			b, err := c.Bytes(0)
			if err != nil {
				return err
			}
			mu.Lock()
			logged = append(logged, string(b))
			mu.Unlock()
			return nil
		})
	stream := rt.DefineClass("org/capturebridge/Stream").
		Method("onBuffer", bridge.CallbackSignature, func(c *Call) error {
			b, err := c.Bytes(0)
			if err != nil {
				return err
			}
			for i := range b[:c.Int(1)] {
				b[i] ^= 0xFF
			}
			return nil
		})
	obj := rt.NewObject(stream, nil)

	w := &manualWatcher{}
	ctx := bridge.NewContext(
		bridge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		bridge.WithHotplug(w, "org/capturebridge/CaptureDevices", "devicesChangedCallback"),
		bridge.WithForwarder("org/capturebridge/NativeLog", "log", bridge.WithResolutionCache()),
	)
	if err := ctx.OnLoad(rt); err != nil {
		t.Fatalf("OnLoad failed: %v", err)
	}

	att, err := ctx.Attach()
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	target, err := bridge.ResolveCallbackTarget(att.Env(), obj.Ref(), "onBuffer")
	att.Release()
	if err != nil {
		t.Fatalf("ResolveCallbackTarget failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := []byte{byte(i), 0x0F}
			if !ctx.Relay(buf, len(buf), target) {
				t.Errorf("relay %d dropped", i)
				return
			}
			if buf[0] != ^byte(i) || buf[1] != 0xF0 {
				t.Errorf("relay %d: expected inverted buffer, got %v", i, buf)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.fire()
	}()
	wg.Wait()

	ctx.OnUnload(rt)

	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Errorf("Expected 1 device change, got %d", changes)
	}
	if len(logged) != 3 {
		t.Errorf("Expected 3 diagnostic lines, got %q", logged)
	}

	s := rt.Stats()
	if s.AttachedThreads != 0 {
		t.Errorf("Expected all threads detached, got %d", s.AttachedThreads)
	}
	if s.Attaches != s.Detaches {
		t.Errorf("Expected balanced attach/detach, got %d/%d", s.Attaches, s.Detaches)
	}
	if s.LocalRefs != 0 || s.GlobalRefs != 0 {
		t.Errorf("Expected no leaked refs, got %+v", s)
	}
}

type manualWatcher struct {
	mu     sync.Mutex
	notify func()
}

func (w *manualWatcher) Register(notify func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = notify
	return nil
}

func (w *manualWatcher) Unregister() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = nil
}

func (w *manualWatcher) fire() {
	w.mu.Lock()
	notify := w.notify
	w.mu.Unlock()
	if notify != nil {
		notify()
	}
}
