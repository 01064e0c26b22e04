package bridge

import (
	"sync"

	"github.com/smazurov/capturebridge/internal/lifetime"
)

// Watcher is a native source of device-change notifications. Register
// starts delivering changes to notify on arbitrary goroutines; after
// Unregister returns, notify is not called again.
type Watcher interface {
	Register(notify func()) error
	Unregister()
}

const hotplugSignature = "()V"

// Notifier forwards device-change notifications to a static no-arg managed
// method. The class is held as a global reference from the first
// successful Initialize until Uninitialize.
type Notifier struct {
	ctx        *Context
	watcher    Watcher
	className  string
	methodName string

	// opMu serializes Initialize and Uninitialize. mu guards the target and
	// is never held across watcher calls.
	opMu       sync.Mutex
	mu         sync.Mutex
	class      Ref
	method     MethodID
	registered bool
}

// globalRef deletes a global reference on Release.
type globalRef struct {
	env Env
	ref Ref
}

func (g *globalRef) Release() { g.env.DeleteGlobalRef(g.ref) }

// Initialize resolves the callback target once and registers with the
// watcher. Calling it again after success does nothing.
func (n *Notifier) Initialize() error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	n.mu.Lock()
	registered := n.registered
	resolved := n.class != 0 && n.method != 0
	n.mu.Unlock()
	if registered {
		return nil
	}

	att, err := n.ctx.Attach()
	if err != nil {
		return err
	}
	defer att.Release()

	n.ctx.forwarder.Logf("initializing device hotplug")

	if !resolved {
		class, method, err := n.resolve(att.Env())
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.class, n.method = class, method
		n.mu.Unlock()
	}

	if err := n.watcher.Register(n.notify); err != nil {
		return err
	}

	n.mu.Lock()
	n.registered = true
	n.mu.Unlock()
	return nil
}

func (n *Notifier) resolve(env Env) (Ref, MethodID, error) {
	scope := lifetime.NewScope()
	defer scope.Close()

	local, err := env.FindClass(n.className)
	if err != nil {
		return 0, 0, resolutionError(ResolveClass, n.className, "", err)
	}
	scope.AddFunc(func() { env.DeleteLocalRef(local) })

	class, err := env.NewGlobalRef(local)
	if err != nil {
		return 0, 0, resolutionError(ResolveClass, n.className, "", err)
	}
	global := &globalRef{env: env, ref: class}
	scope.Add(global)

	method, err := env.StaticMethod(class, n.methodName, hotplugSignature)
	if err != nil {
		return 0, 0, resolutionError(ResolveStaticMethod, n.methodName, hotplugSignature, err)
	}

	scope.Keep(global)
	return class, method, nil
}

// notify runs on the watcher's goroutine.
func (n *Notifier) notify() {
	n.mu.Lock()
	class, method := n.class, n.method
	n.mu.Unlock()
	if class == 0 || method == 0 {
		return
	}

	att, err := n.ctx.Attach()
	if err != nil {
		n.ctx.observer.Notified(false)
		return
	}
	defer att.Release()

	n.ctx.forwarder.Logf("notified that devices have changed")
	err = att.Env().CallStaticVoid(class, method)
	n.ctx.observer.Notified(err == nil)
}

// Registered reports whether the watcher is delivering to the notifier.
func (n *Notifier) Registered() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registered
}

// Uninitialize unregisters from the watcher, then deletes the class
// reference. The target is cleared even when the thread cannot attach.
func (n *Notifier) Uninitialize() {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	n.mu.Lock()
	registered := n.registered
	n.registered = false
	n.mu.Unlock()

	if registered {
		n.watcher.Unregister()
	}

	defer n.clear()

	n.mu.Lock()
	class := n.class
	n.mu.Unlock()
	if class == 0 {
		return
	}

	att, err := n.ctx.Attach()
	if err != nil {
		n.ctx.logger.Warn("Hotplug class reference leaked", "error", err)
		return
	}
	defer att.Release()

	n.ctx.forwarder.Logf("freeing device hotplug")
	att.Env().DeleteGlobalRef(class)
}

func (n *Notifier) clear() {
	n.mu.Lock()
	n.class, n.method = 0, 0
	n.mu.Unlock()
}
