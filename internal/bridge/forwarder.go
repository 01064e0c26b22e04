package bridge

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/smazurov/capturebridge/internal/lifetime"
)

// MaxForwardedMessage bounds a forwarded diagnostic in bytes: a 2048-byte
// buffer less its terminator.
const MaxForwardedMessage = 2047

const logSignature = "([B)V"

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithResolutionCache keeps the resolved class and method between calls.
// The cache is dropped whenever a call fails, so the next call resolves
// again.
func WithResolutionCache() ForwarderOption {
	return func(f *Forwarder) { f.cache = true }
}

// Forwarder delivers native diagnostics to a static managed log method
// taking the UTF-8 message bytes. Failures are swallowed; a diagnostic that
// cannot be delivered is lost.
type Forwarder struct {
	ctx        *Context
	className  string
	methodName string
	cache      bool

	mu     sync.Mutex
	target *cachedTarget
}

// cachedTarget is a resolved log method shared by concurrent forwards. Its
// global class reference is deleted only once it is stale and no forward
// still holds it.
type cachedTarget struct {
	class  Ref
	method MethodID
	users  int
	stale  bool
}

func newForwarder(ctx *Context, className, method string, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{ctx: ctx, className: className, methodName: method}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Logf formats and forwards a diagnostic. A nil Forwarder discards it.
func (f *Forwarder) Logf(format string, args ...any) {
	if f == nil {
		return
	}
	f.Forward(fmt.Sprintf(format, args...))
}

// Forward sends msg, truncated to MaxForwardedMessage bytes, and reports
// whether the managed method ran.
func (f *Forwarder) Forward(msg string) bool {
	if f == nil {
		return false
	}
	payload := truncateUTF8(msg, MaxForwardedMessage)

	att, err := f.ctx.Attach()
	if err != nil {
		f.ctx.observer.Forwarded(false)
		return false
	}
	defer att.Release()
	env := att.Env()

	scope := lifetime.NewScope()
	defer scope.Close()

	class, method, err := f.resolve(env, scope)
	if err != nil {
		f.ctx.observer.Forwarded(false)
		return false
	}

	array, err := env.NewByteArray([]byte(payload))
	if err != nil {
		f.ctx.observer.Forwarded(false)
		return false
	}
	scope.AddFunc(func() { env.DeleteLocalRef(array) })

	if err := env.CallStaticVoid(class, method, RefArg(array)); err != nil {
		f.invalidate(class)
		f.ctx.observer.Forwarded(false)
		return false
	}
	f.ctx.observer.Forwarded(true)
	return true
}

// resolve returns the log target. Uncached lookups register their local
// class reference with scope; cached ones register the release of their
// hold on the shared target.
func (f *Forwarder) resolve(env Env, scope *lifetime.Scope) (Ref, MethodID, error) {
	if !f.cache {
		class, err := env.FindClass(f.className)
		if err != nil {
			return 0, 0, resolutionError(ResolveClass, f.className, "", err)
		}
		scope.AddFunc(func() { env.DeleteLocalRef(class) })

		method, err := env.StaticMethod(class, f.methodName, logSignature)
		if err != nil {
			return 0, 0, resolutionError(ResolveStaticMethod, f.methodName, logSignature, err)
		}
		return class, method, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target == nil {
		target, err := f.lookupGlobal(env)
		if err != nil {
			return 0, 0, err
		}
		f.target = target
	}
	target := f.target
	target.users++
	scope.AddFunc(func() { f.release(env, target) })
	return target.class, target.method, nil
}

func (f *Forwarder) lookupGlobal(env Env) (*cachedTarget, error) {
	local, err := env.FindClass(f.className)
	if err != nil {
		return nil, resolutionError(ResolveClass, f.className, "", err)
	}
	defer env.DeleteLocalRef(local)

	class, err := env.NewGlobalRef(local)
	if err != nil {
		return nil, resolutionError(ResolveClass, f.className, "", err)
	}
	method, err := env.StaticMethod(class, f.methodName, logSignature)
	if err != nil {
		env.DeleteGlobalRef(class)
		return nil, resolutionError(ResolveStaticMethod, f.methodName, logSignature, err)
	}
	return &cachedTarget{class: class, method: method}, nil
}

// release drops one hold on target, deleting its class reference when it
// was invalidated and this was the last hold.
func (f *Forwarder) release(env Env, target *cachedTarget) {
	f.mu.Lock()
	target.users--
	del := target.stale && target.users == 0
	f.mu.Unlock()
	if del {
		env.DeleteGlobalRef(target.class)
	}
}

// invalidate drops the cached target that failed with class so the next
// call resolves again. A target cached since then is left alone.
func (f *Forwarder) invalidate(class Ref) {
	if !f.cache {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.target != nil && f.target.class == class {
		f.target.stale = true
		f.target = nil
	}
}

// dropCache releases the cached class on unload.
func (f *Forwarder) dropCache() {
	f.mu.Lock()
	target := f.target
	if target == nil {
		f.mu.Unlock()
		return
	}
	target.stale = true
	f.target = nil
	idle := target.users == 0
	f.mu.Unlock()
	if !idle {
		return
	}

	att, err := f.ctx.Attach()
	if err != nil {
		return
	}
	defer att.Release()
	att.Env().DeleteGlobalRef(target.class)
}

// Cached reports whether a resolved target is being held.
func (f *Forwarder) Cached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target != nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
