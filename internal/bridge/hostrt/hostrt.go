// Package hostrt is an in-process managed runtime for the bridge. Classes
// and their methods are Go functions; attachment is tracked per OS thread
// and references follow the JNI rules: local references belong to the
// thread that created them and die with its attachment, global references
// live until deleted.
package hostrt

import (
	"fmt"
	"sync"

	"github.com/smazurov/capturebridge/internal/bridge"
	"github.com/smazurov/capturebridge/internal/osthread"
)

// Func implements a managed method.
type Func func(call *Call) error

// Class is a managed class defined from Go.
type Class struct {
	rt   *Runtime
	name string
}

// Name returns the class's binary name, e.g. org/capturebridge/Devices.
func (c *Class) Name() string { return c.name }

// Object is a managed instance wrapping a Go value.
type Object struct {
	Class *Class
	Value any
	ref   bridge.Ref
}

// Ref returns the object's global reference.
func (o *Object) Ref() bridge.Ref { return o.ref }

type method struct {
	class  *Class
	name   string
	sig    string
	static bool
	fn     Func
}

type field struct {
	class *Class
	name  string
	sig   string
	value *Object
}

type byteArray struct {
	data []byte
}

type handle struct {
	target any // *Class, *Object, *byteArray or string
	global bool
	pinned bool
	thread uint64
}

// Stats is a snapshot of the runtime's bookkeeping.
type Stats struct {
	AttachedThreads int
	Attaches        uint64
	Detaches        uint64
	LocalRefs       int
	GlobalRefs      int
	Calls           uint64
}

// Runtime implements bridge.Runtime.
type Runtime struct {
	mu      sync.Mutex
	threads map[uint64]*env
	classes map[string]*Class
	methods []*method
	fields  []*field
	refs    map[bridge.Ref]*handle
	nextRef bridge.Ref

	attaches uint64
	detaches uint64
	calls    uint64
}

var _ bridge.Runtime = (*Runtime)(nil)

// New creates an empty runtime with no threads attached.
func New() *Runtime {
	return &Runtime{
		threads: make(map[uint64]*env),
		classes: make(map[string]*Class),
		refs:    make(map[bridge.Ref]*handle),
	}
}

// DefineClass returns the class called name, creating it if needed.
func (r *Runtime) DefineClass(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[name]; ok {
		return c
	}
	c := &Class{rt: r, name: name}
	r.classes[name] = c
	return c
}

// Static defines a static method.
func (c *Class) Static(name, sig string, fn Func) *Class {
	c.rt.addMethod(&method{class: c, name: name, sig: sig, static: true, fn: fn})
	return c
}

// Method defines an instance method. Defining a method the class already
// has replaces it; resolved method ids stay valid.
func (c *Class) Method(name, sig string, fn Func) *Class {
	c.rt.addMethod(&method{class: c, name: name, sig: sig, fn: fn})
	return c
}

// StaticField defines a static object field holding value.
func (c *Class) StaticField(name, sig string, value *Object) *Class {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.rt.fields = append(c.rt.fields, &field{class: c, name: name, sig: sig, value: value})
	return c
}

func (r *Runtime) addMethod(m *method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, old := range r.methods {
		if old.class == m.class && old.name == m.name && old.sig == m.sig && old.static == m.static {
			r.methods[i] = m
			return
		}
	}
	r.methods = append(r.methods, m)
}

// NewObject creates an instance of class holding value, pinned by a global
// reference.
func (r *Runtime) NewObject(class *Class, value any) *Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := &Object{Class: class, Value: value}
	o.ref = r.allocLocked(&handle{target: o, global: true, pinned: true})
	return o
}

func (r *Runtime) allocLocked(h *handle) bridge.Ref {
	r.nextRef++
	r.refs[r.nextRef] = h
	return r.nextRef
}

// Env implements bridge.Runtime.
func (r *Runtime) Env() (bridge.Env, error) {
	tid, err := osthread.ID()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.threads[tid]
	if !ok {
		return nil, bridge.ErrDetached
	}
	return e, nil
}

// AttachDaemon implements bridge.Runtime.
func (r *Runtime) AttachDaemon() (bridge.Env, error) {
	tid, err := osthread.ID()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.threads[tid]; ok {
		return e, nil
	}
	e := &env{rt: r, tid: tid}
	r.threads[tid] = e
	r.attaches++
	return e, nil
}

// Detach implements bridge.Runtime. Local references created on the thread
// are freed.
func (r *Runtime) Detach() error {
	tid, err := osthread.ID()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[tid]; !ok {
		return fmt.Errorf("thread %d: %w", tid, bridge.ErrDetached)
	}
	delete(r.threads, tid)
	r.detaches++
	for ref, h := range r.refs {
		if !h.global && h.thread == tid {
			delete(r.refs, ref)
		}
	}
	return nil
}

// Stats returns current counters.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		AttachedThreads: len(r.threads),
		Attaches:        r.attaches,
		Detaches:        r.detaches,
		Calls:           r.calls,
	}
	for _, h := range r.refs {
		switch {
		case h.pinned:
		case h.global:
			s.GlobalRefs++
		default:
			s.LocalRefs++
		}
	}
	return s
}
