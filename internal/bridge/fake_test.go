package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// fakeRuntime tracks attachment for a single test goroutine.
type fakeRuntime struct {
	mu        sync.Mutex
	env       *fakeEnv
	attached  bool
	attachErr error
	envErr    error
	attaches  int
	detaches  int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{env: newFakeEnv()}
}

func (r *fakeRuntime) Env() (Env, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.envErr != nil {
		return nil, r.envErr
	}
	if !r.attached {
		return nil, ErrDetached
	}
	return r.env, nil
}

func (r *fakeRuntime) AttachDaemon() (Env, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attachErr != nil {
		return nil, r.attachErr
	}
	r.attached = true
	r.attaches++
	return r.env, nil
}

func (r *fakeRuntime) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.attached {
		return errors.New("not attached")
	}
	r.attached = false
	r.detaches++
	return nil
}

func (r *fakeRuntime) counts() (attaches, detaches int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attaches, r.detaches
}

type fakeObj struct {
	kind   string // class, array, string, object
	class  string
	data   []byte
	str    string
	global bool
}

type fakeMethod struct {
	class  string
	name   string
	sig    string
	static bool
	fn     func(obj Ref, args []Value) error
}

type fakeEnv struct {
	mu      sync.Mutex
	next    Ref
	refs    map[Ref]*fakeObj
	classes map[string]bool
	methods []*fakeMethod
	fields  map[string]Ref
	fieldID []string
	calls   map[string]int

	failNewGlobal bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		refs:    make(map[Ref]*fakeObj),
		classes: make(map[string]bool),
		fields:  make(map[string]Ref),
		calls:   make(map[string]int),
	}
}

func (e *fakeEnv) alloc(o *fakeObj) Ref {
	e.next++
	e.refs[e.next] = o
	return e.next
}

func (e *fakeEnv) defineStatic(class, name, sig string, fn func(args []Value) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[class] = true
	e.methods = append(e.methods, &fakeMethod{class: class, name: name, sig: sig, static: true,
		fn: func(_ Ref, args []Value) error { return fn(args) }})
}

func (e *fakeEnv) defineMethod(class, name, sig string, fn func(obj Ref, args []Value) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[class] = true
	e.methods = append(e.methods, &fakeMethod{class: class, name: name, sig: sig, fn: fn})
}

func (e *fakeEnv) newObject(class string) Ref {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[class] = true
	return e.alloc(&fakeObj{kind: "object", class: class, global: true})
}

func (e *fakeEnv) setStaticField(class, name string, value Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[class] = true
	e.fields[class+"."+name] = value
}

func (e *fakeEnv) call(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[name]
}

func (e *fakeEnv) live() (locals, globals int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.refs {
		if o.kind == "object" {
			continue
		}
		if o.global {
			globals++
		} else {
			locals++
		}
	}
	return locals, globals
}

func (e *fakeEnv) get(ref Ref, kind string) (*fakeObj, error) {
	o, ok := e.refs[ref]
	if !ok || (kind != "" && o.kind != kind) {
		return nil, fmt.Errorf("invalid %s ref %d", kind, ref)
	}
	return o, nil
}

func (e *fakeEnv) FindClass(name string) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["FindClass"]++
	if !e.classes[name] {
		return 0, fmt.Errorf("class %s not found", name)
	}
	return e.alloc(&fakeObj{kind: "class", class: name}), nil
}

func (e *fakeEnv) GetObjectClass(obj Ref) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.get(obj, "")
	if err != nil {
		return 0, err
	}
	return e.alloc(&fakeObj{kind: "class", class: o.class}), nil
}

func (e *fakeEnv) NewGlobalRef(ref Ref) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["NewGlobalRef"]++
	if e.failNewGlobal {
		return 0, errors.New("out of global refs")
	}
	o, err := e.get(ref, "")
	if err != nil {
		return 0, err
	}
	c := *o
	c.global = true
	return e.alloc(&c), nil
}

func (e *fakeEnv) DeleteGlobalRef(ref Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["DeleteGlobalRef"]++
	if o, ok := e.refs[ref]; ok && o.global {
		delete(e.refs, ref)
	}
}

func (e *fakeEnv) DeleteLocalRef(ref Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.refs[ref]; ok && !o.global {
		delete(e.refs, ref)
	}
}

func (e *fakeEnv) lookup(class Ref, name, sig string, static bool) (MethodID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if static {
		e.calls["StaticMethod"]++
	} else {
		e.calls["Method"]++
	}
	o, err := e.get(class, "class")
	if err != nil {
		return 0, err
	}
	for i, m := range e.methods {
		if m.class == o.class && m.name == name && m.sig == sig && m.static == static {
			return MethodID(i + 1), nil
		}
	}
	return 0, fmt.Errorf("no method %s%s on %s", name, sig, o.class)
}

func (e *fakeEnv) StaticMethod(class Ref, name, sig string) (MethodID, error) {
	return e.lookup(class, name, sig, true)
}

func (e *fakeEnv) Method(class Ref, name, sig string) (MethodID, error) {
	return e.lookup(class, name, sig, false)
}

func (e *fakeEnv) StaticField(class Ref, name, _ string) (FieldID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.get(class, "class")
	if err != nil {
		return 0, err
	}
	key := o.class + "." + name
	if _, ok := e.fields[key]; !ok {
		return 0, fmt.Errorf("no field %s on %s", name, o.class)
	}
	e.fieldID = append(e.fieldID, key)
	return FieldID(len(e.fieldID)), nil
}

func (e *fakeEnv) StaticObjectField(_ Ref, field FieldID) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if int(field) < 1 || int(field) > len(e.fieldID) {
		return 0, errors.New("invalid field id")
	}
	target, ok := e.refs[e.fields[e.fieldID[field-1]]]
	if !ok {
		return 0, errors.New("field not set")
	}
	return e.alloc(&fakeObj{kind: "object-local", class: target.class}), nil
}

func (e *fakeEnv) NewByteArray(data []byte) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alloc(&fakeObj{kind: "array", data: append([]byte{}, data...)}), nil
}

func (e *fakeEnv) ByteArrayRegion(array Ref, dst []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.get(array, "array")
	if err != nil {
		return err
	}
	copy(dst, o.data)
	return nil
}

func (e *fakeEnv) NewString(s string) (Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alloc(&fakeObj{kind: "string", str: s}), nil
}

func (e *fakeEnv) bytes(ref Ref) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refs[ref].data
}

func (e *fakeEnv) str(ref Ref) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refs[ref].str
}

func (e *fakeEnv) invoke(obj Ref, id MethodID, static bool, args []Value) error {
	e.mu.Lock()
	if int(id) < 1 || int(id) > len(e.methods) || e.methods[id-1].static != static {
		e.mu.Unlock()
		return fmt.Errorf("invalid method id %d", id)
	}
	if static {
		if _, err := e.get(obj, "class"); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	m := e.methods[id-1]
	e.calls[m.name]++
	e.mu.Unlock()

	if err := m.fn(obj, args); err != nil {
		return fmt.Errorf("%w: %w", ErrCallFailed, err)
	}
	return nil
}

func (e *fakeEnv) CallStaticVoid(class Ref, method MethodID, args ...Value) error {
	return e.invoke(class, method, true, args)
}

func (e *fakeEnv) CallVoid(obj Ref, method MethodID, args ...Value) error {
	return e.invoke(obj, method, false, args)
}

// fakeWatcher records registration.
type fakeWatcher struct {
	mu           sync.Mutex
	notify       func()
	registers    int
	unregisters  int
	registerErr  error
	onUnregister func()
}

func (w *fakeWatcher) Register(notify func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.registerErr != nil {
		return w.registerErr
	}
	w.registers++
	w.notify = notify
	return nil
}

func (w *fakeWatcher) Unregister() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unregisters++
	w.notify = nil
	if w.onUnregister != nil {
		w.onUnregister()
	}
}

func (w *fakeWatcher) fire() {
	w.mu.Lock()
	notify := w.notify
	w.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// countingObserver tallies crossings.
type countingObserver struct {
	mu                       sync.Mutex
	owned, preexisting       int
	attachFailed             int
	delivered, dropped       int
	notified, notifyFailed   int
	forwarded, forwardFailed int
}

func (o *countingObserver) Attached(owned bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if owned {
		o.owned++
	} else {
		o.preexisting++
	}
}

func (o *countingObserver) AttachFailed(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attachFailed++
}

func (o *countingObserver) Relayed(delivered bool, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if delivered {
		o.delivered++
	} else {
		o.dropped++
	}
}

func (o *countingObserver) Notified(delivered bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if delivered {
		o.notified++
	} else {
		o.notifyFailed++
	}
}

func (o *countingObserver) Forwarded(delivered bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if delivered {
		o.forwarded++
	} else {
		o.forwardFailed++
	}
}
