package hostrt

import (
	"errors"
	"fmt"

	"github.com/smazurov/capturebridge/internal/bridge"
)

// env is one attached thread's view of the runtime.
type env struct {
	rt  *Runtime
	tid uint64
}

var _ bridge.Env = (*env)(nil)

func (e *env) local(target any) bridge.Ref {
	return e.rt.allocLocked(&handle{target: target, thread: e.tid})
}

func (e *env) deref(ref bridge.Ref) (any, error) {
	h, ok := e.rt.refs[ref]
	if !ok {
		return nil, fmt.Errorf("invalid reference %d", ref)
	}
	if !h.global && h.thread != e.tid {
		return nil, fmt.Errorf("local reference %d used on foreign thread", ref)
	}
	return h.target, nil
}

func (e *env) class(ref bridge.Ref) (*Class, error) {
	t, err := e.deref(ref)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*Class)
	if !ok {
		return nil, fmt.Errorf("reference %d is not a class", ref)
	}
	return c, nil
}

func (e *env) FindClass(name string) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	c, ok := e.rt.classes[name]
	if !ok {
		return 0, fmt.Errorf("NoClassDefFoundError: %s", name)
	}
	return e.local(c), nil
}

func (e *env) GetObjectClass(obj bridge.Ref) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	t, err := e.deref(obj)
	if err != nil {
		return 0, err
	}
	o, ok := t.(*Object)
	if !ok {
		return 0, fmt.Errorf("reference %d is not an object", obj)
	}
	return e.local(o.Class), nil
}

func (e *env) NewGlobalRef(ref bridge.Ref) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	t, err := e.deref(ref)
	if err != nil {
		return 0, err
	}
	return e.rt.allocLocked(&handle{target: t, global: true}), nil
}

func (e *env) DeleteGlobalRef(ref bridge.Ref) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if h, ok := e.rt.refs[ref]; ok && h.global && !h.pinned {
		delete(e.rt.refs, ref)
	}
}

func (e *env) DeleteLocalRef(ref bridge.Ref) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if h, ok := e.rt.refs[ref]; ok && !h.global && h.thread == e.tid {
		delete(e.rt.refs, ref)
	}
}

func (e *env) findMethod(classRef bridge.Ref, name, sig string, static bool) (bridge.MethodID, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	c, err := e.class(classRef)
	if err != nil {
		return 0, err
	}
	for i, m := range e.rt.methods {
		if m.class == c && m.name == name && m.sig == sig && m.static == static {
			return bridge.MethodID(i + 1), nil
		}
	}
	return 0, fmt.Errorf("NoSuchMethodError: %s.%s%s", c.name, name, sig)
}

func (e *env) StaticMethod(class bridge.Ref, name, sig string) (bridge.MethodID, error) {
	return e.findMethod(class, name, sig, true)
}

func (e *env) Method(class bridge.Ref, name, sig string) (bridge.MethodID, error) {
	return e.findMethod(class, name, sig, false)
}

func (e *env) StaticField(classRef bridge.Ref, name, sig string) (bridge.FieldID, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	c, err := e.class(classRef)
	if err != nil {
		return 0, err
	}
	for i, f := range e.rt.fields {
		if f.class == c && f.name == name && f.sig == sig {
			return bridge.FieldID(i + 1), nil
		}
	}
	return 0, fmt.Errorf("NoSuchFieldError: %s.%s", c.name, name)
}

func (e *env) StaticObjectField(classRef bridge.Ref, id bridge.FieldID) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	c, err := e.class(classRef)
	if err != nil {
		return 0, err
	}
	if int(id) < 1 || int(id) > len(e.rt.fields) || e.rt.fields[id-1].class != c {
		return 0, fmt.Errorf("invalid field id %d", id)
	}
	v := e.rt.fields[id-1].value
	if v == nil {
		return 0, nil
	}
	return e.local(v), nil
}

func (e *env) NewByteArray(data []byte) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.local(&byteArray{data: append([]byte(nil), data...)}), nil
}

func (e *env) ByteArrayRegion(array bridge.Ref, dst []byte) error {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	t, err := e.deref(array)
	if err != nil {
		return err
	}
	a, ok := t.(*byteArray)
	if !ok {
		return fmt.Errorf("reference %d is not a byte array", array)
	}
	if len(dst) > len(a.data) {
		return fmt.Errorf("ArrayIndexOutOfBoundsException: %d > %d", len(dst), len(a.data))
	}
	copy(dst, a.data)
	return nil
}

func (e *env) NewString(s string) (bridge.Ref, error) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.local(s), nil
}

func (e *env) CallStaticVoid(class bridge.Ref, id bridge.MethodID, args ...bridge.Value) error {
	return e.invoke(class, id, true, args)
}

func (e *env) CallVoid(obj bridge.Ref, id bridge.MethodID, args ...bridge.Value) error {
	return e.invoke(obj, id, false, args)
}

func (e *env) invoke(ref bridge.Ref, id bridge.MethodID, static bool, args []bridge.Value) (err error) {
	e.rt.mu.Lock()
	if int(id) < 1 || int(id) > len(e.rt.methods) {
		e.rt.mu.Unlock()
		return fmt.Errorf("invalid method id %d", id)
	}
	m := e.rt.methods[id-1]
	if m.static != static {
		e.rt.mu.Unlock()
		return fmt.Errorf("method %s has wrong static-ness", m.name)
	}

	var this *Object
	if static {
		if c, cerr := e.class(ref); cerr != nil || c != m.class {
			e.rt.mu.Unlock()
			return fmt.Errorf("static method %s.%s called on wrong class", m.class.name, m.name)
		}
	} else {
		t, derr := e.deref(ref)
		o, ok := t.(*Object)
		if derr != nil || !ok || o.Class != m.class {
			e.rt.mu.Unlock()
			return fmt.Errorf("method %s.%s called on wrong receiver", m.class.name, m.name)
		}
		this = o
	}
	e.rt.calls++
	e.rt.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s.%s: panic: %v", bridge.ErrCallFailed, m.class.name, m.name, r)
		}
	}()

	call := &Call{env: e, this: this, args: args}
	if cerr := m.fn(call); cerr != nil {
		return fmt.Errorf("%w: %s.%s: %w", bridge.ErrCallFailed, m.class.name, m.name, cerr)
	}
	return nil
}

// Call is one invocation of a managed method.
type Call struct {
	env  *env
	this *Object
	args []bridge.Value
}

// ErrArgument is returned for an argument of the wrong type.
var ErrArgument = errors.New("illegal argument")

// This returns the receiver of an instance method, or nil.
func (c *Call) This() *Object { return c.this }

// NumArgs returns the argument count.
func (c *Call) NumArgs() int { return len(c.args) }

// Int decodes argument i as a 32-bit integer.
func (c *Call) Int(i int) int32 {
	if i >= len(c.args) {
		return 0
	}
	return c.args[i].Int()
}

// Bytes returns the storage of the byte[] argument i. Writes are visible to
// the native caller once the method returns.
func (c *Call) Bytes(i int) ([]byte, error) {
	t, err := c.arg(i)
	if err != nil {
		return nil, err
	}
	a, ok := t.(*byteArray)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is not byte[]", ErrArgument, i)
	}
	return a.data, nil
}

// String decodes the String argument i.
func (c *Call) String(i int) (string, error) {
	t, err := c.arg(i)
	if err != nil {
		return "", err
	}
	s, ok := t.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is not a String", ErrArgument, i)
	}
	return s, nil
}

func (c *Call) arg(i int) (any, error) {
	if i >= len(c.args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrArgument, i)
	}
	c.env.rt.mu.Lock()
	defer c.env.rt.mu.Unlock()
	return c.env.deref(c.args[i].Ref())
}
