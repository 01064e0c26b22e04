//go:build darwin || linux

package jvm

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/smazurov/capturebridge/internal/bridge"
)

// JNINativeInterface indexes.
const (
	envFindClass             = 6
	envExceptionClear        = 17
	envNewGlobalRef          = 21
	envDeleteGlobalRef       = 22
	envDeleteLocalRef        = 23
	envGetObjectClass        = 31
	envGetMethodID           = 33
	envCallVoidMethodA       = 63
	envGetStaticMethodID     = 113
	envCallStaticVoidMethodA = 143
	envGetStaticFieldID      = 144
	envGetStaticObjectField  = 145
	envNewStringUTF          = 167
	envNewByteArray          = 176
	envGetByteArrayRegion    = 200
	envSetByteArrayRegion    = 208
	envExceptionCheck        = 228

	envTableSize = 233
)

// Env is a JNIEnv* for one attached thread.
type Env struct {
	ptr unsafe.Pointer
}

var _ bridge.Env = (*Env)(nil)

func (e *Env) call(idx int, args ...uintptr) uintptr {
	table := *(**[envTableSize]uintptr)(e.ptr)
	all := make([]uintptr, 0, len(args)+1)
	all = append(all, uintptr(e.ptr))
	all = append(all, args...)
	r, _, _ := purego.SyscallN(table[idx], all...)
	return r
}

// pendingException clears a thrown Java exception and reports it.
func (e *Env) pendingException(op string) error {
	if uint8(e.call(envExceptionCheck)) == 0 {
		return nil
	}
	e.call(envExceptionClear)
	return fmt.Errorf("%w: %s raised", bridge.ErrCallFailed, op)
}

var errNull = errors.New("null result")

// failure returns the pending exception, or errNull when none was thrown.
func (e *Env) failure(op string) error {
	if err := e.pendingException(op); err != nil {
		return err
	}
	return errNull
}

func (e *Env) FindClass(name string) (bridge.Ref, error) {
	cname := cstring(name)
	ref := e.call(envFindClass, uintptr(unsafe.Pointer(&cname[0])))
	runtime.KeepAlive(cname)
	if ref == 0 {
		return 0, fmt.Errorf("class %s not found: %w", name, e.failure("FindClass"))
	}
	return bridge.Ref(ref), nil
}

func (e *Env) GetObjectClass(obj bridge.Ref) (bridge.Ref, error) {
	ref := e.call(envGetObjectClass, uintptr(obj))
	if ref == 0 {
		return 0, fmt.Errorf("GetObjectClass(%d) returned null", obj)
	}
	return bridge.Ref(ref), nil
}

func (e *Env) NewGlobalRef(ref bridge.Ref) (bridge.Ref, error) {
	g := e.call(envNewGlobalRef, uintptr(ref))
	if g == 0 {
		return 0, fmt.Errorf("NewGlobalRef(%d) returned null", ref)
	}
	return bridge.Ref(g), nil
}

func (e *Env) DeleteGlobalRef(ref bridge.Ref) {
	if ref != 0 {
		e.call(envDeleteGlobalRef, uintptr(ref))
	}
}

func (e *Env) DeleteLocalRef(ref bridge.Ref) {
	if ref != 0 {
		e.call(envDeleteLocalRef, uintptr(ref))
	}
}

func (e *Env) memberID(idx int, class bridge.Ref, name, sig string) (uintptr, error) {
	cname, csig := cstring(name), cstring(sig)
	id := e.call(idx, uintptr(class), uintptr(unsafe.Pointer(&cname[0])), uintptr(unsafe.Pointer(&csig[0])))
	runtime.KeepAlive(cname)
	runtime.KeepAlive(csig)
	if id == 0 {
		return 0, fmt.Errorf("%s%s not found: %w", name, sig, e.failure(name))
	}
	return id, nil
}

func (e *Env) StaticMethod(class bridge.Ref, name, sig string) (bridge.MethodID, error) {
	id, err := e.memberID(envGetStaticMethodID, class, name, sig)
	return bridge.MethodID(id), err
}

func (e *Env) Method(class bridge.Ref, name, sig string) (bridge.MethodID, error) {
	id, err := e.memberID(envGetMethodID, class, name, sig)
	return bridge.MethodID(id), err
}

func (e *Env) StaticField(class bridge.Ref, name, sig string) (bridge.FieldID, error) {
	id, err := e.memberID(envGetStaticFieldID, class, name, sig)
	return bridge.FieldID(id), err
}

func (e *Env) StaticObjectField(class bridge.Ref, field bridge.FieldID) (bridge.Ref, error) {
	ref := e.call(envGetStaticObjectField, uintptr(class), uintptr(field))
	if err := e.pendingException("GetStaticObjectField"); err != nil {
		return 0, err
	}
	return bridge.Ref(ref), nil
}

func (e *Env) NewByteArray(data []byte) (bridge.Ref, error) {
	array := e.call(envNewByteArray, uintptr(len(data)))
	if array == 0 {
		return 0, fmt.Errorf("NewByteArray(%d) failed: %w", len(data), e.failure("NewByteArray"))
	}
	if len(data) > 0 {
		e.call(envSetByteArrayRegion, array, 0, uintptr(len(data)), uintptr(unsafe.Pointer(&data[0])))
		runtime.KeepAlive(data)
	}
	return bridge.Ref(array), nil
}

func (e *Env) ByteArrayRegion(array bridge.Ref, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	e.call(envGetByteArrayRegion, uintptr(array), 0, uintptr(len(dst)), uintptr(unsafe.Pointer(&dst[0])))
	runtime.KeepAlive(dst)
	return e.pendingException("GetByteArrayRegion")
}

func (e *Env) NewString(s string) (bridge.Ref, error) {
	cs := cstring(s)
	ref := e.call(envNewStringUTF, uintptr(unsafe.Pointer(&cs[0])))
	runtime.KeepAlive(cs)
	if ref == 0 {
		return 0, fmt.Errorf("NewStringUTF failed: %w", e.failure("NewStringUTF"))
	}
	return bridge.Ref(ref), nil
}

func (e *Env) CallStaticVoid(class bridge.Ref, method bridge.MethodID, args ...bridge.Value) error {
	e.call(envCallStaticVoidMethodA, uintptr(class), uintptr(method), valuesPtr(args))
	runtime.KeepAlive(args)
	return e.pendingException("CallStaticVoidMethodA")
}

func (e *Env) CallVoid(obj bridge.Ref, method bridge.MethodID, args ...bridge.Value) error {
	e.call(envCallVoidMethodA, uintptr(obj), uintptr(method), valuesPtr(args))
	runtime.KeepAlive(args)
	return e.pendingException("CallVoidMethodA")
}

// valuesPtr returns a jvalue* over args.
func valuesPtr(args []bridge.Value) uintptr {
	if len(args) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&args[0]))
}
