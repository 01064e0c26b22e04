// Package bridge carries native events into a managed runtime. Every
// crossing attaches the calling OS thread for the duration of one call,
// marshals its payload into managed objects and detaches again if, and only
// if, the attachment was its own.
//
// The runtime is abstracted behind Runtime and Env so the same relay,
// hotplug and log-forwarding code drives a JVM (package jvm) or the
// in-process host runtime (package hostrt).
package bridge

// Ref is an opaque managed object reference.
type Ref uintptr

// MethodID identifies a resolved method.
type MethodID uintptr

// FieldID identifies a resolved field.
type FieldID uintptr

// Value is one call argument, laid out like a JNI jvalue.
type Value uint64

// RefArg passes an object reference.
func RefArg(r Ref) Value { return Value(r) }

// IntArg passes a 32-bit integer.
func IntArg(i int32) Value { return Value(uint32(i)) }

// Ref decodes an object argument.
func (v Value) Ref() Ref { return Ref(v) }

// Int decodes a 32-bit integer argument.
func (v Value) Int() int32 { return int32(uint32(v)) }

// Runtime is a managed runtime that native threads attach to.
type Runtime interface {
	// Env returns the environment of the calling thread, or ErrDetached.
	Env() (Env, error)
	// AttachDaemon attaches the calling thread as a daemon thread.
	AttachDaemon() (Env, error)
	// Detach detaches the calling thread.
	Detach() error
}

// Env is a thread's handle into the runtime. Local references are only
// valid on the thread that created them.
type Env interface {
	FindClass(name string) (Ref, error)
	GetObjectClass(obj Ref) (Ref, error)

	NewGlobalRef(ref Ref) (Ref, error)
	DeleteGlobalRef(ref Ref)
	DeleteLocalRef(ref Ref)

	StaticMethod(class Ref, name, sig string) (MethodID, error)
	Method(class Ref, name, sig string) (MethodID, error)
	StaticField(class Ref, name, sig string) (FieldID, error)
	StaticObjectField(class Ref, field FieldID) (Ref, error)

	// NewByteArray creates a managed byte[] holding a copy of data.
	NewByteArray(data []byte) (Ref, error)
	// ByteArrayRegion copies the array's leading len(dst) bytes into dst.
	ByteArrayRegion(array Ref, dst []byte) error
	NewString(s string) (Ref, error)

	// CallStaticVoid and CallVoid return ErrCallFailed when the managed
	// method raises; the pending exception is cleared.
	CallStaticVoid(class Ref, method MethodID, args ...Value) error
	CallVoid(obj Ref, method MethodID, args ...Value) error
}
