package bridge

import "github.com/smazurov/capturebridge/internal/lifetime"

// CallbackSignature is the managed signature of a per-buffer callback:
// void method(byte[] buffer, int length).
const CallbackSignature = "([BI)V"

// CallbackTarget is an object and the buffer callback to invoke on it. The
// caller owns Object and keeps it valid for as long as the target is used.
type CallbackTarget struct {
	Object Ref
	Method MethodID
}

// Valid reports whether both halves are set.
func (t CallbackTarget) Valid() bool {
	return t.Object != 0 && t.Method != 0
}

// ResolveCallbackTarget looks up the buffer callback name on obj's class.
func ResolveCallbackTarget(env Env, obj Ref, name string) (CallbackTarget, error) {
	scope := lifetime.NewScope()
	defer scope.Close()

	class, err := env.GetObjectClass(obj)
	if err != nil {
		return CallbackTarget{}, resolutionError(ResolveClass, "<object class>", "", err)
	}
	scope.AddFunc(func() { env.DeleteLocalRef(class) })

	method, err := env.Method(class, name, CallbackSignature)
	if err != nil {
		return CallbackTarget{}, resolutionError(ResolveMethod, name, CallbackSignature, err)
	}
	return CallbackTarget{Object: obj, Method: method}, nil
}

// Relay hands buf[:length] to the managed callback and copies the managed
// array back into buf, so the callback may rewrite the buffer in place.
// length is clamped to [0, len(buf)]. Relay reports whether the callback
// ran; a thread that cannot attach drops the buffer and nothing retries.
func (c *Context) Relay(buf []byte, length int, target CallbackTarget) bool {
	length = max(0, min(length, len(buf)))
	data := buf[:length]

	if !target.Valid() {
		c.observer.Relayed(false, length)
		return false
	}

	att, err := c.Attach()
	if err != nil {
		c.observer.Relayed(false, length)
		return false
	}
	defer att.Release()
	env := att.Env()

	array, err := env.NewByteArray(data)
	if err != nil {
		c.observer.Relayed(false, length)
		return false
	}
	defer env.DeleteLocalRef(array)

	callErr := env.CallVoid(target.Object, target.Method, RefArg(array), IntArg(int32(length)))
	if err := env.ByteArrayRegion(array, data); err != nil {
		c.logger.Debug("Relay copy-back failed", "error", err)
	}

	delivered := callErr == nil
	c.observer.Relayed(delivered, length)
	return delivered
}
