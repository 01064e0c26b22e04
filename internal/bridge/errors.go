package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrRuntimeUnavailable means the calling thread could not reach the
	// managed runtime. The crossing is dropped.
	ErrRuntimeUnavailable = errors.New("managed runtime unavailable")
	// ErrDetached is returned by Runtime.Env for an unattached thread.
	ErrDetached = errors.New("thread not attached to managed runtime")
	// ErrAlreadyLoaded is returned by a second OnLoad.
	ErrAlreadyLoaded = errors.New("bridge already loaded")
	// ErrResolution marks a failed class, method or field lookup.
	ErrResolution = errors.New("managed resolution failed")
	// ErrCallFailed marks a managed method that raised.
	ErrCallFailed = errors.New("managed call failed")
)

// ResolutionKind names what was being looked up.
type ResolutionKind string

// Resolution kinds.
const (
	ResolveClass        ResolutionKind = "class"
	ResolveMethod       ResolutionKind = "method"
	ResolveStaticMethod ResolutionKind = "static method"
	ResolveStaticField  ResolutionKind = "static field"
)

// ResolutionError reports a failed lookup of a managed member.
type ResolutionError struct {
	Kind ResolutionKind
	Name string
	Sig  string
	Err  error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %s %s%s", e.Kind, e.Name, e.Sig)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrResolution and the runtime's cause.
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrResolution}
	}
	return []error{ErrResolution, e.Err}
}

func resolutionError(kind ResolutionKind, name, sig string, err error) error {
	return &ResolutionError{Kind: kind, Name: name, Sig: sig, Err: err}
}
