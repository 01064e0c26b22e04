package bridge

import (
	"errors"
	"fmt"
	"runtime"
)

// State is the lifecycle of one Attachment.
type State int

// Attachment states.
const (
	Unattached State = iota
	AttachedOwned
	AttachedPreExisting
	Released
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case AttachedOwned:
		return "attached-owned"
	case AttachedPreExisting:
		return "attached-preexisting"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Attachment scopes one native-to-managed crossing. The goroutine is locked
// to its OS thread from Attach until Release, so Release must run on the
// goroutine that attached.
type Attachment struct {
	rt    Runtime
	env   Env
	state State
}

// Attach gives the calling thread a usable Env. A thread that was already
// attached stays attached after Release; a thread attached here is detached
// by Release.
func (c *Context) Attach() (*Attachment, error) {
	rt := c.runtime()
	if rt == nil {
		c.observer.AttachFailed(ErrRuntimeUnavailable)
		return nil, ErrRuntimeUnavailable
	}

	runtime.LockOSThread()

	env, err := rt.Env()
	if err == nil {
		c.observer.Attached(false)
		return &Attachment{rt: rt, env: env, state: AttachedPreExisting}, nil
	}
	if !errors.Is(err, ErrDetached) {
		runtime.UnlockOSThread()
		err = fmt.Errorf("%w: %w", ErrRuntimeUnavailable, err)
		c.observer.AttachFailed(err)
		return nil, err
	}

	env, err = rt.AttachDaemon()
	if err != nil {
		runtime.UnlockOSThread()
		err = fmt.Errorf("%w: attach: %w", ErrRuntimeUnavailable, err)
		c.observer.AttachFailed(err)
		return nil, err
	}
	c.observer.Attached(true)
	return &Attachment{rt: rt, env: env, state: AttachedOwned}, nil
}

// Env returns the attached environment, or nil after Release.
func (a *Attachment) Env() Env {
	if a == nil {
		return nil
	}
	return a.env
}

// State reports where the attachment is in its lifecycle.
func (a *Attachment) State() State {
	if a == nil {
		return Unattached
	}
	return a.state
}

// Release detaches the thread if Attach attached it. Calling Release more
// than once is safe.
func (a *Attachment) Release() {
	if a == nil || a.state == Released || a.state == Unattached {
		return
	}
	if a.state == AttachedOwned {
		_ = a.rt.Detach()
	}
	a.state = Released
	a.env = nil
	runtime.UnlockOSThread()
}
