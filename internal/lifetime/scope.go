// Package lifetime tracks reference-counted native handles so that every
// acquisition is released exactly once on every exit path.
//
// A Scope is opened at the top of a function, each handle is added as soon
// as it is acquired, and a deferred Close releases whatever is still owned:
//
//	s := lifetime.NewScope()
//	defer s.Close()
//
//	enum, err := createEnumerator()
//	if err != nil {
//	    return err
//	}
//	s.Add(enum)
//
// Handles that must outlive the function are moved out with Keep.
package lifetime

import "sync"

// Releaser is a native handle with a single release operation.
type Releaser interface {
	Release()
}

// ReleaseFunc adapts a plain function to Releaser.
type ReleaseFunc func()

// Release calls f.
func (f ReleaseFunc) Release() { f() }

// Scope owns a stack of handles and releases them in reverse order.
type Scope struct {
	mu     sync.Mutex
	owned  []Releaser
	closed bool
	parent *Scope
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add takes ownership of r. A nil handle is ignored. Adding to a closed
// scope releases r immediately.
func (s *Scope) Add(r Releaser) {
	if isNil(r) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		r.Release()
		return
	}
	s.owned = append(s.owned, r)
	s.mu.Unlock()
}

// AddFunc is shorthand for Add(ReleaseFunc(fn)).
func (s *Scope) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	s.Add(ReleaseFunc(fn))
}

// Keep removes r from the scope without releasing it and reports whether it
// was owned. Ownership passes to the caller. Functions added with AddFunc
// are not comparable and can never be kept.
func (s *Scope) Keep(r Releaser) bool {
	if _, ok := r.(ReleaseFunc); ok || r == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.owned) - 1; i >= 0; i-- {
		if _, ok := s.owned[i].(ReleaseFunc); ok {
			continue
		}
		if s.owned[i] == r {
			s.owned = append(s.owned[:i], s.owned[i+1:]...)
			return true
		}
	}
	return false
}

// Close releases every owned handle, last acquired first. Subsequent calls
// do nothing.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	owned := s.owned
	s.owned = nil
	s.mu.Unlock()

	if s.parent != nil {
		s.parent.Keep(s)
	}

	for i := len(owned) - 1; i >= 0; i-- {
		owned[i].Release()
	}
}

// Child opens a nested scope whose Close is also registered with s, so an
// early return from the parent still releases the child's handles. A child
// closed on its own leaves s.
func (s *Scope) Child() *Scope {
	c := NewScope()
	c.parent = s
	s.Add(c)
	return c
}

// Release implements Releaser so scopes can nest.
func (s *Scope) Release() { s.Close() }

func isNil(r Releaser) bool {
	if r == nil {
		return true
	}
	if f, ok := r.(ReleaseFunc); ok && f == nil {
		return true
	}
	return false
}
