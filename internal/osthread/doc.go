// Package osthread identifies the OS thread a goroutine is running on.
// Callers lock the goroutine with runtime.LockOSThread before relying on
// the id; platforms without a thread id return errors.ErrUnsupported.
package osthread
