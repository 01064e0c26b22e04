//go:build linux

package osthread

import "golang.org/x/sys/unix"

// ID returns the kernel id of the calling OS thread. The result only
// identifies the goroutine while it is locked to its thread.
func ID() (uint64, error) {
	return uint64(unix.Gettid()), nil
}
