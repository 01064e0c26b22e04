//go:build windows

package osthread

import "golang.org/x/sys/windows"

func ID() (uint64, error) {
	return uint64(windows.GetCurrentThreadId()), nil
}
