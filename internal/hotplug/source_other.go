//go:build !linux

package hotplug

import "time"

// Default returns a polling source over snapshot.
func Default(snapshot func() ([]string, error), interval time.Duration, _ ...string) Source {
	return NewPoller(snapshot, interval)
}
