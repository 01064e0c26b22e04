package hotplug

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// kernelGroup is the multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// Monitor listens for kernel device events.
type Monitor struct {
	fd     int
	filter Filter
}

// NewMonitor opens a uevent socket. Only events from the given subsystems
// are delivered; with none, every event is.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	// Wake up once a second to observe cancellation.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Monitor{fd: fd, filter: NewFilter(subsystems...)}, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run delivers matching events to handle until ctx is cancelled. handle is
// called on Run's goroutine.
func (m *Monitor) Run(ctx context.Context, handle func(Event)) error {
	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		ev, err := ParseUEvent(buf[:n])
		if err != nil || !m.filter.Match(ev) {
			continue
		}
		handle(ev)
	}
}
