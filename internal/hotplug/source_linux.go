package hotplug

import (
	"context"
	"time"

	uevent "github.com/smazurov/capturebridge/pkg/linuxav/hotplug"
)

// Netlink reports capture node additions and removals from kernel uevents.
type Netlink struct {
	subsystems []string
}

// NewNetlink listens on the given subsystems; with none, video4linux and
// sound.
func NewNetlink(subsystems ...string) *Netlink {
	if len(subsystems) == 0 {
		subsystems = []string{uevent.SubsystemVideo4Linux, uevent.SubsystemSound}
	}
	return &Netlink{subsystems: subsystems}
}

func (n *Netlink) Name() string { return "netlink" }

// Run implements Source.
func (n *Netlink) Run(ctx context.Context, changed func()) error {
	m, err := uevent.NewMonitor(n.subsystems...)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Run(ctx, func(ev uevent.Event) {
		if relevant(ev) {
			changed()
		}
	})
}

// relevant keeps node additions and removals. In the capture subsystems
// only capture nodes count; control and playback nodes are ignored.
func relevant(ev uevent.Event) bool {
	if ev.Action != uevent.ActionAdd && ev.Action != uevent.ActionRemove {
		return false
	}
	switch ev.Subsystem {
	case uevent.SubsystemVideo4Linux, uevent.SubsystemSound:
		return ev.IsCaptureNode()
	}
	return true
}

// Default returns the kernel uevent source. snapshot and interval are
// used only where no event feed exists.
func Default(_ func() ([]string, error), _ time.Duration, subsystems ...string) Source {
	return NewNetlink(subsystems...)
}
