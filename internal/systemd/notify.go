// Package systemd reports service state to the service manager through
// sd_notify. Outside a unit with NotifyAccess every call is a no-op.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends state changes for the running service.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier logging failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Debug("sd_notify failed", "error", err)
	}
	return sent
}

// Ready reports that startup finished, with a human readable status.
func (n *Notifier) Ready(status string) bool {
	return n.notify(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the status line shown by systemctl.
func (n *Notifier) Status(status string) bool {
	return n.notify("STATUS=" + status)
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() bool {
	return n.notify(daemon.SdNotifyStopping)
}

// Watchdog pings the service manager at half the configured watchdog
// interval until ctx is cancelled. It returns immediately when the unit has
// no watchdog.
func (n *Notifier) Watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
