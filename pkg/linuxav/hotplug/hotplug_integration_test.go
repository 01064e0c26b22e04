//go:build linux && integration

package hotplug

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMonitorIntegration(t *testing.T) {
	m, err := NewMonitor(SubsystemVideo4Linux, SubsystemSound)
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Log("Waiting for device events... plug/unplug a camera or microphone")
	err = m.Run(ctx, func(ev Event) {
		t.Logf("Received event: Action=%s Subsystem=%s DevName=%s", ev.Action, ev.Subsystem, ev.DevName)
		cancel()
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error: %v", err)
	}
}
