//go:build !darwin && !linux

package jvm

import "github.com/smazurov/capturebridge/internal/bridge"

// VM is unavailable on this platform.
type VM struct{}

var _ bridge.Runtime = (*VM)(nil)

// Create always fails with ErrUnsupported.
func Create(Options) (*VM, error) { return nil, ErrUnsupported }

// Existing always fails with ErrUnsupported.
func Existing(string) (*VM, error) { return nil, ErrUnsupported }

func (*VM) Env() (bridge.Env, error) { return nil, ErrUnsupported }
func (*VM) AttachDaemon() (bridge.Env, error) { return nil, ErrUnsupported }
func (*VM) Detach() error { return ErrUnsupported }
func (*VM) Destroy() error { return ErrUnsupported }
