package devices

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Manager owns the enumerated device list of one source and kind.
//
// Concurrency contract: Reinitialize and Close are writers and are serialized
// by the manager; Devices and Lookup are readers. A writer holds the list
// lock for its whole run, so readers block during a rebuild and always see
// either the complete old list or the complete new one. Records from an old
// list are closed by the next Reinitialize and must not be used after it.
type Manager struct {
	source     Source
	enumerator *Enumerator
	kind       Kind
	logger     *slog.Logger

	mu      sync.RWMutex
	devices []*Device
	closed  bool
}

// NewManager initializes the source's native capture library and performs
// the first enumeration. An unavailable category is logged and leaves the
// list empty; it is not an error here.
func NewManager(src Source, opts ...Option) (*Manager, error) {
	o := buildOptions(opts)

	if err := src.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s capture library: %w", src.Name(), err)
	}

	m := &Manager{
		source:     src,
		enumerator: &Enumerator{source: src, opts: o},
		kind:       o.kind,
		logger:     o.logger,
	}

	if err := m.Reinitialize(); err != nil && !errors.Is(err, ErrEnumerationUnavailable) {
		src.Uninit()
		return nil, err
	}
	return m, nil
}

// Kind returns the capture category this manager enumerates.
func (m *Manager) Kind() Kind {
	return m.kind
}

// SourceName returns the backend name.
func (m *Manager) SourceName() string {
	return m.source.Name()
}

// Devices returns a snapshot of the current list in enumeration order.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.devices)
}

// Lookup finds a device by its unique path.
func (m *Manager) Lookup(path string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.devices {
		if d.Path == path {
			return d, true
		}
	}
	return nil, false
}

// Paths lists the paths currently reported by the source without binding
// them. It does not change the device list.
func (m *Manager) Paths() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	return m.enumerator.Paths()
}

// Reinitialize destroys every current record and enumerates again. On an
// empty list it behaves exactly like the first initialization.
func (m *Manager) Reinitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	if len(m.devices) > 0 {
		if err := m.destroyLocked(); err != nil {
			m.logger.Warn("Failed to release previous devices", "error", err)
		}
	}

	devices, err := m.enumerator.Enumerate()
	m.devices = devices
	if err != nil {
		return err
	}

	m.logger.Info("Capture devices enumerated",
		"source", m.source.Name(), "kind", m.kind.String(), "count", len(devices))
	return nil
}

// Close destroys the remaining records and uninitializes the capture library.
// Only the first call has any effect.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	err := m.destroyLocked()
	m.source.Uninit()
	return err
}

func (m *Manager) destroyLocked() error {
	var errs []error
	for _, d := range m.devices {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Path, err))
		}
	}
	m.devices = nil
	return errors.Join(errs...)
}
