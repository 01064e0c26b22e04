package devices

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/smazurov/capturebridge/internal/lifetime"
)

// Source is a platform capture backend. Init and Uninit bracket the native
// capture library; every successful Init is matched by one Uninit.
type Source interface {
	Name() string
	Init() error
	Uninit()
	// Open creates the category enumerator for kind.
	Open(kind Kind) (Category, error)
}

// Category iterates the candidates of one capture category. Next returns
// io.EOF once exhausted. Candidates are visited one at a time on the caller's
// goroutine.
type Category interface {
	lifetime.Releaser
	Next() (Candidate, error)
}

// Candidate is an unbound device handle (a moniker on Windows).
type Candidate interface {
	lifetime.Releaser
	// Legacy reports an incompatible capture capability; such candidates
	// are filtered out.
	Legacy() bool
	// Identity reads the friendly name and unique path.
	Identity() (name, path string, err error)
	// Bind initializes the native capture handle.
	Bind() (Binding, error)
}

// SourceFactory builds a backend.
type SourceFactory func(logger *slog.Logger) Source

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]SourceFactory)
	defaults   = make(map[Kind]string)
)

// RegisterBackend makes a backend available to NewSource. Platform files
// register from init.
func RegisterBackend(name string, factory SourceFactory, defaultFor ...Kind) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
	for _, k := range defaultFor {
		defaults[k] = name
	}
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource returns the named backend. "auto" or "" picks the platform
// default for kind; with no default, a source that always reports
// ErrEnumerationUnavailable is returned.
func NewSource(name string, kind Kind, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendsMu.RLock()
	if name == "" || name == "auto" {
		name = defaults[kind]
	}
	factory, ok := backends[name]
	backendsMu.RUnlock()

	if name == "" {
		return unavailableSource{}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return factory(logger), nil
}

// unavailableSource is used where the platform has no backend for a kind.
type unavailableSource struct{}

func (unavailableSource) Name() string { return "none" }
func (unavailableSource) Init() error { return nil }
func (unavailableSource) Uninit() {}
func (unavailableSource) Open(kind Kind) (Category, error) {
	return nil, fmt.Errorf("no %s capture backend on this platform", kind)
}
