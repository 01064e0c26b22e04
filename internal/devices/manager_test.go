package devices

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func newTestManager(t *testing.T, src *fakeSource) *Manager {
	t.Helper()
	m, err := NewManager(src, WithLogger(captureLogger(&bytes.Buffer{})))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestManagerReinitializeNeverLeaks(t *testing.T) {
	src := newFakeSource(
		candidateSpec{name: "A", path: "a"},
		candidateSpec{name: "B", path: "b"},
	)
	m := newTestManager(t, src)

	const n = 5
	for i := 0; i < n; i++ {
		if err := m.Reinitialize(); err != nil {
			t.Fatalf("Reinitialize %d failed: %v", i, err)
		}
		if live := src.liveBindings(); live != 2 {
			t.Fatalf("After reinit %d expected 2 live bindings, got %d", i, live)
		}
	}

	// one initial pass plus n rebuilds, two devices each
	if src.binds != 2*(n+1) {
		t.Errorf("Expected %d binds, got %d", 2*(n+1), src.binds)
	}
	if src.closes != 2*n {
		t.Errorf("Expected %d closes, got %d", 2*n, src.closes)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if live := src.liveBindings(); live != 0 {
		t.Errorf("Expected no live bindings after Close, got %d", live)
	}
}

func TestManagerReinitializeOnEmptyList(t *testing.T) {
	src := newFakeSource()
	m := newTestManager(t, src)

	if len(m.Devices()) != 0 {
		t.Fatalf("Expected empty list")
	}

	src.candidates = []candidateSpec{{name: "Hotplugged", path: "hp"}}
	if err := m.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize failed: %v", err)
	}

	devices := m.Devices()
	if len(devices) != 1 || devices[0].Name != "Hotplugged" {
		t.Errorf("Expected the hotplugged device, got %v", names(devices))
	}
	if src.closes != 0 {
		t.Errorf("Expected no closes on empty rebuild, got %d", src.closes)
	}
}

func TestManagerCloseUninitializesOnce(t *testing.T) {
	src := newFakeSource(candidateSpec{name: "A", path: "a"})
	m := newTestManager(t, src)

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if src.inits != 1 || src.uninits != 1 {
		t.Errorf("Expected balanced init/uninit, got %d/%d", src.inits, src.uninits)
	}
	if err := m.Reinitialize(); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Expected ErrManagerClosed, got %v", err)
	}
}

func TestManagerUnavailableCategoryIsNotFatal(t *testing.T) {
	src := newFakeSource()
	src.openErr = errors.New("no category")

	m := newTestManager(t, src)
	defer m.Close()

	if len(m.Devices()) != 0 {
		t.Error("Expected empty device list")
	}
	if err := m.Reinitialize(); !errors.Is(err, ErrEnumerationUnavailable) {
		t.Errorf("Expected ErrEnumerationUnavailable from explicit reinit, got %v", err)
	}
}

func TestManagerDevicesReturnsSnapshot(t *testing.T) {
	src := newFakeSource(candidateSpec{name: "A", path: "a"})
	m := newTestManager(t, src)
	defer m.Close()

	snapshot := m.Devices()
	snapshot[0] = nil

	if m.Devices()[0] == nil {
		t.Error("Expected manager list to be unaffected by snapshot mutation")
	}

	if d, ok := m.Lookup("a"); !ok || d.Name != "A" {
		t.Errorf("Expected Lookup to find device a")
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Error("Expected Lookup miss")
	}
}

func TestManagerConcurrentReaders(t *testing.T) {
	src := newFakeSource(
		candidateSpec{name: "A", path: "a"},
		candidateSpec{name: "B", path: "b"},
	)
	m := newTestManager(t, src)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if n := len(m.Devices()); n != 2 {
					t.Errorf("Expected a complete list of 2, got %d", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		if err := m.Reinitialize(); err != nil {
			t.Fatalf("Reinitialize failed: %v", err)
		}
	}
	wg.Wait()
}

func TestManagerPathsLeavesListAlone(t *testing.T) {
	src := newFakeSource(candidateSpec{name: "A", path: "a"})
	m := newTestManager(t, src)
	defer m.Close()

	before := m.Devices()
	paths, err := m.Paths()
	if err != nil {
		t.Fatalf("Paths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "a" {
		t.Errorf("Expected [a], got %v", paths)
	}
	after := m.Devices()
	if len(after) != 1 || after[0] != before[0] {
		t.Error("Expected device list unchanged")
	}

	m.Close()
	if _, err := m.Paths(); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Expected ErrManagerClosed, got %v", err)
	}
}
