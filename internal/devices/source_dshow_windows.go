//go:build windows

package devices

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sys/windows"

	"github.com/smazurov/capturebridge/internal/dshow"
	"github.com/smazurov/capturebridge/internal/lifetime"
)

func init() {
	RegisterBackend("dshow", NewDShowSource, KindVideo, KindAudio)
}

// dshowSource walks the DirectShow system device enumerator. Video for
// Windows drivers, recognized by IAMVfwCaptureDialogs on their filter, are
// the incompatible class and are filtered.
type dshowSource struct {
	logger *slog.Logger

	mu  sync.Mutex
	com *apartment
}

// NewDShowSource returns the DirectShow backend.
func NewDShowSource(logger *slog.Logger) Source {
	return &dshowSource{logger: logger}
}

func (s *dshowSource) Name() string { return "dshow" }

// Init joins the multithreaded apartment from a dedicated thread that stays
// in it until Uninit. Enumeration from any other thread uses the implicit
// MTA that thread keeps alive, and CoUninitialize runs on the thread that
// called CoInitializeEx.
func (s *dshowSource) Init() error {
	com, err := startApartment(func() (bool, error) {
		needUninit, err := dshow.Initialize()
		if err == nil {
			s.logger.Debug("COM initialized", "balanced", needUninit)
		}
		return needUninit, err
	}, dshow.Uninitialize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.com = com
	s.mu.Unlock()
	return nil
}

func (s *dshowSource) Uninit() {
	s.mu.Lock()
	com := s.com
	s.com = nil
	s.mu.Unlock()
	com.close()
}

func (s *dshowSource) Open(kind Kind) (Category, error) {
	var category *windows.GUID
	switch kind {
	case KindVideo:
		category = &dshow.VideoInputDeviceCategory
	case KindAudio:
		category = &dshow.AudioInputDeviceCategory
	default:
		return nil, fmt.Errorf("dshow does not enumerate %s devices", kind)
	}

	scope := lifetime.NewScope()
	defer scope.Close()

	devEnum, err := dshow.NewDeviceEnum()
	if err != nil {
		return nil, err
	}
	scope.Add(devEnum)

	monikers, err := devEnum.ClassEnumerator(category)
	if errors.Is(err, dshow.ErrNoDevices) {
		return &dshowCategory{src: s, kind: kind, scope: lifetime.NewScope()}, nil
	}
	if err != nil {
		return nil, err
	}

	owned := lifetime.NewScope()
	owned.Add(monikers)
	return &dshowCategory{src: s, kind: kind, monikers: monikers, scope: owned}, nil
}

type dshowCategory struct {
	src      *dshowSource
	kind     Kind
	monikers *dshow.MonikerEnum
	scope    *lifetime.Scope
}

func (c *dshowCategory) Next() (Candidate, error) {
	if c.monikers == nil {
		return nil, io.EOF
	}
	m, err := c.monikers.Next()
	if err != nil {
		return nil, err
	}
	return &dshowCandidate{src: c.src, kind: c.kind, moniker: m}, nil
}

func (c *dshowCategory) Release() {
	c.monikers = nil
	c.scope.Close()
}

type dshowCandidate struct {
	src     *dshowSource
	kind    Kind
	moniker *dshow.Moniker
}

func (c *dshowCandidate) Legacy() bool {
	if c.kind != KindVideo {
		return false
	}
	filter, err := c.moniker.BaseFilter()
	if err != nil {
		// Bind reports the failure
		c.src.logger.Debug("VfW check skipped", "error", err)
		return false
	}
	defer filter.Close()
	return filter.IsVfW()
}

func (c *dshowCandidate) Identity() (string, string, error) {
	bag, err := c.moniker.Properties()
	if err != nil {
		return "", "", err
	}
	defer bag.Release()

	name, err := bag.ReadString("FriendlyName")
	if err != nil {
		return "", "", err
	}

	path, err := bag.ReadString("DevicePath")
	if err != nil && c.kind == KindAudio {
		// audio endpoints have no DevicePath
		path, err = c.moniker.DisplayName()
	}
	if err != nil {
		return name, "", err
	}
	return name, path, nil
}

func (c *dshowCandidate) Bind() (Binding, error) {
	filter, err := c.moniker.BaseFilter()
	if err != nil {
		return nil, err
	}
	return filter, nil
}

func (c *dshowCandidate) Release() { c.moniker.Release() }
