package devices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/capturebridge/internal/lifetime"
)

// Observer receives enumeration outcomes. Used for metrics and events.
type Observer interface {
	DeviceSkipped(err *SkipError)
	Enumerated(kind Kind, devices []*Device)
}

type nopObserver struct{}

func (nopObserver) DeviceSkipped(*SkipError) {}
func (nopObserver) Enumerated(Kind, []*Device) {}

type options struct {
	kind     Kind
	logger   *slog.Logger
	observer Observer
}

// Option configures an Enumerator or Manager.
type Option func(*options)

// WithKind selects the capture category. Default is KindVideo.
func WithKind(k Kind) Option {
	return func(o *options) { o.kind = k }
}

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers observers for skips and completed passes.
func WithObserver(obs ...Observer) Option {
	return func(o *options) {
		var all multiObserver
		for _, ob := range obs {
			if ob != nil {
				all = append(all, ob)
			}
		}
		if len(all) == 1 {
			o.observer = all[0]
		} else if len(all) > 1 {
			o.observer = all
		}
	}
}

type multiObserver []Observer

func (m multiObserver) DeviceSkipped(err *SkipError) {
	for _, o := range m {
		o.DeviceSkipped(err)
	}
}

func (m multiObserver) Enumerated(kind Kind, devices []*Device) {
	for _, o := range m {
		o.Enumerated(kind, devices)
	}
}

func buildOptions(opts []Option) options {
	o := options{
		kind:     KindVideo,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Enumerator walks a source's capture category and builds device records.
type Enumerator struct {
	source Source
	opts   options
}

// NewEnumerator creates an enumerator over src.
func NewEnumerator(src Source, opts ...Option) *Enumerator {
	return &Enumerator{source: src, opts: buildOptions(opts)}
}

// Enumerate returns the fully initialized devices of the configured kind in
// enumeration order. If the category enumerator cannot be created the
// result is empty and the error wraps ErrEnumerationUnavailable. Failures of
// individual candidates are logged and skipped.
func (e *Enumerator) Enumerate() ([]*Device, error) {
	logger := e.opts.logger
	kind := e.opts.kind

	scope := lifetime.NewScope()
	defer scope.Close()

	category, err := e.source.Open(kind)
	if err != nil {
		logger.Warn("Capture device category unavailable",
			"source", e.source.Name(), "kind", kind.String(), "error", err)
		e.opts.observer.Enumerated(kind, nil)
		return []*Device{}, fmt.Errorf("%w: %s: %w", ErrEnumerationUnavailable, e.source.Name(), err)
	}
	scope.Add(category)

	devices := make([]*Device, 0)
	for {
		candidate, err := category.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("Capture device iteration stopped", "source", e.source.Name(), "error", err)
			break
		}
		if candidate == nil {
			continue
		}

		each := scope.Child()
		each.Add(candidate)
		dev := e.visit(candidate)
		each.Close()
		if dev != nil {
			devices = append(devices, dev)
		}
	}

	logger.Debug("Enumerated capture devices",
		"source", e.source.Name(), "kind", kind.String(), "count", len(devices))
	e.opts.observer.Enumerated(kind, devices)
	return devices, nil
}

// visit turns one candidate into a record. The caller releases the
// candidate.
func (e *Enumerator) visit(c Candidate) *Device {
	kind := e.opts.kind
	if c.Legacy() {
		e.skip(&SkipError{Reason: SkipFiltered, Kind: kind})
		return nil
	}

	name, path, err := c.Identity()
	if err == nil && (name == "" || path == "") {
		err = errEmptyIdentity
	}
	if err != nil {
		e.skip(&SkipError{Reason: SkipIdentity, Kind: kind, Name: name, Path: path, Err: err})
		return nil
	}

	dev := &Device{
		Name:   name,
		Path:   path,
		Kind:   kind,
		Source: e.source.Name(),
	}

	binding, err := c.Bind()
	if err != nil {
		if binding != nil {
			_ = binding.Close()
		}
		e.skip(&SkipError{Reason: SkipBind, Kind: kind, Name: name, Path: path, Err: err})
		return nil
	}
	dev.binding = binding
	return dev
}

// Paths walks the category reading identities only. Nothing is bound and
// nothing is reported; pollers use it to detect changes cheaply.
func (e *Enumerator) Paths() ([]string, error) {
	category, err := e.source.Open(e.opts.kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEnumerationUnavailable, e.source.Name(), err)
	}
	defer category.Release()

	var paths []string
	for {
		candidate, err := category.Next()
		if errors.Is(err, io.EOF) {
			return paths, nil
		}
		if err != nil {
			return paths, err
		}
		if candidate == nil {
			continue
		}
		if !candidate.Legacy() {
			if _, path, err := candidate.Identity(); err == nil && path != "" {
				paths = append(paths, path)
			}
		}
		candidate.Release()
	}
}

func (e *Enumerator) skip(err *SkipError) {
	level := slog.LevelWarn
	if err.Reason == SkipFiltered {
		level = slog.LevelDebug
	}

	attrs := []any{"source", e.source.Name(), "reason", string(err.Reason)}
	if err.Name != "" {
		attrs = append(attrs, "name", err.Name)
	}
	if err.Path != "" {
		attrs = append(attrs, "path", err.Path)
	}
	if err.Err != nil {
		attrs = append(attrs, "error", err.Err)
	}
	e.opts.logger.Log(context.Background(), level, "Device skipped", attrs...)
	e.opts.observer.DeviceSkipped(err)
}
