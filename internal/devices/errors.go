package devices

import (
	"errors"
	"fmt"
)

var (
	// ErrEnumerationUnavailable means the category enumerator could not be
	// created. The enumeration pass returns no devices.
	ErrEnumerationUnavailable = errors.New("capture device enumeration unavailable")

	// ErrDeviceSkipped marks a single candidate that was filtered or failed.
	ErrDeviceSkipped = errors.New("capture device skipped")

	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("device manager closed")

	// ErrUnknownBackend is returned when no enumeration backend matches.
	ErrUnknownBackend = errors.New("unknown capture backend")

	errEmptyIdentity = errors.New("empty identity property")
)

// SkipReason says why a candidate did not become a device record.
type SkipReason string

// Skip reasons.
const (
	SkipFiltered SkipReason = "filtered"
	SkipIdentity SkipReason = "identity"
	SkipBind     SkipReason = "bind"
)

// SkipError describes one skipped candidate.
type SkipError struct {
	Reason SkipReason
	Kind   Kind
	Name   string
	Path   string
	Err    error
}

func (e *SkipError) Error() string {
	label := e.Name
	if label == "" {
		label = e.Path
	}
	if label == "" {
		label = "<unnamed>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s device %s skipped (%s): %v", e.Kind, label, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s device %s skipped (%s)", e.Kind, label, e.Reason)
}

// Unwrap exposes both ErrDeviceSkipped and the underlying cause.
func (e *SkipError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeviceSkipped}
	}
	return []error{ErrDeviceSkipped, e.Err}
}
