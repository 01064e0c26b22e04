//go:build windows

package dshow

import (
	"fmt"
	"io"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DeviceEnum is an ICreateDevEnum instance.
type DeviceEnum struct {
	ptr uintptr
}

// NewDeviceEnum creates the system device enumerator.
func NewDeviceEnum() (*DeviceEnum, error) {
	var ptr uintptr
	hr, _, _ := syscall.SyscallN(procCoCreateInstance.Addr(),
		uintptr(unsafe.Pointer(&clsidSystemDeviceEnum)),
		0,
		clsctxInprocServer,
		uintptr(unsafe.Pointer(&iidICreateDevEnum)),
		uintptr(unsafe.Pointer(&ptr)))
	if failed(hr) {
		return nil, fmt.Errorf("CoCreateInstance(SystemDeviceEnum) failed: %w", HRESULT(hr))
	}
	return &DeviceEnum{ptr: ptr}, nil
}

// ClassEnumerator opens the moniker enumerator for a device category.
// ErrNoDevices is returned when the category is empty.
func (e *DeviceEnum) ClassEnumerator(category *windows.GUID) (*MonikerEnum, error) {
	var ptr uintptr
	ret, err := comCall(e.ptr, vtblCreateClassEnumerator,
		uintptr(unsafe.Pointer(category)),
		uintptr(unsafe.Pointer(&ptr)),
		0)
	if err != nil {
		return nil, fmt.Errorf("CreateClassEnumerator failed: %w", err)
	}
	if ret == sFalse || ptr == 0 {
		return nil, ErrNoDevices
	}
	return &MonikerEnum{ptr: ptr}, nil
}

// Release drops the enumerator reference.
func (e *DeviceEnum) Release() {
	comRelease(e.ptr)
	e.ptr = 0
}

// MonikerEnum is an IEnumMoniker instance.
type MonikerEnum struct {
	ptr uintptr
}

// Next returns the next device moniker, or io.EOF when the category is
// exhausted. The caller owns the returned moniker.
func (e *MonikerEnum) Next() (*Moniker, error) {
	var ptr uintptr
	ret, err := comCall(e.ptr, vtblEnumNext, 1, uintptr(unsafe.Pointer(&ptr)), 0)
	if err != nil {
		return nil, err
	}
	if ret != sOK || ptr == 0 {
		return nil, io.EOF
	}
	return &Moniker{ptr: ptr}, nil
}

// Release drops the enumerator reference.
func (e *MonikerEnum) Release() {
	comRelease(e.ptr)
	e.ptr = 0
}

// Moniker is an IMoniker naming one capture device.
type Moniker struct {
	ptr uintptr
}

// BaseFilter binds the moniker to its capture filter.
func (m *Moniker) BaseFilter() (*Filter, error) {
	var ptr uintptr
	if _, err := comCall(m.ptr, vtblBindToObject, 0, 0,
		uintptr(unsafe.Pointer(&iidIBaseFilter)),
		uintptr(unsafe.Pointer(&ptr))); err != nil {
		return nil, fmt.Errorf("BindToObject failed: %w", err)
	}
	return &Filter{ptr: ptr}, nil
}

// Properties binds the moniker's property bag.
func (m *Moniker) Properties() (*PropertyBag, error) {
	var ptr uintptr
	if _, err := comCall(m.ptr, vtblBindToStorage, 0, 0,
		uintptr(unsafe.Pointer(&iidIPropertyBag)),
		uintptr(unsafe.Pointer(&ptr))); err != nil {
		return nil, fmt.Errorf("BindToStorage failed: %w", err)
	}
	return &PropertyBag{ptr: ptr}, nil
}

// DisplayName returns the moniker's display name, a stable identifier for
// devices that carry no DevicePath property.
func (m *Moniker) DisplayName() (string, error) {
	var ctx uintptr
	hr, _, _ := syscall.SyscallN(procCreateBindCtx.Addr(), 0, uintptr(unsafe.Pointer(&ctx)))
	if failed(hr) {
		return "", fmt.Errorf("CreateBindCtx failed: %w", HRESULT(hr))
	}
	defer comRelease(ctx)

	var name *uint16
	if _, err := comCall(m.ptr, vtblGetDisplayName, ctx, 0, uintptr(unsafe.Pointer(&name))); err != nil {
		return "", fmt.Errorf("GetDisplayName failed: %w", err)
	}
	defer syscall.SyscallN(procCoTaskMemFree.Addr(), uintptr(unsafe.Pointer(name)))
	return windows.UTF16PtrToString(name), nil
}

// Release drops the moniker reference.
func (m *Moniker) Release() {
	comRelease(m.ptr)
	m.ptr = 0
}

// PropertyBag is an IPropertyBag holding a device's registry properties.
type PropertyBag struct {
	ptr uintptr
}

// ReadString reads a BSTR property such as FriendlyName or DevicePath.
func (b *PropertyBag) ReadString(name string) (string, error) {
	key, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return "", err
	}

	var v variant
	defer v.clear()
	if _, err := comCall(b.ptr, vtblPropertyBagRead,
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&v)),
		0); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if v.vt != vtBSTR || v.val == 0 {
		return "", fmt.Errorf("read %s: unexpected variant type %d", name, v.vt)
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(v.val))), nil
}

// Release drops the property bag reference.
func (b *PropertyBag) Release() {
	comRelease(b.ptr)
	b.ptr = 0
}

// Filter is the IBaseFilter a device moniker binds to.
type Filter struct {
	ptr  uintptr
	once sync.Once
}

// IsVfW reports whether the filter exposes IAMVfwCaptureDialogs, which marks
// a Video for Windows driver wrapped by DirectShow.
func (f *Filter) IsVfW() bool {
	var dialogs uintptr
	if _, err := comCall(f.ptr, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIAMVfwCaptureDlgs)),
		uintptr(unsafe.Pointer(&dialogs))); err != nil {
		return false
	}
	comRelease(dialogs)
	return dialogs != 0
}

// Close releases the filter. Only the first call has any effect.
func (f *Filter) Close() error {
	f.once.Do(func() {
		comRelease(f.ptr)
		f.ptr = 0
	})
	return nil
}
