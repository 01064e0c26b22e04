//go:build windows

// Package dshow wraps the DirectShow system device enumerator: the COM
// calls needed to walk a capture category, read each moniker's property
// bag and bind its capture filter.
package dshow

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modole32    = windows.NewLazySystemDLL("ole32.dll")
	modoleaut32 = windows.NewLazySystemDLL("oleaut32.dll")

	procCoInitializeEx   = modole32.NewProc("CoInitializeEx")
	procCoUninitialize   = modole32.NewProc("CoUninitialize")
	procCoCreateInstance = modole32.NewProc("CoCreateInstance")
	procCoTaskMemFree    = modole32.NewProc("CoTaskMemFree")
	procCreateBindCtx    = modole32.NewProc("CreateBindCtx")
	procVariantClear     = modoleaut32.NewProc("VariantClear")
)

const (
	coinitMultithreaded = 0x0
	clsctxInprocServer  = 0x1

	sOK             = 0x00000000
	sFalse          = 0x00000001
	rpcEChangedMode = 0x80010106
)

var (
	clsidSystemDeviceEnum = windows.GUID{Data1: 0x62BE5D10, Data2: 0x60EB, Data3: 0x11d0, Data4: [8]byte{0xBD, 0x3B, 0x00, 0xA0, 0xC9, 0x11, 0xCE, 0x86}}
	iidICreateDevEnum     = windows.GUID{Data1: 0x29840822, Data2: 0x5B84, Data3: 0x11D0, Data4: [8]byte{0xBD, 0x3B, 0x00, 0xA0, 0xC9, 0x11, 0xCE, 0x86}}
	iidIPropertyBag       = windows.GUID{Data1: 0x55272A00, Data2: 0x42CB, Data3: 0x11CE, Data4: [8]byte{0x81, 0x35, 0x00, 0xAA, 0x00, 0x4B, 0xB8, 0x51}}
	iidIBaseFilter        = windows.GUID{Data1: 0x56a86895, Data2: 0x0ad4, Data3: 0x11ce, Data4: [8]byte{0xb0, 0x3a, 0x00, 0x20, 0xaf, 0x0b, 0xa7, 0x70}}
	iidIAMVfwCaptureDlgs  = windows.GUID{Data1: 0xD8D715A0, Data2: 0x6E5E, Data3: 0x11D0, Data4: [8]byte{0xB3, 0xF0, 0x00, 0xAA, 0x00, 0x37, 0x61, 0xC5}}

	// VideoInputDeviceCategory is CLSID_VideoInputDeviceCategory.
	VideoInputDeviceCategory = windows.GUID{Data1: 0x860BB310, Data2: 0x5D01, Data3: 0x11d0, Data4: [8]byte{0xBD, 0x3B, 0x00, 0xA0, 0xC9, 0x11, 0xCE, 0x86}}
	// AudioInputDeviceCategory is CLSID_AudioInputDeviceCategory.
	AudioInputDeviceCategory = windows.GUID{Data1: 0x33D9A762, Data2: 0x90C8, Data3: 0x11d0, Data4: [8]byte{0xBD, 0x43, 0x00, 0xA0, 0xC9, 0x11, 0xCE, 0x86}}
)

// vtable indexes, fixed by the COM ABI.
// IUnknown:       0=QueryInterface, 1=AddRef, 2=Release
// ICreateDevEnum: 3=CreateClassEnumerator
// IEnumMoniker:   3=Next
// IMoniker:       8=BindToObject, 9=BindToStorage, 20=GetDisplayName
// IPropertyBag:   3=Read
const (
	vtblQueryInterface        = 0
	vtblRelease               = 2
	vtblCreateClassEnumerator = 3
	vtblEnumNext              = 3
	vtblBindToObject          = 8
	vtblBindToStorage         = 9
	vtblGetDisplayName        = 20
	vtblPropertyBagRead       = 3
)

// ErrNoDevices is returned when a category has no registered devices.
var ErrNoDevices = errors.New("no devices in category")

// HRESULT is a failed COM status code.
type HRESULT uint32

func (hr HRESULT) Error() string {
	return fmt.Sprintf("HRESULT 0x%08X", uint32(hr))
}

func failed(ret uintptr) bool {
	return int32(ret) < 0
}

// comCall invokes the method at vtableIdx on a COM interface pointer.
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))

	all := make([]uintptr, 0, 1+len(args))
	all = append(all, obj)
	all = append(all, args...)
	ret, _, _ := syscall.SyscallN(fnPtr, all...)

	if failed(ret) {
		return ret, fmt.Errorf("COM vtable[%d]: %w", vtableIdx, HRESULT(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release.
func comRelease(obj uintptr) {
	if obj == 0 {
		return
	}
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + vtblRelease*unsafe.Sizeof(uintptr(0))))
	syscall.SyscallN(fnPtr, obj)
}

// Initialize enters the multithreaded apartment. needUninit reports whether
// the call must be balanced by Uninitialize. A thread already in another
// apartment mode is not an error; COM stays usable through the implicit MTA.
func Initialize() (needUninit bool, err error) {
	hr, _, _ := syscall.SyscallN(procCoInitializeEx.Addr(), 0, coinitMultithreaded)
	switch uint32(hr) {
	case sOK, sFalse:
		return true, nil
	case rpcEChangedMode:
		return false, nil
	default:
		return false, fmt.Errorf("CoInitializeEx failed: %w", HRESULT(hr))
	}
}

// Uninitialize balances a successful Initialize. It must run on the thread
// that called Initialize.
func Uninitialize() {
	syscall.SyscallN(procCoUninitialize.Addr())
}

// variant matches VARIANT on 64-bit Windows.
type variant struct {
	vt       uint16
	reserved [3]uint16
	val      uintptr
	_        uintptr
}

const vtBSTR = 8

func (v *variant) clear() {
	syscall.SyscallN(procVariantClear.Addr(), uintptr(unsafe.Pointer(v)))
}
