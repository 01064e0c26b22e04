//go:build darwin || linux

package jvm

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/smazurov/capturebridge/internal/bridge"
)

const (
	jniOK        = 0
	jniEDetached = -2
	jniVersion16 = 0x00010006
)

// JNIInvokeInterface indexes.
const (
	invDestroyJavaVM               = 3
	invAttachCurrentThread         = 4
	invDetachCurrentThread         = 5
	invGetEnv                      = 6
	invAttachCurrentThreadAsDaemon = 7
)

type javaVMOption struct {
	optionString *byte
	extraInfo    uintptr
}

type javaVMInitArgs struct {
	version            int32
	nOptions           int32
	options            *javaVMOption
	ignoreUnrecognized uint8
}

// VM is a loaded Java virtual machine. It implements bridge.Runtime.
type VM struct {
	lib uintptr
	vm  unsafe.Pointer // JavaVM*
}

var _ bridge.Runtime = (*VM)(nil)

func load(path string) (uintptr, error) {
	if path == "" {
		return 0, fmt.Errorf("jvm: libjvm path not set")
	}
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, fmt.Errorf("jvm: load %s: %w", path, err)
	}
	return lib, nil
}

// Create loads libjvm and starts a virtual machine. The creating thread is
// detached again before Create returns.
func Create(opts Options) (*VM, error) {
	lib, err := load(opts.LibPath)
	if err != nil {
		return nil, err
	}
	create, err := purego.Dlsym(lib, "JNI_CreateJavaVM")
	if err != nil {
		return nil, fmt.Errorf("jvm: %w", err)
	}

	strs := opts.vmArgs()
	cstrs := make([][]byte, len(strs))
	options := make([]javaVMOption, len(strs))
	for i, s := range strs {
		cstrs[i] = cstring(s)
		options[i].optionString = &cstrs[i][0]
	}
	args := javaVMInitArgs{
		version:            jniVersion16,
		nOptions:           int32(len(options)),
		ignoreUnrecognized: 1,
	}
	if len(options) > 0 {
		args.options = &options[0]
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var vm, env unsafe.Pointer
	rc, _, _ := purego.SyscallN(create,
		uintptr(unsafe.Pointer(&vm)),
		uintptr(unsafe.Pointer(&env)),
		uintptr(unsafe.Pointer(&args)))
	runtime.KeepAlive(cstrs)
	runtime.KeepAlive(options)
	if int32(rc) != jniOK {
		return nil, fmt.Errorf("jvm: JNI_CreateJavaVM failed: %d", int32(rc))
	}

	v := &VM{lib: lib, vm: vm}
	if err := v.Detach(); err != nil {
		return nil, err
	}
	return v, nil
}

// Existing attaches to a virtual machine already running in the process,
// as when the bridge is loaded from Java.
func Existing(libPath string) (*VM, error) {
	lib, err := load(libPath)
	if err != nil {
		return nil, err
	}
	created, err := purego.Dlsym(lib, "JNI_GetCreatedJavaVMs")
	if err != nil {
		return nil, fmt.Errorf("jvm: %w", err)
	}

	var vm unsafe.Pointer
	var n int32
	rc, _, _ := purego.SyscallN(created,
		uintptr(unsafe.Pointer(&vm)),
		1,
		uintptr(unsafe.Pointer(&n)))
	if int32(rc) != jniOK || n == 0 {
		return nil, fmt.Errorf("jvm: no running virtual machine (rc %d)", int32(rc))
	}
	return &VM{lib: lib, vm: vm}, nil
}

func (v *VM) fn(idx int) uintptr {
	table := *(**[8]uintptr)(v.vm)
	return table[idx]
}

// Env implements bridge.Runtime.
func (v *VM) Env() (bridge.Env, error) {
	var env unsafe.Pointer
	rc, _, _ := purego.SyscallN(v.fn(invGetEnv),
		uintptr(v.vm),
		uintptr(unsafe.Pointer(&env)),
		jniVersion16)
	switch int32(rc) {
	case jniOK:
		return &Env{ptr: env}, nil
	case jniEDetached:
		return nil, bridge.ErrDetached
	default:
		return nil, fmt.Errorf("jvm: GetEnv failed: %d", int32(rc))
	}
}

// AttachDaemon implements bridge.Runtime.
func (v *VM) AttachDaemon() (bridge.Env, error) {
	var env unsafe.Pointer
	rc, _, _ := purego.SyscallN(v.fn(invAttachCurrentThreadAsDaemon),
		uintptr(v.vm),
		uintptr(unsafe.Pointer(&env)),
		0)
	if int32(rc) != jniOK {
		return nil, fmt.Errorf("jvm: AttachCurrentThreadAsDaemon failed: %d", int32(rc))
	}
	return &Env{ptr: env}, nil
}

// Detach implements bridge.Runtime.
func (v *VM) Detach() error {
	rc, _, _ := purego.SyscallN(v.fn(invDetachCurrentThread), uintptr(v.vm))
	if int32(rc) != jniOK {
		return fmt.Errorf("jvm: DetachCurrentThread failed: %d", int32(rc))
	}
	return nil
}

// Destroy unloads the virtual machine. It blocks until all non-daemon Java
// threads have exited.
func (v *VM) Destroy() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rc, _, _ := purego.SyscallN(v.fn(invDestroyJavaVM), uintptr(v.vm))
	if int32(rc) != jniOK {
		return fmt.Errorf("jvm: DestroyJavaVM failed: %d", int32(rc))
	}
	return nil
}

func cstring(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
