//go:build darwin

package osthread

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

var (
	libSystemOnce sync.Once
	libSystemErr  error

	pthreadSelf       func() uintptr
	pthreadThreadIDNP func(thread uintptr, id *uint64) int32
)

func loadLibSystem() {
	lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		libSystemErr = fmt.Errorf("load libSystem: %w", err)
		return
	}
	purego.RegisterLibFunc(&pthreadSelf, lib, "pthread_self")
	purego.RegisterLibFunc(&pthreadThreadIDNP, lib, "pthread_threadid_np")
}

func ID() (uint64, error) {
	libSystemOnce.Do(loadLibSystem)
	if libSystemErr != nil {
		return 0, libSystemErr
	}
	var id uint64
	if rc := pthreadThreadIDNP(pthreadSelf(), &id); rc != 0 {
		return 0, fmt.Errorf("pthread_threadid_np: errno %d", rc)
	}
	return id, nil
}
