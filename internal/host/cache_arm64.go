//go:build linux && arm64

package host

import (
	"sync"

	"github.com/ebitengine/purego"
)

var clearCache = sync.OnceValue(func() uintptr {
	for _, name := range []string{"libgcc_s.so.1", "libc.so.6"} {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			continue
		}
		if sym, err := purego.Dlsym(lib, "__clear_cache"); err == nil {
			return sym
		}
	}
	return 0
})

func flushCache(addr, size uint64) error {
	if fn := clearCache(); fn != 0 {
		purego.SyscallN(fn, uintptr(addr), uintptr(addr+size))
	}
	return nil
}
