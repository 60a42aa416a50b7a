//go:build linux && arm

package host

import (
	"golang.org/x/sys/unix"
)

// __ARM_NR_cacheflush
const sysCacheflush = 0xf0002

func flushCache(addr, size uint64) error {
	_, _, errno := unix.Syscall(sysCacheflush, uintptr(addr), uintptr(addr+size), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
