//go:build linux

package host

import (
	"github.com/wnxd/microhook/process"
	"golang.org/x/sys/unix"
)

func pageSize() uint64 {
	if size := unix.Getpagesize(); size > 0 {
		return uint64(size)
	}
	return process.DefaultPageSize
}

func protect(addr, size uint64, prot process.MemProt) error {
	var flags int
	if prot&process.MEM_PROT_READ != 0 {
		flags |= unix.PROT_READ
	}
	if prot&process.MEM_PROT_WRITE != 0 {
		flags |= unix.PROT_WRITE
	}
	if prot&process.MEM_PROT_EXEC != 0 {
		flags |= unix.PROT_EXEC
	}
	return unix.Mprotect(view(addr, size), flags)
}
