//go:build !linux

package host

import (
	"github.com/wnxd/microhook/process"
)

func pageSize() uint64 {
	return process.DefaultPageSize
}

func protect(addr, size uint64, prot process.MemProt) error {
	return process.ErrCallingUnsupported
}
