// Package host is the process the target binary runs in: its memory, its
// instruction cache and its C calling convention.
package host

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/wnxd/microhook/process"
)

// Memory is the address space of the current process.
type Memory struct {
	arch     process.Arch
	pageSize uint64
}

func NewMemory() (*Memory, error) {
	arch := process.HostArch()
	if arch == process.ARCH_UNKNOWN {
		return nil, fmt.Errorf("%w: %s", process.ErrArchUnsupported, runtime.GOARCH)
	}
	return &Memory{arch: arch, pageSize: pageSize()}, nil
}

func (m *Memory) Arch() process.Arch {
	return m.arch
}

func (m *Memory) PageSize() uint64 {
	return m.pageSize
}

func (m *Memory) MemProtect(addr, size uint64, prot process.MemProt) error {
	if addr%m.pageSize != 0 {
		return fmt.Errorf("%w: %08X not page aligned", process.ErrArgumentInvalid, addr)
	}
	return protect(addr, size, prot)
}

func (m *Memory) MemRead(addr, size uint64) ([]byte, error) {
	if addr == 0 {
		return nil, process.ErrAddressInvalid
	}
	data := make([]byte, size)
	copy(data, view(addr, size))
	return data, nil
}

func (m *Memory) MemWrite(addr uint64, data []byte) error {
	if addr == 0 {
		return process.ErrAddressInvalid
	}
	copy(view(addr, uint64(len(data))), data)
	return nil
}

func (m *Memory) FlushCache(addr, size uint64) error {
	return flushCache(addr, size)
}

func view(addr, size uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}
