package patch

import (
	"fmt"

	"github.com/wnxd/microhook/process"
)

// Unlocker makes the pages holding target code writable.
type Unlocker struct {
	mem      process.Memory
	pageSize uint64
}

type UnlockerOption func(*Unlocker)

// WithPageSize overrides the page size reported by the memory.
func WithPageSize(size uint64) UnlockerOption {
	return func(u *Unlocker) {
		if size != 0 {
			u.pageSize = size
		}
	}
}

func NewUnlocker(mem process.Memory, opts ...UnlockerOption) (*Unlocker, error) {
	u := &Unlocker{mem: mem, pageSize: mem.PageSize()}
	if u.pageSize == 0 {
		u.pageSize = process.DefaultPageSize
	}
	for _, opt := range opts {
		opt(u)
	}
	if !process.IsPowerOfTwo(u.pageSize) {
		return nil, fmt.Errorf("%w: page size %#x", process.ErrArgumentInvalid, u.pageSize)
	}
	return u, nil
}

func (u *Unlocker) PageSize() uint64 {
	return u.pageSize
}

func (u *Unlocker) Unlock(addr uint64) error {
	return u.UnlockRange(addr, 1)
}

// UnlockRange opens every page touched by [addr, addr+size).
func (u *Unlocker) UnlockRange(addr, size uint64) error {
	if addr == 0 {
		return process.ErrAddressInvalid
	}
	begin := process.AlignDown(addr, u.pageSize)
	end := process.Align(addr+max(size, 1), u.pageSize)
	if err := u.mem.MemProtect(begin, end-begin, process.MEM_PROT_ALL); err != nil {
		return fmt.Errorf("%w: %08X-%08X: %w", process.ErrProtectFailed, begin, end, err)
	}
	return nil
}
