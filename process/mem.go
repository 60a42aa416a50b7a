package process

import "fmt"

const DefaultPageSize = 0x1000

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

func (p MemProt) String() string {
	b := []byte("---")
	if p&MEM_PROT_READ != 0 {
		b[0] = 'r'
	}
	if p&MEM_PROT_WRITE != 0 {
		b[1] = 'w'
	}
	if p&MEM_PROT_EXEC != 0 {
		b[2] = 'x'
	}
	return string(b)
}

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}

func (r MemRegion) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}

func (r MemRegion) String() string {
	return fmt.Sprintf("%08X-%08X %s", r.Addr, r.End(), r.Prot)
}

// Memory is the address space of the process hosting the target binary.
type Memory interface {
	Arch() Arch
	PageSize() uint64
	MemProtect(addr, size uint64, prot MemProt) error
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
}

// CacheFlusher is implemented by memories whose instruction cache must be
// synchronised after code bytes are rewritten.
type CacheFlusher interface {
	FlushCache(addr, size uint64) error
}
