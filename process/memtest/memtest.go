// Package memtest provides an in-memory process.Memory for tests.
package memtest

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/wnxd/microhook/process"
)

var (
	ErrUnmapped  = errors.New("memory unmapped")
	ErrProtected = errors.New("memory protected")
	ErrRefused   = errors.New("protection change refused")
)

type ProtectCall struct {
	Addr, Size uint64
	Prot       process.MemProt
}

// Memory keeps one byte slice and one protection per page.
type Memory struct {
	arch     process.Arch
	pageSize uint64

	mu       sync.Mutex
	pages    map[uint64][]byte
	prots    map[uint64]process.MemProt
	protects []ProtectCall
	flushes  int
	brk      uint64

	// Refuse makes every MemProtect call fail.
	Refuse bool
}

func New(arch process.Arch, pageSize uint64) *Memory {
	if pageSize == 0 {
		pageSize = process.DefaultPageSize
	}
	return &Memory{
		arch:     arch,
		pageSize: pageSize,
		pages:    make(map[uint64][]byte),
		prots:    make(map[uint64]process.MemProt),
	}
}

func (m *Memory) Arch() process.Arch {
	return m.arch
}

func (m *Memory) PageSize() uint64 {
	return m.pageSize
}

// Map backs [addr, addr+size) with zeroed pages.
func (m *Memory) Map(addr, size uint64, prot process.MemProt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for page := process.AlignDown(addr, m.pageSize); page < addr+size; page += m.pageSize {
		if _, ok := m.pages[page]; !ok {
			m.pages[page] = make([]byte, m.pageSize)
		}
		m.prots[page] = prot
	}
}

// Alloc maps a fresh read-write region above every existing mapping.
func (m *Memory) Alloc(size uint64) uint64 {
	m.mu.Lock()
	if m.brk == 0 {
		m.brk = 0x40000000
	}
	addr := m.brk
	m.brk += process.Align(max(size, 1), m.pageSize)
	m.mu.Unlock()
	m.Map(addr, size, process.MEM_PROT_READ|process.MEM_PROT_WRITE)
	return addr
}

func (m *Memory) MemProtect(addr, size uint64, prot process.MemProt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protects = append(m.protects, ProtectCall{addr, size, prot})
	if m.Refuse {
		return ErrRefused
	}
	if addr%m.pageSize != 0 {
		return fmt.Errorf("%w: %08X not page aligned", process.ErrArgumentInvalid, addr)
	}
	for page := addr; page < addr+size; page += m.pageSize {
		if _, ok := m.pages[page]; !ok {
			return fmt.Errorf("%w: %08X", ErrUnmapped, page)
		}
	}
	for page := addr; page < addr+size; page += m.pageSize {
		m.prots[page] = prot
	}
	return nil
}

func (m *Memory) MemRead(addr, size uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := make([]byte, 0, size)
	err := m.each(addr, size, process.MEM_PROT_READ, func(page []byte, off, n uint64) {
		data = append(data, page[off:off+n]...)
	})
	return data, err
}

func (m *Memory) MemWrite(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var done uint64
	return m.each(addr, uint64(len(data)), process.MEM_PROT_WRITE, func(page []byte, off, n uint64) {
		copy(page[off:off+n], data[done:])
		done += n
	})
}

// Peek reads memory ignoring page protection.
func (m *Memory) Peek(addr, size uint64) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := make([]byte, 0, size)
	m.each(addr, size, process.MEM_PROT_NONE, func(page []byte, off, n uint64) {
		data = append(data, page[off:off+n]...)
	})
	return data
}

// Poke writes memory ignoring page protection.
func (m *Memory) Poke(addr uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var done uint64
	m.each(addr, uint64(len(data)), process.MEM_PROT_NONE, func(page []byte, off, n uint64) {
		copy(page[off:off+n], data[done:])
		done += n
	})
}

func (m *Memory) Prot(addr uint64) process.MemProt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prots[process.AlignDown(addr, m.pageSize)]
}

func (m *Memory) ProtectCalls() []ProtectCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.protects)
}

func (m *Memory) FlushCache(addr, size uint64) error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func (m *Memory) Regions() []process.MemRegion {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regions []process.MemRegion
	for _, page := range slices.Sorted(maps.Keys(m.pages)) {
		prot := m.prots[page]
		if n := len(regions); n > 0 && regions[n-1].End() == page && regions[n-1].Prot == prot {
			regions[n-1].Size += m.pageSize
			continue
		}
		regions = append(regions, process.MemRegion{Addr: page, Size: m.pageSize, Prot: prot})
	}
	return regions
}

func (m *Memory) each(addr, size uint64, need process.MemProt, fn func(page []byte, off, n uint64)) error {
	if addr == 0 {
		return process.ErrAddressInvalid
	}
	for size > 0 {
		base := process.AlignDown(addr, m.pageSize)
		page, ok := m.pages[base]
		if !ok {
			return fmt.Errorf("%w: %08X", ErrUnmapped, addr)
		} else if m.prots[base]&need != need {
			return fmt.Errorf("%w: %08X is %s", ErrProtected, addr, m.prots[base])
		}
		off := addr - base
		n := min(size, m.pageSize-off)
		fn(page, off, n)
		addr += n
		size -= n
	}
	return nil
}
