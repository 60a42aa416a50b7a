package process

import (
	"encoding/binary"
	"slices"
)

type Pointer struct {
	mem  Memory
	addr uint64
}

func ToPointer(mem Memory, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Memory() Memory {
	return p.mem
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	if p.IsNil() {
		return nil, ErrAddressInvalid
	}
	return p.mem.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	if p.IsNil() {
		return ErrAddressInvalid
	}
	return p.mem.MemWrite(p.addr, data)
}

func (p Pointer) MemReadUint32() (uint32, error) {
	b, err := p.MemRead(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (p Pointer) MemWriteUint32(v uint32) error {
	return p.MemWrite(binary.LittleEndian.AppendUint32(nil, v))
}

// MemReadString reads a NUL terminated string of at most limit bytes.
func (p Pointer) MemReadString(limit int) (string, error) {
	var data []byte
	const chunk = 0x10
	for begin := p.addr; len(data) < limit; begin += chunk {
		buf, err := p.mem.MemRead(begin, chunk)
		if err != nil {
			return "", err
		}
		i := slices.Index(buf, 0)
		if i == -1 {
			data = append(data, buf...)
		} else {
			data = append(data, buf[:i]...)
			break
		}
	}
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data), nil
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.mem.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	err = p.mem.MemWrite(p.addr+uint64(off), b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
