package encoding

import (
	"errors"
	"io"

	"github.com/wnxd/microhook/process"
)

var (
	ErrValueInvalid = errors.New("value invalid")
	ErrShortBuffer  = io.ErrUnexpectedEOF
)

// Stream is a cursor over the target's memory. BlockSize is the target
// pointer width.
type Stream interface {
	BlockSize() int
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

type pointerStream struct {
	ptr  process.Pointer
	size int
}

func PointerStream(ptr process.Pointer, size int) Stream {
	return &pointerStream{ptr, size}
}

func (ps *pointerStream) BlockSize() int {
	return ps.size
}

func (ps *pointerStream) Skip(n int) error {
	ps.ptr = ps.ptr.Add(uint64(n))
	return nil
}

func (ps *pointerStream) Read(b []byte) (int, error) {
	n, err := ps.ptr.ReadAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) Write(b []byte) (int, error) {
	n, err := ps.ptr.WriteAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}
