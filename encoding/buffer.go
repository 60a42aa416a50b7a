package encoding

type Buffer struct {
	size int
	data []byte
	off  int
}

func NewBuffer(blockSize int, data []byte) *Buffer {
	return &Buffer{size: blockSize, data: data}
}

func (buf *Buffer) BlockSize() int {
	return buf.size
}

func (buf *Buffer) Bytes() []byte {
	return buf.data
}

func (buf *Buffer) Skip(n int) error {
	buf.grow(n)
	buf.off += n
	return nil
}

func (buf *Buffer) Read(b []byte) (int, error) {
	if buf.off+len(b) > len(buf.data) {
		return 0, ErrShortBuffer
	}
	n := copy(b, buf.data[buf.off:])
	buf.off += n
	return n, nil
}

func (buf *Buffer) Write(b []byte) (int, error) {
	buf.grow(len(b))
	n := copy(buf.data[buf.off:], b)
	buf.off += n
	return n, nil
}

func (buf *Buffer) grow(n int) {
	if end := buf.off + n; end > len(buf.data) {
		buf.data = append(buf.data, make([]byte, end-len(buf.data))...)
	}
}
