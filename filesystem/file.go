package filesystem

import (
	"io"
	"io/fs"
)

type File interface {
	Close() error
	Stat() (fs.FileInfo, error)
}

type RandomAccessFile interface {
	File
	io.ReaderAt
	io.WriterAt
}
