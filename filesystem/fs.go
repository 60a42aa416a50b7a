package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

type FileFlag int

const (
	O_RDONLY = FileFlag(os.O_RDONLY)
	O_WRONLY = FileFlag(os.O_WRONLY)
	O_RDWR   = FileFlag(os.O_RDWR)
	O_APPEND = FileFlag(os.O_APPEND)
	O_CREATE = FileFlag(os.O_CREATE)
	O_EXCL   = FileFlag(os.O_EXCL)
	O_SYNC   = FileFlag(os.O_SYNC)
	O_TRUNC  = FileFlag(os.O_TRUNC)
)

var ErrNotRandomAccess = errors.New("file not random access")

type FS interface {
	fs.FS
	OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error)
}

type DirFS interface {
	FS
	Stat(name string) (fs.FileInfo, error)
	Mkdir(name string, perm fs.FileMode) (DirFS, error)
}

func Open(f FS, name string) (fs.File, error) {
	file, err := f.OpenFile(name, O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file.(fs.File), nil
}

// OpenRandom opens name and requires the result to support ReadAt and WriteAt.
func OpenRandom(f FS, name string, flag FileFlag, perm fs.FileMode) (RandomAccessFile, error) {
	file, err := f.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	rf, ok := file.(RandomAccessFile)
	if !ok {
		file.Close()
		return nil, ErrNotRandomAccess
	}
	return rf, nil
}

func WriteFile(f FS, name string, data []byte, perm fs.FileMode) error {
	file, err := f.OpenFile(name, O_WRONLY|O_CREATE|O_TRUNC, perm)
	if err != nil {
		return err
	}
	w, ok := file.(io.Writer)
	if !ok {
		file.Close()
		return fs.ErrPermission
	}
	_, err = w.Write(data)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
