package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

type sysDirFS string

// SysDirFS exposes the host directory dir. An empty dir resolves names
// as given, so absolute paths handed over by the target work unchanged.
func SysDirFS(dir string) DirFS {
	return sysDirFS(dir)
}

func (d sysDirFS) Open(name string) (fs.File, error) {
	return Open(d, name)
}

func (d sysDirFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(d.join(name))
}

func (d sysDirFS) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	file, err := os.OpenFile(d.join(name), int(flag), perm)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (d sysDirFS) Mkdir(name string, perm fs.FileMode) (DirFS, error) {
	pathname := d.join(name)
	err := os.MkdirAll(pathname, perm)
	if err != nil {
		return nil, err
	}
	return SysDirFS(pathname), nil
}

func (d sysDirFS) join(name string) string {
	if d == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(string(d), name)
}
