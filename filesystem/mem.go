package filesystem

import (
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// memFS serves names rooted at "/" so that fs.FS style relative names and
// the absolute paths the target hands over reach the same file.
type memFS struct {
	fs afero.Fs
}

// NewMemFS returns an empty in-memory file system.
func NewMemFS() DirFS {
	return memFS{afero.NewMemMapFs()}
}

func (m memFS) Open(name string) (fs.File, error) {
	return m.fs.Open(m.key(name))
}

func (m memFS) Stat(name string) (fs.FileInfo, error) {
	return m.fs.Stat(m.key(name))
}

func (m memFS) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	file, err := m.fs.OpenFile(m.key(name), int(flag), perm)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (m memFS) Mkdir(name string, perm fs.FileMode) (DirFS, error) {
	dir := m.key(name)
	if err := m.fs.MkdirAll(dir, perm); err != nil {
		return nil, err
	}
	return memFS{afero.NewBasePathFs(m.fs, dir)}, nil
}

func (m memFS) key(name string) string {
	return path.Join("/", name)
}
