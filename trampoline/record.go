package trampoline

import (
	"bytes"

	"github.com/wnxd/microhook/backup"
	"github.com/wnxd/microhook/encoding"
	"github.com/wnxd/microhook/process"
)

const dirtyWords = 64

// MaxBackupSize is the largest backup the dirty bitmap of a record covers.
const MaxBackupSize = dirtyWords * 32 * backup.PageSize

// BackupRecord is the backup descriptor the target hands to initialize_backup.
type BackupRecord struct {
	Type         uint32
	AddressBytes uint32
	Size         uint32
	Data         uintptr
	FooterSize   uint32
	DirtyPages   [dirtyWords]uint32
	FilePath     [1024]byte
}

func (r *BackupRecord) Path() string {
	if i := bytes.IndexByte(r.FilePath[:], 0); i != -1 {
		return string(r.FilePath[:i])
	}
	return string(r.FilePath[:])
}

// SetPath stores path NUL terminated, truncating it to fit.
func (r *BackupRecord) SetPath(path string) {
	clear(r.FilePath[:])
	copy(r.FilePath[:len(r.FilePath)-1], path)
}

func ReadBackupRecord(ptr process.Pointer) (*BackupRecord, error) {
	record := new(BackupRecord)
	err := encoding.Decode(encoding.PointerStream(ptr, int(ptr.Memory().Arch().PointerSize())), record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func WriteBackupRecord(ptr process.Pointer, record *BackupRecord) error {
	return encoding.Encode(encoding.PointerStream(ptr, int(ptr.Memory().Arch().PointerSize())), record)
}
