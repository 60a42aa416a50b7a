package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
)

// MaxSlot is the highest save slot, inclusive.
const MaxSlot = 20

var ErrSlotInvalid = errors.New("slot invalid")

type Mode int

const (
	IndexMode Mode = iota
	PathMode
)

func (m Mode) String() string {
	if m == PathMode {
		return "path"
	}
	return "index"
}

// Redirector chooses between the target's own slot storage and state files
// in a directory. It starts in IndexMode and moves to PathMode once, when a
// directory is set.
type Redirector struct {
	dir atomic.Pointer[string]
}

func NewRedirector(dir string) *Redirector {
	r := new(Redirector)
	r.SetDirectory(dir)
	return r
}

// SetDirectory switches to PathMode for a non-empty dir. An empty dir
// changes nothing.
func (r *Redirector) SetDirectory(dir string) {
	if dir != "" {
		r.dir.Store(&dir)
	}
}

func (r *Redirector) Mode() Mode {
	if r.dir.Load() == nil {
		return IndexMode
	}
	return PathMode
}

func (r *Redirector) Directory() string {
	if dir := r.dir.Load(); dir != nil {
		return *dir
	}
	return ""
}

func CheckSlot(slot int) error {
	if slot < 0 || slot > MaxSlot {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrSlotInvalid, slot, MaxSlot)
	}
	return nil
}

// StateFile is the file name of a state of name in slot.
func StateFile(name string, slot int) string {
	return fmt.Sprintf("%s_%d.dss", name, slot)
}

func (r *Redirector) StatePath(name string, slot int) string {
	return filepath.Join(r.Directory(), StateFile(name, slot))
}

func (r *Redirector) BackupPath(name string) string {
	return filepath.Join(r.Directory(), name+".dsv")
}
