package trampoline

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/backup"
	"github.com/wnxd/microhook/internal/logger"
	"github.com/wnxd/microhook/patch"
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/state"
	"github.com/wnxd/microhook/symbols"
)

// SnapshotSize is one 256x192 RGB555 screen.
const SnapshotSize = 256 * 192 * 2

const (
	screenTop    = 0
	screenBottom = 1

	maxPath = 1024
)

// Dispatcher runs in place of the patched functions of the target binary.
// Every call allocates its own scratch memory, so a Dispatcher may be entered
// from whichever thread the target happens to run on.
type Dispatcher struct {
	Table      *symbols.Table
	Target     Target
	Memory     process.Memory
	Patcher    *patch.Patcher
	Redirector *state.Redirector
	Loader     *backup.Loader
	Logger     *log.Logger
}

func (d *Dispatcher) logger() *log.Logger {
	return logger.OrDiscard(d.Logger)
}

func (d *Dispatcher) function(name string) (uint64, error) {
	addr, err := d.Table.Function(name)
	if err != nil {
		return 0, &UnresolvedError{Name: name, Err: err}
	}
	return addr, nil
}

func (d *Dispatcher) variable(name string) (uint64, error) {
	addr, err := d.Table.Variable(name)
	if err != nil {
		return 0, &UnresolvedError{Name: name, Err: err}
	}
	return addr, nil
}

// call runs name in the target unless its entry point branches back into
// a trampoline.
func (d *Dispatcher) call(name string, args ...uint64) (uint64, error) {
	if addr, err := d.Table.Function(name); err == nil && d.Patcher != nil && d.Patcher.Patched(addr) {
		return 0, fmt.Errorf("%w: %s", ErrEntryHooked, name)
	}
	return d.Target.Call(name, args...)
}

// Calls reports whether the dispatcher calls name in the current mode. Such
// an entry point must keep its original code.
func (d *Dispatcher) Calls(name string) bool {
	switch name {
	case symbols.Malloc, symbols.Free, symbols.ScreenCopy16, symbols.SaveState, symbols.LoadState, symbols.Quit:
		return true
	case symbols.SaveStateIndex, symbols.LoadStateIndex:
		return d.Redirector.Mode() == state.IndexMode
	}
	return false
}

// GamecardName reads the game title the target keeps for the loaded cartridge.
func (d *Dispatcher) GamecardName() (string, error) {
	addr, err := d.variable(symbols.GamecardName)
	if err != nil {
		return "", err
	}
	limit := 0x10
	if entry, ok := d.Table.Lookup(symbols.GamecardName); ok && entry.Size != 0 {
		limit = int(entry.Size)
	}
	return process.ToPointer(d.Memory, addr).MemReadString(limit)
}

// SaveStateIndex captures both screens and saves the state of slot.
func (d *Dispatcher) SaveStateIndex(slot int) error {
	if err := state.CheckSlot(slot); err != nil {
		return err
	}
	if _, err := d.function(symbols.ScreenCopy16); err != nil {
		return err
	}
	system, err := d.variable(symbols.System)
	if err != nil {
		return err
	}
	scratch := d.scratch()
	defer scratch.release()

	top, err := scratch.alloc(SnapshotSize)
	if err != nil {
		return err
	}
	bottom, err := scratch.alloc(SnapshotSize)
	if err != nil {
		return err
	}
	if _, err = d.call(symbols.ScreenCopy16, top, screenTop); err != nil {
		return fmt.Errorf("%w: top: %w", ErrScreenCapture, err)
	}
	if _, err = d.call(symbols.ScreenCopy16, bottom, screenBottom); err != nil {
		return fmt.Errorf("%w: bottom: %w", ErrScreenCapture, err)
	}

	if d.Redirector.Mode() == state.IndexMode {
		_, err = d.call(symbols.SaveStateIndex, system, uint64(slot), top, bottom)
		return err
	}
	name, err := d.GamecardName()
	if err != nil {
		return err
	}
	dir, err := scratch.cstring(d.Redirector.Directory())
	if err != nil {
		return err
	}
	file, err := scratch.cstring(state.StateFile(name, slot))
	if err != nil {
		return err
	}
	d.logger().Debug("Saving state", log.String("path", d.Redirector.StatePath(name, slot)))
	if _, err = d.call(symbols.SaveState, system, dir, file, top, bottom); err != nil {
		return err
	}
	d.setSlot(slot)
	return nil
}

// LoadStateIndex loads the state of slot.
func (d *Dispatcher) LoadStateIndex(slot int) error {
	if err := state.CheckSlot(slot); err != nil {
		return err
	}
	system, err := d.variable(symbols.System)
	if err != nil {
		return err
	}
	if d.Redirector.Mode() == state.IndexMode {
		_, err = d.call(symbols.LoadStateIndex, system, uint64(slot), 0, 0, 0)
		return err
	}
	name, err := d.GamecardName()
	if err != nil {
		return err
	}
	scratch := d.scratch()
	defer scratch.release()
	path, err := scratch.cstring(d.Redirector.StatePath(name, slot))
	if err != nil {
		return err
	}
	d.logger().Debug("Loading state", log.String("path", d.Redirector.StatePath(name, slot)))
	if _, err = d.call(symbols.LoadState, system, path, 0, 0, 0); err != nil {
		return err
	}
	d.setSlot(slot)
	return nil
}

// setSlot records slot as the current one, which the index functions of the
// target do on their own.
func (d *Dispatcher) setSlot(slot int) {
	addr, err := d.variable(symbols.SavestateNum)
	if err == nil {
		err = process.ToPointer(d.Memory, addr).MemWriteUint32(uint32(slot))
	}
	if err != nil {
		d.logger().Warn("Current slot not recorded", log.Int("slot", slot), log.Err(err))
	}
}

func (d *Dispatcher) Quit() error {
	if _, err := d.function(symbols.Quit); err != nil {
		return err
	}
	system, err := d.variable(symbols.System)
	if err != nil {
		return err
	}
	_, err = d.call(symbols.Quit, system)
	return err
}

// SetFastForward rewrites the immediate of the instruction that loads the
// fast forward multiplier.
func (d *Dispatcher) SetFastForward(multiplier uint8) error {
	addr, err := d.variable(symbols.FastForward)
	if err != nil {
		return err
	}
	entry, _ := d.Table.Lookup(symbols.FastForward)
	word := d.Patcher.Encoder().MoveImm(entry.Opcode, multiplier)
	if err = d.Patcher.WriteWord(addr, word); err != nil {
		return err
	}
	d.logger().Debug("Fast forward set", log.Int("multiplier", int(multiplier)), log.String("addr", logger.Hex(addr)))
	return nil
}

// InitializeBackup loads the backup file into data and fills the record
// the target passed in. Failures are logged; the target always gets a
// usable, possibly erased, backup.
func (d *Dispatcher) InitializeBackup(record, typ, data, size, path uint64) {
	if err := d.initializeBackup(record, typ, data, size, path); err != nil {
		d.logger().Error("Backup initialization failed",
			log.String("record", logger.Hex(record)),
			log.Int("size", int(size)),
			log.Err(err),
		)
	}
}

func (d *Dispatcher) initializeBackup(record, typ, data, size, path uint64) error {
	if record == 0 || (data == 0 && size != 0) {
		return process.ErrArgumentInvalid
	} else if size > MaxBackupSize {
		return fmt.Errorf("%w: %#x over %#x", ErrBackupTooLarge, size, MaxBackupSize)
	}
	recordPtr := process.ToPointer(d.Memory, record)
	rec, err := ReadBackupRecord(recordPtr)
	if err != nil {
		return err
	}

	var filePath string
	if path != 0 {
		if filePath, err = process.ToPointer(d.Memory, path).MemReadString(maxPath - 1); err != nil {
			return err
		}
	}
	if filePath != "" && d.Redirector.Mode() == state.PathMode {
		if name, err := d.GamecardName(); err == nil && name != "" {
			filePath = d.Redirector.BackupPath(name)
		}
	}

	img := backup.NewImage(backup.Type(typ), uint32(size), filePath)
	d.Loader.Load(img)
	if size != 0 {
		if err = d.Memory.MemWrite(data, img.Data[:size]); err != nil {
			return err
		}
	}

	rec.Type = uint32(img.Type)
	rec.AddressBytes = img.AddressBytes
	rec.Size = img.Size
	rec.Data = uintptr(data)
	rec.FooterSize = backup.FooterSize
	img.Dirty.CopyTo(rec.DirtyPages[:])
	rec.SetPath("")
	if img.HasFile {
		rec.SetPath(img.FilePath)
	}
	d.logger().Info("Backup initialized",
		log.String("type", img.Type.String()),
		log.Int("size", int(img.Size)),
		log.Int("dirty", img.Dirty.Dirty()),
		log.String("path", img.FilePath),
	)
	return WriteBackupRecord(recordPtr, rec)
}
