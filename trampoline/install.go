package trampoline

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/internal/logger"
	"github.com/wnxd/microhook/patch"
	"github.com/wnxd/microhook/state"
)

// Installer patches the target once per lifecycle. A failed hook is logged
// and skipped; the others stay installed.
type Installer struct {
	Dispatcher *Dispatcher

	mu        sync.Mutex
	records   []*patch.Record
	installed bool
}

// Install selects the state directory and branches every function named in
// trampolines to its trampoline address.
func (in *Installer) Install(dir string, trampolines map[string]uint64) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.installed {
		return ErrAlreadyInstalled
	}
	d := in.Dispatcher
	lg := logger.OrDiscard(d.Logger)
	d.Redirector.SetDirectory(dir)
	lg.Info("Installing hooks", log.String("mode", d.Redirector.Mode().String()), log.String("dir", dir))
	in.makeStateDir()

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(trampolines)) {
		if d.Calls(name) {
			err := fmt.Errorf("%w: %s is called by the %s mode dispatcher", ErrEntryHooked, name, d.Redirector.Mode())
			lg.Warn("Hook refused", log.String("name", name), log.Err(err))
			errs = append(errs, err)
			continue
		}
		addr, err := d.function(name)
		if err != nil {
			lg.Error("Hook skipped", log.String("name", name), log.Err(err))
			errs = append(errs, err)
			continue
		}
		record, err := d.Patcher.Install(addr, trampolines[name])
		if err != nil {
			lg.Error("Hook skipped", log.String("name", name), log.Err(err))
			errs = append(errs, err)
			continue
		}
		lg.Debug("Hook installed",
			log.String("name", name),
			log.String("target", logger.Hex(record.Target)),
			log.String("trampoline", logger.Hex(record.Trampoline)),
		)
		in.records = append(in.records, record)
	}
	in.installed = true
	return errors.Join(errs...)
}

// makeStateDir creates the state directory ahead of the first save the
// target writes into it.
func (in *Installer) makeStateDir() {
	d := in.Dispatcher
	if d.Redirector.Mode() != state.PathMode || d.Loader == nil {
		return
	}
	dirFS, ok := d.Loader.FS.(filesystem.DirFS)
	if !ok {
		return
	}
	if _, err := dirFS.Mkdir(d.Redirector.Directory(), 0o755); err != nil {
		logger.OrDiscard(d.Logger).Warn("State directory unavailable",
			log.String("dir", d.Redirector.Directory()),
			log.Err(err),
		)
	}
}

func (in *Installer) Installed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.installed
}

func (in *Installer) Records() []*patch.Record {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.records)
}

// Uninstall restores the original code of every hook.
func (in *Installer) Uninstall() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	var errs []error
	for i := len(in.records) - 1; i >= 0; i-- {
		errs = append(errs, in.records[i].Close())
	}
	in.records = nil
	in.installed = false
	return errors.Join(errs...)
}
