package host

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/internal/logger"
	"github.com/wnxd/microhook/symbols"
	"github.com/wnxd/microhook/trampoline"
)

// failure is -1, the error result the target expects from these functions.
const failure = ^uintptr(0)

// Invoker calls into the target through the platform C ABI.
func Invoker() trampoline.Invoker {
	return trampoline.InvokerFunc(invoke)
}

// Exports turns Dispatcher methods into C callable trampolines. A trampoline
// never lets an error or a panic escape into the target.
type Exports struct {
	d      *trampoline.Dispatcher
	logger *log.Logger
}

func NewExports(d *trampoline.Dispatcher) *Exports {
	return &Exports{d: d, logger: logger.OrDiscard(d.Logger)}
}

// Trampolines maps each hookable function to the address of its
// trampoline. Functions the dispatcher calls in its current mode are left
// out. A callback that cannot be created is reported and skipped.
func (e *Exports) Trampolines() (map[string]uint64, error) {
	callbacks := map[string]any{
		symbols.SaveStateIndex:   e.saveStateIndex,
		symbols.LoadStateIndex:   e.loadStateIndex,
		symbols.InitializeBackup: e.initializeBackup,
	}
	trampolines := make(map[string]uint64, len(callbacks))
	var errs []error
	for name, fn := range callbacks {
		if e.d.Calls(name) {
			continue
		}
		addr, err := newCallback(fn)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		trampolines[name] = addr
	}
	return trampolines, errors.Join(errs...)
}

func (e *Exports) saveStateIndex(system, index, top, bottom uintptr) uintptr {
	return e.guard(symbols.SaveStateIndex, func() error {
		return e.d.SaveStateIndex(int(int32(index)))
	})
}

func (e *Exports) loadStateIndex(system, index, top, bottom, snapshotOnly uintptr) uintptr {
	return e.guard(symbols.LoadStateIndex, func() error {
		return e.d.LoadStateIndex(int(int32(index)))
	})
}

func (e *Exports) initializeBackup(backup, typ, data, size, path uintptr) uintptr {
	return e.guard(symbols.InitializeBackup, func() error {
		e.d.InitializeBackup(uint64(backup), uint64(typ), uint64(data), uint64(size), uint64(path))
		return nil
	})
}

func (e *Exports) guard(name string, fn func() error) (ret uintptr) {
	defer func() {
		if v := recover(); v != nil {
			e.logger.Error("Trampoline panicked", log.String("name", name), log.String("panic", fmt.Sprint(v)))
			ret = failure
		}
	}()
	if err := fn(); err != nil {
		e.logger.Error("Trampoline failed", log.String("name", name), log.Err(err))
		return failure
	}
	return 0
}
