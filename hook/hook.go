// Package hook wires the microhook pieces into the running target process.
package hook

import (
	"errors"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/backup"
	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/internal/config"
	"github.com/wnxd/microhook/internal/host"
	"github.com/wnxd/microhook/internal/logger"
	"github.com/wnxd/microhook/patch"
	_ "github.com/wnxd/microhook/patch/arm"
	_ "github.com/wnxd/microhook/patch/arm64"
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/state"
	"github.com/wnxd/microhook/symbols"
	_ "github.com/wnxd/microhook/symbols/arm"
	_ "github.com/wnxd/microhook/symbols/arm64"
	"github.com/wnxd/microhook/trampoline"
)

type Hook struct {
	cfg        config.Config
	logger     *log.Logger
	table      *symbols.Table
	patcher    *patch.Patcher
	dispatcher *trampoline.Dispatcher
	installer  *trampoline.Installer
}

// Open reads the MICROHOOK_* environment and prepares the hooks for the
// build of the target running in this process.
func Open() (*Hook, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	mem, err := host.NewMemory()
	if err != nil {
		return nil, err
	}
	return New(cfg, mem, nil)
}

// New prepares the hooks against mem. A nil target calls through the host
// C ABI.
func New(cfg config.Config, mem process.Memory, target trampoline.Target) (*Hook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lg := logger.New(cfg.Debug)
	table, err := symbols.New(mem.Arch(), cfg.Build)
	if err != nil {
		return nil, err
	}
	patcher, err := patch.New(mem, patch.WithPageSize(uint64(cfg.PageSize)))
	if err != nil {
		return nil, err
	}
	if target == nil {
		target = trampoline.NewTarget(table, host.Invoker())
	}
	d := &trampoline.Dispatcher{
		Table:      table,
		Target:     target,
		Memory:     mem,
		Patcher:    patcher,
		Redirector: state.NewRedirector(""),
		Loader:     &backup.Loader{FS: filesystem.SysDirFS(""), Logger: lg},
		Logger:     lg,
	}
	lg.Debug("Address table resolved",
		log.String("arch", table.Arch().String()),
		log.String("build", table.Build()),
		log.Int("page_size", int(patcher.Unlocker().PageSize())),
	)
	return &Hook{
		cfg:        cfg,
		logger:     lg,
		table:      table,
		patcher:    patcher,
		dispatcher: d,
		installer:  &trampoline.Installer{Dispatcher: d},
	}, nil
}

func (h *Hook) Table() *symbols.Table {
	return h.table
}

func (h *Hook) Dispatcher() *trampoline.Dispatcher {
	return h.dispatcher
}

// Install branches the target functions to trampolines in this process and
// applies the configured fast forward multiplier. A trampoline the host
// cannot create costs only its own hook.
func (h *Hook) Install() error {
	if h.installer.Installed() {
		return trampoline.ErrAlreadyInstalled
	}
	h.dispatcher.Redirector.SetDirectory(h.cfg.StateDir)
	trampolines, err := host.NewExports(h.dispatcher).Trampolines()
	if err != nil {
		h.logger.Warn("Trampolines unavailable", log.Err(err))
	}
	return errors.Join(err, h.InstallAt(trampolines))
}

// InstallAt is Install with caller supplied trampoline addresses.
func (h *Hook) InstallAt(trampolines map[string]uint64) error {
	err := h.installer.Install(h.cfg.StateDir, trampolines)
	if errors.Is(err, trampoline.ErrAlreadyInstalled) {
		return err
	}
	if ferr := h.dispatcher.SetFastForward(uint8(h.cfg.FastForward)); ferr != nil {
		h.logger.Warn("Fast forward not applied", log.Err(ferr))
		err = errors.Join(err, ferr)
	}
	return err
}

// Close restores the original code of every hook.
func (h *Hook) Close() error {
	return h.installer.Uninstall()
}
