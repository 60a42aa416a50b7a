package trampoline_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/backup"
	"github.com/wnxd/microhook/encoding"
	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/patch"
	_ "github.com/wnxd/microhook/patch/arm"
	_ "github.com/wnxd/microhook/patch/arm64"
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/process/memtest"
	"github.com/wnxd/microhook/state"
	"github.com/wnxd/microhook/symbols"
	_ "github.com/wnxd/microhook/symbols/arm"
	_ "github.com/wnxd/microhook/symbols/arm64"
	"github.com/wnxd/microhook/trampoline"
)

const (
	codeProt = process.MEM_PROT_READ | process.MEM_PROT_EXEC
	dataProt = process.MEM_PROT_READ | process.MEM_PROT_WRITE

	stateDir = "/mnt/SDCARD/.drastic/savestates"
)

type call struct {
	name string
	args []uint64
}

// fakeBinary stands in for the target: it records every call that reaches
// original code and serves malloc from the fake memory. Once follow is
// called, an entry point holding an installed branch runs its trampoline.
type fakeBinary struct {
	mem   *memtest.Memory
	names map[uint64]string
	calls []call
	fail  map[string]error

	patcher     *patch.Patcher
	trampolines map[uint64]func(args ...uint64) uint64
	depth       int
	maxDepth    int
}

func (f *fakeBinary) follow(p *patch.Patcher, trampolines map[uint64]func(args ...uint64) uint64) {
	f.patcher, f.trampolines = p, trampolines
}

func (f *fakeBinary) Invoke(addr uint64, args ...uint64) (uint64, error) {
	if f.patcher != nil {
		for _, r := range f.patcher.Records() {
			if r.Target != addr || !r.Patched() {
				continue
			}
			fn, ok := f.trampolines[r.Trampoline]
			if !ok || f.depth == 8 {
				return 0, fmt.Errorf("runaway branch at %#x", addr)
			}
			f.depth++
			f.maxDepth = max(f.maxDepth, f.depth)
			defer func() { f.depth-- }()
			return fn(args...), nil
		}
	}
	name := f.names[addr]
	f.calls = append(f.calls, call{name, slices.Clone(args)})
	if err := f.fail[name]; err != nil {
		return 0, err
	}
	if name == symbols.Malloc {
		return f.mem.Alloc(args[0]), nil
	}
	return 0, nil
}

func (f *fakeBinary) called() []string {
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.name
	}
	return names
}

func (f *fakeBinary) find(name string) []call {
	var calls []call
	for _, c := range f.calls {
		if c.name == name {
			calls = append(calls, c)
		}
	}
	return calls
}

func loadTable(t *testing.T, arch process.Arch, without ...string) *symbols.Table {
	t.Helper()
	table, err := symbols.New(arch, "")
	if err != nil {
		t.Fatal(err)
	}
	entries := slices.DeleteFunc(table.Entries(), func(e symbols.Entry) bool {
		return slices.Contains(without, e.Name)
	})
	return symbols.NewTable(arch, table.Build(), entries)
}

func newDispatcher(t *testing.T, table *symbols.Table, dir string) (*trampoline.Dispatcher, *fakeBinary) {
	t.Helper()
	mem := memtest.New(table.Arch(), 0)
	fake := &fakeBinary{mem: mem, names: make(map[uint64]string), fail: make(map[string]error)}
	for _, e := range table.Entries() {
		switch {
		case e.Kind == symbols.KindFunction:
			fake.names[e.Addr] = e.Name
			mem.Map(e.Addr, 16, codeProt)
		case e.Name == symbols.GamecardName:
			mem.Map(e.Addr, e.Size, dataProt)
			mem.Poke(e.Addr, []byte("FOO\x00"))
		case e.Name == symbols.SavestateNum:
			mem.Map(e.Addr, e.Size, dataProt)
		case e.Name == symbols.FastForward:
			mem.Map(e.Addr, 4, codeProt)
			mem.Poke(e.Addr, binary.LittleEndian.AppendUint32(nil, e.Opcode))
		}
	}
	p, err := patch.New(mem)
	if err != nil {
		t.Fatal(err)
	}
	return &trampoline.Dispatcher{
		Table:      table,
		Target:     trampoline.NewTarget(table, fake),
		Memory:     mem,
		Patcher:    p,
		Redirector: state.NewRedirector(dir),
		Loader:     &backup.Loader{FS: filesystem.NewMemFS()},
	}, fake
}

func cstr(t *testing.T, mem process.Memory, addr uint64) string {
	t.Helper()
	s, err := process.ToPointer(mem, addr).MemReadString(1024)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInvalidSlot(t *testing.T) {
	d, fake := newDispatcher(t, loadTable(t, process.ARCH_ARM), stateDir)
	for _, slot := range []int{-1, state.MaxSlot + 1, 32} {
		if err := d.SaveStateIndex(slot); !errors.Is(err, state.ErrSlotInvalid) {
			t.Errorf("SaveStateIndex(%d): got %v", slot, err)
		}
		if err := d.LoadStateIndex(slot); !errors.Is(err, state.ErrSlotInvalid) {
			t.Errorf("LoadStateIndex(%d): got %v", slot, err)
		}
	}
	if len(fake.calls) != 0 || len(d.Memory.(*memtest.Memory).ProtectCalls()) != 0 {
		t.Errorf("invalid slots reached the target: %v", fake.called())
	}
}

func TestSaveStateIndexMode(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM)
	d, fake := newDispatcher(t, table, "")
	if err := d.SaveStateIndex(3); err != nil {
		t.Fatal(err)
	}
	expect := []string{
		symbols.Malloc, symbols.Malloc,
		symbols.ScreenCopy16, symbols.ScreenCopy16,
		symbols.SaveStateIndex,
		symbols.Free, symbols.Free,
	}
	if !slices.Equal(fake.called(), expect) {
		t.Fatalf("calls: got %v", fake.called())
	}
	if size := fake.calls[0].args[0]; size != trampoline.SnapshotSize {
		t.Errorf("malloc: got %#x", size)
	}
	top, bottom := fake.calls[2].args, fake.calls[3].args
	if top[1] != 0 || bottom[1] != 1 || top[0] == bottom[0] {
		t.Errorf("screen_copy16: got %#x, %#x", top, bottom)
	}
	system := table.MustVariable(symbols.System)
	if args := fake.calls[4].args; !slices.Equal(args, []uint64{system, 3, top[0], bottom[0]}) {
		t.Errorf("save_state_index: got %#x", args)
	}
	if fake.calls[5].args[0] != bottom[0] || fake.calls[6].args[0] != top[0] {
		t.Error("scratch buffers not freed")
	}
}

func TestSaveStatePathMode(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM64)
	d, fake := newDispatcher(t, table, stateDir)
	if err := d.SaveStateIndex(3); err != nil {
		t.Fatal(err)
	}
	saves := fake.find(symbols.SaveState)
	if len(saves) != 1 || len(fake.find(symbols.SaveStateIndex)) != 0 {
		t.Fatalf("calls: got %v", fake.called())
	}
	args := saves[0].args
	if args[0] != table.MustVariable(symbols.System) {
		t.Errorf("system: got %#x", args[0])
	}
	if dir := cstr(t, d.Memory, args[1]); dir != stateDir {
		t.Errorf("dir: got %q", dir)
	}
	if file := cstr(t, d.Memory, args[2]); file != "FOO_3.dss" {
		t.Errorf("file: got %q", file)
	}
	if n := len(fake.find(symbols.Free)); n != len(fake.find(symbols.Malloc)) || n != 4 {
		t.Errorf("free: got %d calls", n)
	}
	if slot := currentSlot(t, d); slot != 3 {
		t.Errorf("savestate_num: got %d", slot)
	}
}

func currentSlot(t *testing.T, d *trampoline.Dispatcher) uint32 {
	t.Helper()
	slot, err := process.ToPointer(d.Memory, d.Table.MustVariable(symbols.SavestateNum)).MemReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	return slot
}

func TestLoadStateIndex(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM)
	system := table.MustVariable(symbols.System)

	d, fake := newDispatcher(t, table, "")
	if err := d.LoadStateIndex(7); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fake.called(), []string{symbols.LoadStateIndex}) ||
		!slices.Equal(fake.calls[0].args, []uint64{system, 7, 0, 0, 0}) {
		t.Errorf("index mode: got %v %#x", fake.called(), fake.calls[0].args)
	}
	if slot := currentSlot(t, d); slot != 0 {
		t.Errorf("index mode wrote savestate_num %d", slot)
	}

	d, fake = newDispatcher(t, table, stateDir)
	if err := d.LoadStateIndex(3); err != nil {
		t.Fatal(err)
	}
	loads := fake.find(symbols.LoadState)
	if len(loads) != 1 {
		t.Fatalf("path mode: got %v", fake.called())
	}
	if path := cstr(t, d.Memory, loads[0].args[1]); path != stateDir+"/FOO_3.dss" {
		t.Errorf("path: got %q", path)
	}
	if args := loads[0].args; args[0] != system || !slices.Equal(args[2:], []uint64{0, 0, 0}) {
		t.Errorf("load_state: got %#x", args)
	}
	if len(fake.find(symbols.Free)) != 1 {
		t.Error("path not freed")
	}
	if slot := currentSlot(t, d); slot != 3 {
		t.Errorf("savestate_num: got %d", slot)
	}
}

func TestScreenCopyUnresolved(t *testing.T) {
	d, fake := newDispatcher(t, loadTable(t, process.ARCH_ARM, symbols.ScreenCopy16), stateDir)
	err := d.SaveStateIndex(3)
	var uerr *trampoline.UnresolvedError
	if !errors.Is(err, trampoline.ErrUnresolvedAddress) || !errors.As(err, &uerr) || uerr.Name != symbols.ScreenCopy16 {
		t.Errorf("SaveStateIndex: got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("calls: got %v", fake.called())
	}
}

func TestScreenCaptureFailed(t *testing.T) {
	d, fake := newDispatcher(t, loadTable(t, process.ARCH_ARM), "")
	fake.fail[symbols.ScreenCopy16] = errors.New("blit")
	if err := d.SaveStateIndex(0); !errors.Is(err, trampoline.ErrScreenCapture) {
		t.Errorf("SaveStateIndex: got %v", err)
	}
	if len(fake.find(symbols.Free)) != 2 || len(fake.find(symbols.SaveStateIndex)) != 0 {
		t.Errorf("calls: got %v", fake.called())
	}
}

func TestQuit(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM64)
	d, fake := newDispatcher(t, table, "")
	if err := d.Quit(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fake.called(), []string{symbols.Quit}) || fake.calls[0].args[0] != table.MustVariable(symbols.System) {
		t.Errorf("calls: got %v", fake.calls)
	}

	d, fake = newDispatcher(t, loadTable(t, process.ARCH_ARM64, symbols.Quit), "")
	if err := d.Quit(); !errors.Is(err, trampoline.ErrUnresolvedAddress) {
		t.Errorf("unresolved Quit: got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("calls: got %v", fake.called())
	}
}

func TestSetFastForward(t *testing.T) {
	tests := []struct {
		arch   process.Arch
		expect uint32
	}{
		{process.ARCH_ARM, 0xE3A03005},
		{process.ARCH_ARM64, 0x528000A3},
	}
	for _, tt := range tests {
		table := loadTable(t, tt.arch)
		d, _ := newDispatcher(t, table, "")
		if err := d.SetFastForward(5); err != nil {
			t.Fatalf("%s: %v", tt.arch, err)
		}
		addr := table.MustVariable(symbols.FastForward)
		word, err := d.Patcher.ReadWord(addr)
		if err != nil || word != tt.expect {
			t.Errorf("%s: got %#08x, %v, expected %#08x", tt.arch, word, err, tt.expect)
		}
		if tt.arch == process.ARCH_ARM && (word&0xFF != 5 || word&^0xFF != 0xE3A03000) {
			t.Errorf("low byte substitution: got %#08x", word)
		}
	}

	d, _ := newDispatcher(t, loadTable(t, process.ARCH_ARM, symbols.FastForward), "")
	if err := d.SetFastForward(5); !errors.Is(err, trampoline.ErrUnresolvedAddress) {
		t.Errorf("unresolved fast_forward: got %v", err)
	}
}

func TestBackupRecordSize(t *testing.T) {
	if n := encoding.Size(4, new(trampoline.BackupRecord)); n != 1300 {
		t.Errorf("ARM record: got %d bytes", n)
	}
	if n := encoding.Size(8, new(trampoline.BackupRecord)); n != 1312 {
		t.Errorf("ARM64 record: got %d bytes", n)
	}
}

func TestInitializeBackup(t *testing.T) {
	const size = 0x2000
	file := bytes.Repeat([]byte{0x12, 0x34}, size/2)

	for _, arch := range []process.Arch{process.ARCH_ARM, process.ARCH_ARM64} {
		t.Run(arch.String(), func(t *testing.T) {
			d, _ := newDispatcher(t, loadTable(t, arch), "")
			fsys := filesystem.NewMemFS()
			if err := filesystem.WriteFile(fsys, "/saves/FOO.dsv", file, 0o644); err != nil {
				t.Fatal(err)
			}
			d.Loader.FS = fsys
			mem := d.Memory.(*memtest.Memory)
			record, data, path := mem.Alloc(0x1000), mem.Alloc(size), mem.Alloc(0x100)
			mem.Poke(path, []byte("/saves/FOO.dsv\x00"))

			d.InitializeBackup(record, uint64(backup.TypeFlash), data, size, path)
			if got := mem.Peek(data, size); !bytes.Equal(got, file) {
				t.Error("data differs from file")
			}
			rec, err := trampoline.ReadBackupRecord(process.ToPointer(mem, record))
			if err != nil {
				t.Fatal(err)
			}
			if rec.Type != uint32(backup.TypeFlash) || rec.AddressBytes != 3 || rec.Size != size || uint64(rec.Data) != data {
				t.Errorf("record: %d %d %#x %#x", rec.Type, rec.AddressBytes, rec.Size, rec.Data)
			}
			if rec.DirtyPages[0] != 0 || rec.Path() != "/saves/FOO.dsv" || rec.FooterSize != backup.FooterSize {
				t.Errorf("record: dirty %#x, path %q", rec.DirtyPages[0], rec.Path())
			}
		})
	}
}

func TestInitializeBackupPathMode(t *testing.T) {
	const size = 0x2000
	d, _ := newDispatcher(t, loadTable(t, process.ARCH_ARM), "/cards")
	mem := d.Memory.(*memtest.Memory)
	record, data, path := mem.Alloc(0x1000), mem.Alloc(size), mem.Alloc(0x100)
	mem.Poke(path, []byte("/roms/foo.dsv\x00"))

	d.InitializeBackup(record, uint64(backup.TypeEEPROM), data, size, path)
	if got := mem.Peek(data, size); !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, size)) {
		t.Error("missing backup not erased")
	}
	rec, err := trampoline.ReadBackupRecord(process.ToPointer(mem, record))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Path() != "/cards/FOO.dsv" || rec.DirtyPages[0] != 0b11 || rec.AddressBytes != 2 {
		t.Errorf("record: path %q, dirty %#x, address bytes %d", rec.Path(), rec.DirtyPages[0], rec.AddressBytes)
	}

	// a bad record pointer is logged, never raised
	d.InitializeBackup(0, uint64(backup.TypeEEPROM), data, size, path)
}

func TestInitializeBackupTooLarge(t *testing.T) {
	d, _ := newDispatcher(t, loadTable(t, process.ARCH_ARM64), "")
	mem := d.Memory.(*memtest.Memory)
	record, data, path := mem.Alloc(0x1000), mem.Alloc(0x1000), mem.Alloc(0x100)
	mem.Poke(path, []byte("/saves/FOO.dsv\x00"))

	d.InitializeBackup(record, uint64(backup.TypeNAND), data, trampoline.MaxBackupSize+backup.PageSize, path)
	rec, err := trampoline.ReadBackupRecord(process.ToPointer(mem, record))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Size != 0 || rec.Path() != "" {
		t.Errorf("record filled: size %#x, path %q", rec.Size, rec.Path())
	}
	if got := mem.Peek(data, 0x1000); !bytes.Equal(got, make([]byte, 0x1000)) {
		t.Error("data written")
	}
}

func TestInstaller(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM)
	d, _ := newDispatcher(t, table, "")
	mem := d.Memory.(*memtest.Memory)
	in := &trampoline.Installer{Dispatcher: d}
	trampolines := map[string]uint64{
		symbols.SaveStateIndex:   0x40001000,
		symbols.LoadStateIndex:   0x40001100,
		symbols.Quit:             0x40001200,
		symbols.InitializeBackup: 0x40001300,
		"print_string":           0x40001400,
	}

	err := in.Install("", trampolines)
	if !errors.Is(err, trampoline.ErrUnresolvedAddress) || !errors.Is(err, trampoline.ErrEntryHooked) {
		t.Errorf("Install: got %v", err)
	}
	if !in.Installed() || len(in.Records()) != 1 || d.Redirector.Mode() != state.IndexMode {
		t.Fatalf("installed %v, records %d, mode %s", in.Installed(), len(in.Records()), d.Redirector.Mode())
	}
	target := table.MustFunction(symbols.InitializeBackup)
	expect := []byte{0x04, 0xF0, 0x1F, 0xE5, 0x00, 0x13, 0x00, 0x40}
	if got := mem.Peek(target, 8); !bytes.Equal(got, expect) {
		t.Errorf("initialize_backup: got % x", got)
	}
	for _, name := range []string{symbols.SaveStateIndex, symbols.LoadStateIndex, symbols.Quit} {
		if d.Patcher.Patched(table.MustFunction(name)) {
			t.Errorf("%s hooked in index mode", name)
		}
	}

	if err := in.Install(stateDir, trampolines); !errors.Is(err, trampoline.ErrAlreadyInstalled) {
		t.Errorf("second Install: got %v", err)
	}
	if d.Redirector.Mode() != state.IndexMode {
		t.Error("refused Install changed the mode")
	}

	if err := in.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if got := mem.Peek(target, 8); !bytes.Equal(got, make([]byte, 8)) {
		t.Errorf("Uninstall: got % x", got)
	}
	delete(trampolines, "print_string")
	delete(trampolines, symbols.Quit)
	if err := in.Install(stateDir, trampolines); err != nil {
		t.Fatal(err)
	}
	if d.Redirector.Mode() != state.PathMode || d.Redirector.Directory() != stateDir || len(in.Records()) != 3 {
		t.Errorf("mode %s, records %d", d.Redirector.Mode(), len(in.Records()))
	}
	if info, err := d.Loader.FS.(fs.StatFS).Stat(stateDir); err != nil || !info.IsDir() {
		t.Errorf("state directory: %v, %v", info, err)
	}
}

func status(err error) uint64 {
	if err != nil {
		return ^uint64(0)
	}
	return 0
}

// TestInstalledBranches runs the entry points the way the target does once
// the hooks are in: through whatever code they hold.
func TestInstalledBranches(t *testing.T) {
	tests := []struct {
		dir    string
		expect []string
	}{
		{"", []string{symbols.SaveStateIndex, symbols.LoadStateIndex, symbols.Quit}},
		{stateDir, []string{symbols.SaveState, symbols.LoadState, symbols.Quit}},
	}
	for _, tt := range tests {
		table := loadTable(t, process.ARCH_ARM64)
		d, fake := newDispatcher(t, table, "")
		fake.follow(d.Patcher, map[uint64]func(args ...uint64) uint64{
			0x40001000: func(args ...uint64) uint64 { return status(d.SaveStateIndex(int(args[1]))) },
			0x40001100: func(args ...uint64) uint64 { return status(d.LoadStateIndex(int(args[1]))) },
			0x40001200: func(args ...uint64) uint64 { return status(d.Quit()) },
		})
		in := &trampoline.Installer{Dispatcher: d}
		in.Install(tt.dir, map[string]uint64{
			symbols.SaveStateIndex: 0x40001000,
			symbols.LoadStateIndex: 0x40001100,
			symbols.Quit:           0x40001200,
		})

		system := table.MustVariable(symbols.System)
		for _, name := range []string{symbols.SaveStateIndex, symbols.LoadStateIndex, symbols.Quit} {
			ret, err := fake.Invoke(table.MustFunction(name), system, 2, 0, 0, 0)
			if err != nil || ret != 0 {
				t.Errorf("%s mode %s: got %#x, %v", d.Redirector.Mode(), name, ret, err)
			}
		}
		if fake.maxDepth > 1 {
			t.Errorf("%s mode: trampolines nested %d deep", d.Redirector.Mode(), fake.maxDepth)
		}
		var reached []string
		for _, name := range fake.called() {
			if name != symbols.Malloc && name != symbols.Free && name != symbols.ScreenCopy16 {
				reached = append(reached, name)
			}
		}
		if !slices.Equal(reached, tt.expect) {
			t.Errorf("%s mode: reached %v", d.Redirector.Mode(), reached)
		}
		if n := len(fake.find(symbols.Malloc)); n != len(fake.find(symbols.Free)) {
			t.Errorf("%s mode: %d allocations, %d frees", d.Redirector.Mode(), n, len(fake.find(symbols.Free)))
		}
	}
}

func TestEntryHooked(t *testing.T) {
	table := loadTable(t, process.ARCH_ARM)
	d, fake := newDispatcher(t, table, "")
	if _, err := d.Patcher.Install(table.MustFunction(symbols.Quit), 0x40001200); err != nil {
		t.Fatal(err)
	}
	if err := d.Quit(); !errors.Is(err, trampoline.ErrEntryHooked) {
		t.Errorf("Quit: got %v", err)
	}
	if _, err := d.Patcher.Install(table.MustFunction(symbols.Malloc), 0x40001300); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveStateIndex(1); !errors.Is(err, trampoline.ErrEntryHooked) {
		t.Errorf("SaveStateIndex: got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("hooked entry points reached: %v", fake.called())
	}
	if !d.Calls(symbols.SaveStateIndex) || !d.Calls(symbols.Quit) || d.Calls(symbols.InitializeBackup) {
		t.Error("index mode callees")
	}
	d.Redirector.SetDirectory(stateDir)
	if d.Calls(symbols.SaveStateIndex) || d.Calls(symbols.LoadStateIndex) || !d.Calls(symbols.SaveState) {
		t.Error("path mode callees")
	}
}

func TestScratchReleaseLogged(t *testing.T) {
	d, fake := newDispatcher(t, loadTable(t, process.ARCH_ARM), stateDir)
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	d.Logger = log.NewWithConfig(cfg)
	fake.fail[symbols.Free] = errors.New("heap corrupted")

	if err := d.LoadStateIndex(2); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "heap corrupted") {
		t.Errorf("release error not logged: %q", buf.String())
	}
}
