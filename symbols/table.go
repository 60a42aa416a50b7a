package symbols

import (
	"cmp"
	"fmt"
	"maps"
	"runtime"
	"slices"

	"github.com/wnxd/microhook/process"
)

type Kind int

const (
	KindVariable Kind = iota
	KindFunction
)

func (k Kind) String() string {
	if k == KindFunction {
		return "function"
	}
	return "variable"
}

type Entry struct {
	Name string
	Kind Kind
	Addr uint64
	Size uint64
	// Opcode is the instruction template of a variable baked into code as
	// an immediate operand.
	Opcode uint32
}

// Build is one binary build sharing a layout; its Reference is where the
// layout's reference symbol landed in that build.
type Build struct {
	Name      string
	Reference uint64
}

// Layout holds the addresses observed in a reference build. Builds[0] is
// the default build.
type Layout struct {
	Arch      process.Arch
	Reference uint64
	Entries   []Entry
	Builds    []Build
}

var layoutMap = make(map[process.Arch]*Layout)

func Register(layout *Layout) bool {
	if _, ok := layoutMap[layout.Arch]; ok {
		return false
	}
	layoutMap[layout.Arch] = layout
	return true
}

func LayoutFor(arch process.Arch) (*Layout, error) {
	if layout, ok := layoutMap[arch]; ok {
		return layout, nil
	}
	return nil, process.ErrArchUnsupported
}

func (l *Layout) Build(name string) (Build, error) {
	if len(l.Builds) == 0 {
		return Build{}, ErrBuildNotFound
	} else if name == "" {
		return l.Builds[0], nil
	}
	for _, b := range l.Builds {
		if b.Name == name {
			return b, nil
		}
	}
	return Build{}, fmt.Errorf("%w: %s", ErrBuildNotFound, name)
}

// Table is the immutable address table of one build.
type Table struct {
	arch    process.Arch
	build   string
	entries map[string]Entry
}

// New resolves the layout registered for arch against the named build.
func New(arch process.Arch, build string) (*Table, error) {
	layout, err := LayoutFor(arch)
	if err != nil {
		return nil, err
	}
	b, err := layout.Build(build)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(layout.Entries))
	for _, e := range layout.Entries {
		if e.Addr != 0 {
			e.Addr = b.Reference + (e.Addr - layout.Reference)
		}
		entries = append(entries, e)
	}
	for name, kind := range Required {
		i := slices.IndexFunc(entries, func(e Entry) bool { return e.Name == name })
		if i == -1 || entries[i].Kind != kind {
			return nil, fmt.Errorf("%w: %s %s missing from %s", ErrLayoutInvalid, kind, name, arch)
		}
	}
	return NewTable(arch, b.Name, entries), nil
}

// Default resolves the default build for the architecture of this binary.
func Default() (*Table, error) {
	arch := process.HostArch()
	if arch == process.ARCH_UNKNOWN {
		return nil, fmt.Errorf("%w: %s", process.ErrArchUnsupported, runtime.GOARCH)
	}
	return New(arch, "")
}

// NewTable builds a table from already resolved entries.
func NewTable(arch process.Arch, build string, entries []Entry) *Table {
	t := &Table{arch: arch, build: build, entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		t.entries[e.Name] = e
	}
	return t
}

func (t *Table) Arch() process.Arch {
	return t.arch
}

func (t *Table) Build() string {
	return t.build
}

func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

func (t *Table) Function(name string) (uint64, error) {
	return t.lookup(name, KindFunction)
}

func (t *Table) Variable(name string) (uint64, error) {
	return t.lookup(name, KindVariable)
}

func (t *Table) MustFunction(name string) uint64 {
	addr, err := t.Function(name)
	if err != nil {
		panic(err)
	}
	return addr
}

func (t *Table) MustVariable(name string) uint64 {
	addr, err := t.Variable(name)
	if err != nil {
		panic(err)
	}
	return addr
}

func (t *Table) FindSymbol(name string) (uint64, error) {
	if e, ok := t.entries[name]; ok && e.Addr != 0 {
		return e.Addr, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
}

// Entries returns every entry ordered by address.
func (t *Table) Entries() []Entry {
	return slices.SortedFunc(maps.Values(t.entries), func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.Addr, b.Addr), cmp.Compare(a.Name, b.Name))
	})
}

func (t *Table) lookup(name string, kind Kind) (uint64, error) {
	e, ok := t.entries[name]
	if !ok || e.Kind != kind || e.Addr == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrSymbolNotFound, kind, name)
	}
	return e.Addr, nil
}
