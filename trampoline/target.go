package trampoline

import (
	"github.com/wnxd/microhook/symbols"
)

// Invoker runs the machine code at addr with integer arguments following
// the platform C calling convention.
type Invoker interface {
	Invoke(addr uint64, args ...uint64) (uint64, error)
}

type InvokerFunc func(addr uint64, args ...uint64) (uint64, error)

func (f InvokerFunc) Invoke(addr uint64, args ...uint64) (uint64, error) {
	return f(addr, args...)
}

// Target calls functions of the target binary by name.
type Target interface {
	Call(name string, args ...uint64) (uint64, error)
}

type target struct {
	table   *symbols.Table
	invoker Invoker
}

func NewTarget(table *symbols.Table, invoker Invoker) Target {
	return &target{table: table, invoker: invoker}
}

func (t *target) Call(name string, args ...uint64) (uint64, error) {
	addr, err := t.table.Function(name)
	if err != nil {
		return 0, &UnresolvedError{Name: name, Err: err}
	}
	return t.invoker.Invoke(addr, args...)
}
