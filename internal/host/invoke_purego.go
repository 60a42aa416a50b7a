//go:build (linux || darwin) && (amd64 || arm64)

package host

import (
	"github.com/ebitengine/purego"
	"github.com/wnxd/microhook/process"
)

func invoke(addr uint64, args ...uint64) (uint64, error) {
	if addr == 0 {
		return 0, process.ErrAddressInvalid
	}
	params := make([]uintptr, len(args))
	for i, arg := range args {
		params[i] = uintptr(arg)
	}
	r1, _, _ := purego.SyscallN(uintptr(addr), params...)
	return uint64(r1), nil
}

func newCallback(fn any) (uint64, error) {
	return uint64(purego.NewCallback(fn)), nil
}
