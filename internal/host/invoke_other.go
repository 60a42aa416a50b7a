//go:build !((linux || darwin) && (amd64 || arm64))

package host

import (
	"github.com/wnxd/microhook/process"
)

func invoke(addr uint64, args ...uint64) (uint64, error) {
	return 0, process.ErrCallingUnsupported
}

func newCallback(fn any) (uint64, error) {
	return 0, process.ErrCallingUnsupported
}
