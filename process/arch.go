package process

import (
	"runtime"
	"strings"
)

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
)

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	case ARCH_ARM64:
		return "arm64"
	}
	return "unknown"
}

// PointerSize is the width of an address in the target binary.
func (a Arch) PointerSize() uint64 {
	switch a {
	case ARCH_ARM:
		return 4
	case ARCH_ARM64:
		return 8
	}
	return 0
}

func ParseArch(name string) (Arch, error) {
	switch strings.ToLower(name) {
	case "arm", "arm32", "armv7":
		return ARCH_ARM, nil
	case "arm64", "aarch64":
		return ARCH_ARM64, nil
	}
	return ARCH_UNKNOWN, ErrArchUnsupported
}

// HostArch reports the architecture this binary was compiled for.
func HostArch() Arch {
	arch, _ := ParseArch(runtime.GOARCH)
	return arch
}
