//go:build !linux || !(arm || arm64)

package host

// The instruction cache is coherent with data writes here.
func flushCache(addr, size uint64) error {
	return nil
}
