package trampoline

import (
	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/symbols"
)

// scratch is memory borrowed from the target's allocator for one call.
type scratch struct {
	d        *Dispatcher
	releases []func() error
}

func (d *Dispatcher) scratch() *scratch {
	return &scratch{d: d}
}

func (s *scratch) alloc(size uint64) (uint64, error) {
	addr, err := s.d.call(symbols.Malloc, size)
	if err != nil {
		return 0, err
	} else if addr == 0 {
		return 0, ErrAllocFailed
	}
	s.releases = append(s.releases, func() error {
		_, err := s.d.call(symbols.Free, addr)
		return err
	})
	return addr, nil
}

// cstring copies str into target memory NUL terminated.
func (s *scratch) cstring(str string) (uint64, error) {
	addr, err := s.alloc(uint64(len(str) + 1))
	if err != nil {
		return 0, err
	}
	if err = s.d.Memory.MemWrite(addr, append([]byte(str), 0)); err != nil {
		return 0, err
	}
	return addr, nil
}

func (s *scratch) release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		if err := s.releases[i](); err != nil {
			s.d.logger().Warn("Releasing scratch memory failed", log.Err(err))
		}
	}
	s.releases = nil
}
