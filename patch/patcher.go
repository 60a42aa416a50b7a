package patch

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/wnxd/microhook/process"
)

// Record is one installed branch. The original bytes it replaced are kept
// so that Close can put them back.
type Record struct {
	Target     uint64
	Trampoline uint64
	Original   []byte
	Code       []byte

	patcher   *Patcher
	installed bool
}

// Patcher writes branches and immediates into the code of the target binary.
type Patcher struct {
	mem      process.Memory
	enc      Encoder
	unlocker *Unlocker

	mu      sync.Mutex
	records []*Record
}

func New(mem process.Memory, opts ...UnlockerOption) (*Patcher, error) {
	enc, err := EncoderFor(mem.Arch())
	if err != nil {
		return nil, err
	}
	unlocker, err := NewUnlocker(mem, opts...)
	if err != nil {
		return nil, err
	}
	return &Patcher{mem: mem, enc: enc, unlocker: unlocker}, nil
}

func (p *Patcher) Encoder() Encoder {
	return p.enc
}

func (p *Patcher) Unlocker() *Unlocker {
	return p.unlocker
}

// Install overwrites the entry of target with a branch to trampoline.
func (p *Patcher) Install(target, trampoline uint64) (*Record, error) {
	if target == 0 || trampoline == 0 {
		return nil, &PatchError{target, process.ErrArgumentInvalid}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.ContainsFunc(p.records, func(r *Record) bool { return r.Target == target }) {
		return nil, &PatchError{target, ErrAlreadyPatched}
	}
	code := p.enc.Branch(target, trampoline)
	if err := p.unlocker.UnlockRange(target, uint64(len(code))); err != nil {
		return nil, &PatchError{target, fmt.Errorf("%w: %w", ErrUnlockFailed, err)}
	}
	original, err := p.mem.MemRead(target, uint64(len(code)))
	if err != nil {
		return nil, &PatchError{target, err}
	}
	if err = p.write(target, code); err != nil {
		return nil, &PatchError{target, err}
	}
	record := &Record{
		Target:     target,
		Trampoline: trampoline,
		Original:   original,
		Code:       code,
		patcher:    p,
		installed:  true,
	}
	p.records = append(p.records, record)
	return record, nil
}

// WriteWord replaces one instruction word in place.
func (p *Patcher) WriteWord(addr uint64, word uint32) error {
	if err := p.unlocker.UnlockRange(addr, 4); err != nil {
		return &PatchError{addr, fmt.Errorf("%w: %w", ErrUnlockFailed, err)}
	}
	var code [4]byte
	p.enc.ByteOrder().PutUint32(code[:], word)
	if err := p.write(addr, code[:]); err != nil {
		return &PatchError{addr, err}
	}
	return nil
}

func (p *Patcher) ReadWord(addr uint64) (uint32, error) {
	if addr == 0 {
		return 0, process.ErrAddressInvalid
	}
	b, err := p.mem.MemRead(addr, 4)
	if err != nil {
		return 0, err
	}
	return p.enc.ByteOrder().Uint32(b), nil
}

// Patched reports whether addr is the entry point of an installed record.
func (p *Patcher) Patched(addr uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.ContainsFunc(p.records, func(r *Record) bool { return r.Target == addr })
}

// Records lists the installed records in install order.
func (p *Patcher) Records() []*Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.records)
}

// Close restores every installed record, newest first.
func (p *Patcher) Close() error {
	var errs []error
	for _, record := range slices.Backward(p.Records()) {
		errs = append(errs, record.Close())
	}
	return errors.Join(errs...)
}

func (p *Patcher) write(addr uint64, data []byte) error {
	if err := p.mem.MemWrite(addr, data); err != nil {
		return err
	}
	if flusher, ok := p.mem.(process.CacheFlusher); ok {
		return flusher.FlushCache(addr, uint64(len(data)))
	}
	return nil
}

func (r *Record) Installed() bool {
	r.patcher.mu.Lock()
	defer r.patcher.mu.Unlock()
	return r.installed
}

// Patched reports whether the target still holds the branch written by Install.
func (r *Record) Patched() bool {
	data, err := r.patcher.mem.MemRead(r.Target, uint64(len(r.Code)))
	return err == nil && bytes.Equal(data, r.Code)
}

// Close puts the original bytes back.
func (r *Record) Close() error {
	p := r.patcher
	p.mu.Lock()
	defer p.mu.Unlock()
	if !r.installed {
		return nil
	}
	if err := p.unlocker.UnlockRange(r.Target, uint64(len(r.Original))); err != nil {
		return &PatchError{r.Target, fmt.Errorf("%w: %w", ErrUnlockFailed, err)}
	}
	if err := p.write(r.Target, r.Original); err != nil {
		return &PatchError{r.Target, err}
	}
	r.installed = false
	p.records = slices.DeleteFunc(p.records, func(rec *Record) bool { return rec == r })
	return nil
}
