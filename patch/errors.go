package patch

import (
	"errors"
	"fmt"
)

var (
	ErrUnlockFailed   = errors.New("unlock failed")
	ErrAlreadyPatched = errors.New("already patched")
	ErrImageMismatch  = errors.New("image mismatch")
)

type PatchError struct {
	Target uint64
	Err    error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("[Patch] target: %08X, %v", e.Target, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
