package trampoline

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedAddress = errors.New("address unresolved")
	ErrScreenCapture     = errors.New("screen capture failed")
	ErrAllocFailed       = errors.New("allocation failed")
	ErrAlreadyInstalled  = errors.New("already installed")
	ErrEntryHooked       = errors.New("entry point hooked")
	ErrBackupTooLarge    = errors.New("backup too large")
)

// UnresolvedError names the entry the address table could not resolve.
type UnresolvedError struct {
	Name string
	Err  error
}

func (e *UnresolvedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[Unresolved] %s", e.Name)
	}
	return fmt.Sprintf("[Unresolved] %s, %v", e.Name, e.Err)
}

func (e *UnresolvedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnresolvedAddress}
	}
	return []error{ErrUnresolvedAddress, e.Err}
}
