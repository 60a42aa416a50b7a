package process

import "errors"

var (
	ErrArchUnsupported    = errors.New("architecture unsupported")
	ErrArgumentInvalid    = errors.New("argument invalid")
	ErrAddressInvalid     = errors.New("address invalid")
	ErrProtectFailed      = errors.New("protection change failed")
	ErrCallingUnsupported = errors.New("calling unsupported")
)
