package symbols

import "errors"

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrBuildNotFound  = errors.New("build not found")
	ErrLayoutInvalid  = errors.New("layout invalid")
)
