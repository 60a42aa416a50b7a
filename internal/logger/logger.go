// Package logger builds the structured loggers used across microhook.
package logger

import (
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
)

// New returns a logger writing to stderr, at debug level when debug is set.
func New(debug bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	}
	return log.NewWithConfig(cfg)
}

func Discard() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.NewWithConfig(cfg)
}

// OrDiscard lets components treat a nil logger as silence.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Hex formats an address of the target binary.
func Hex(addr uint64) string {
	return fmt.Sprintf("0x%08X", addr)
}
