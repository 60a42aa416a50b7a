// Package config reads the microhook settings from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/wnxd/microhook/process"
	"github.com/xyproto/env/v2"
)

const (
	EnvStateDir    = "MICROHOOK_STATE_DIR"
	EnvFastForward = "MICROHOOK_FAST_FORWARD"
	EnvPageSize    = "MICROHOOK_PAGE_SIZE"
	EnvBuild       = "MICROHOOK_BUILD"
	EnvDebug       = "MICROHOOK_DEBUG"

	DefaultFastForward = 6
)

var ErrConfigInvalid = errors.New("config invalid")

type Config struct {
	// StateDir switches state files to PathMode when not empty.
	StateDir    string
	FastForward int
	// PageSize overrides the host page size when not zero.
	PageSize int
	Build    string
	Debug    bool
}

func Default() Config {
	return Config{FastForward: DefaultFastForward}
}

func Load() (Config, error) {
	cfg := Config{
		StateDir:    env.Str(EnvStateDir),
		FastForward: env.Int(EnvFastForward, DefaultFastForward),
		PageSize:    env.Int(EnvPageSize, 0),
		Build:       env.Str(EnvBuild),
		Debug:       env.Bool(EnvDebug),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.FastForward < 0 || c.FastForward > 0xFF {
		return fmt.Errorf("%w: %s %d not in [0, 255]", ErrConfigInvalid, EnvFastForward, c.FastForward)
	}
	if c.PageSize < 0 || (c.PageSize != 0 && !process.IsPowerOfTwo(c.PageSize)) {
		return fmt.Errorf("%w: %s %#x", ErrConfigInvalid, EnvPageSize, c.PageSize)
	}
	return nil
}
