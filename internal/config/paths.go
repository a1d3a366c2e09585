package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory.
const HomeEnv = "SHAPERELAY_HOME"

// Paths locates shaperelay's files under one base directory.
type Paths struct {
	Base   string // ~/.shaperelay
	Config string // <base>/config.yaml
	Data   string // <base>/data, activation store
}

// ResolvePaths returns the paths under $SHAPERELAY_HOME, or ~/.shaperelay.
func ResolvePaths() (Paths, error) {
	base := os.Getenv(HomeEnv)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("locating home directory: %w", err)
		}
		base = filepath.Join(home, ".shaperelay")
	}
	return PathsUnder(base), nil
}

// PathsUnder lays out the standard files below base.
func PathsUnder(base string) Paths {
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
	}
}

// EnsureDirs creates the data directory and its parents.
func (p Paths) EnsureDirs() error {
	return os.MkdirAll(p.Data, 0o700)
}

// ActivationPath returns the configured activation store location, or the
// default file under the data directory for the selected backend.
func (p Paths) ActivationPath(cfg ActivationConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if cfg.Store == "sqlite" {
		return filepath.Join(p.Data, "shaperelay.db")
	}
	return filepath.Join(p.Data, "active_channels.json")
}
