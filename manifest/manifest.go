// Package manifest handles stitch.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a stitch.toml project configuration.
type Manifest struct {
	Project   Project         `toml:"project"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Cache     CacheConfig     `toml:"cache"`
	Log       LogConfig       `toml:"log"`

	// Dir is the directory containing the stitch.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// OptimizerConfig configures the incremental optimizer.
type OptimizerConfig struct {
	Parallel bool `toml:"parallel"`
	Workers  int  `toml:"workers"`
}

// CacheConfig configures the persistent optimized-method cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a stitch.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "stitch.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	applyDefaults(&m)
	return &m, nil
}

// Default returns the configuration used when no stitch.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	applyDefaults(m)
	return m
}

func applyDefaults(m *Manifest) {
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".stitch", "cache.db")
	}
}
