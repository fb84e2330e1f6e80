// Package manifest handles piccolo.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/piccolo/vm"
)

// Manifest represents a piccolo.toml runtime configuration.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	GC      GC      `toml:"gc"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the piccolo.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures the value stack.
type Runtime struct {
	StackSize int `toml:"stack-size"`
}

// GC configures the collector.
type GC struct {
	MinThreshold int     `toml:"min-threshold"`
	GrowthFactor float64 `toml:"growth-factor"`
	Disabled     bool    `toml:"disabled"`
}

// Log configures driver logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns a manifest with every field at its built-in default.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.StackSize == 0 {
		m.Runtime.StackSize = vm.DefaultStackSize
	}
	if m.GC.MinThreshold == 0 {
		m.GC.MinThreshold = vm.DefaultGCMinThreshold
	}
	if m.GC.GrowthFactor == 0 {
		m.GC.GrowthFactor = vm.DefaultGCGrowthFactor
	}
	if m.Log.Level == "" {
		m.Log.Level = "info"
	}
}

// Validate checks ranges after defaults have been applied.
func (m *Manifest) Validate() error {
	if m.Runtime.StackSize < 16 {
		return fmt.Errorf("runtime.stack-size %d too small (minimum 16)", m.Runtime.StackSize)
	}
	if m.GC.MinThreshold < 0 {
		return fmt.Errorf("gc.min-threshold must not be negative")
	}
	if m.GC.GrowthFactor < 1.0 {
		return fmt.Errorf("gc.growth-factor %g below 1.0 would shrink the heap budget", m.GC.GrowthFactor)
	}
	switch m.Log.Level {
	case "error", "warning", "info", "debug":
	default:
		return fmt.Errorf("log.level %q unknown (error, warning, info, debug)", m.Log.Level)
	}
	return nil
}

// Verbosity maps the configured log level onto the commonlog
// verbosity scale used by the driver.
func (m *Manifest) Verbosity() int {
	switch m.Log.Level {
	case "error":
		return -1
	case "warning":
		return 0
	case "debug":
		return 2
	default:
		return 1
	}
}

// VMConfig converts the manifest into an instance configuration.
func (m *Manifest) VMConfig() *vm.Config {
	return &vm.Config{
		StackSize:      m.Runtime.StackSize,
		GCMinThreshold: m.GC.MinThreshold,
		GCGrowthFactor: m.GC.GrowthFactor,
		GCDisabled:     m.GC.Disabled,
	}
}

// Load parses a piccolo.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "piccolo.toml")
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

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a piccolo.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "piccolo.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}
