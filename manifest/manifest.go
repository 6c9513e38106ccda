// Package manifest handles ifa.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/ifa/pkg/opon"
	"github.com/chazu/ifa/pkg/vm"
)

// FileName is the manifest file looked up in project directories.
const FileName = "ifa.toml"

var log = commonlog.GetLogger("ifa.manifest")

// Manifest represents an ifa.toml project configuration.
type Manifest struct {
	Project Project           `toml:"project"`
	VM      VMConfig          `toml:"vm"`
	Cache   Cache             `toml:"cache"`
	Log     Log               `toml:"log"`
	Modules map[string]string `toml:"modules"` // import path -> program file

	// Dir is the directory containing the ifa.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// VMConfig bounds program execution.
type VMConfig struct {
	StackSize     int           `toml:"stack-size"`
	MaxFrames     int           `toml:"max-frames"`
	Opon          string        `toml:"opon"`
	History       int           `toml:"history"`
	CheckInterval int           `toml:"check-interval"`
	StepBudget    int64         `toml:"step-budget"`
	Timeout       time.Duration `toml:"timeout"`
}

// Cache configures the compiled artifact cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Defaults returns the configuration used when no ifa.toml exists.
func Defaults() *Manifest {
	return &Manifest{
		VM: VMConfig{
			StackSize:     vm.DefaultMaxStack,
			MaxFrames:     vm.DefaultMaxFrames,
			Opon:          opon.Arinrin.String(),
			History:       opon.DefaultHistory,
			CheckInterval: vm.DefaultCheckInterval,
		},
		Cache: Cache{
			Path: filepath.Join(".ifa", "cache.db"),
		},
		Modules: map[string]string{},
		Dir:     ".",
	}
}

// Load parses an ifa.toml file from the given directory. Keys missing from
// the file keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Defaults()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warningf("%s: unknown key %s", path, key)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an ifa.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
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

func (m *Manifest) validate() error {
	if _, err := opon.ParseSize(m.VM.Opon); err != nil {
		return fmt.Errorf("[vm] opon: %w", err)
	}
	switch {
	case m.VM.StackSize < 0:
		return fmt.Errorf("[vm] stack-size must not be negative")
	case m.VM.MaxFrames < 0:
		return fmt.Errorf("[vm] max-frames must not be negative")
	case m.VM.History < 0:
		return fmt.Errorf("[vm] history must not be negative")
	case m.VM.CheckInterval < 0:
		return fmt.Errorf("[vm] check-interval must not be negative")
	case m.VM.StepBudget < 0:
		return fmt.Errorf("[vm] step-budget must not be negative")
	case m.VM.Timeout < 0:
		return fmt.Errorf("[vm] timeout must not be negative")
	}
	return nil
}

// VMLimits maps the [vm] table onto executor limits.
func (m *Manifest) VMLimits() vm.Config {
	return vm.Config{
		MaxStack:      m.VM.StackSize,
		MaxFrames:     m.VM.MaxFrames,
		CheckInterval: m.VM.CheckInterval,
		StepBudget:    uint64(m.VM.StepBudget),
	}
}

// NewOpon creates the memory board selected by the [vm] table. A program's
// own #opon directive takes precedence when directive is non-empty.
func (m *Manifest) NewOpon(directive string) (*opon.Opon, error) {
	name := m.VM.Opon
	if directive != "" {
		name = directive
	}
	size, err := opon.ParseSize(name)
	if err != nil {
		return nil, err
	}
	return opon.NewWithLimits(size.Slots(), m.VM.History), nil
}

// CachePath returns the absolute path of the artifact cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// EntryPath returns the absolute path of the project's entry program, or
// "" when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	return m.resolve(m.Project.Entry)
}

// ModulePath returns the program file bound to an import path.
func (m *Manifest) ModulePath(importPath string) (string, bool) {
	p, ok := m.Modules[importPath]
	if !ok {
		return "", false
	}
	return m.resolve(p), true
}

// ModuleNames returns the configured import paths in sorted order.
func (m *Manifest) ModuleNames() []string {
	names := make([]string, 0, len(m.Modules))
	for name := range m.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
