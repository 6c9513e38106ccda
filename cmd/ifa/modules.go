package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/ifa/manifest"
	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/registry"
	"github.com/chazu/ifa/pkg/value"
	"github.com/chazu/ifa/pkg/vm"
	"github.com/chazu/ifa/store"
)

// projectRegistry extends a registry table with the modules declared in
// ifa.toml. A module is compiled and run on first import; its globals
// become the members of the imported map.
type projectRegistry struct {
	*registry.Table

	ctx      context.Context
	manifest *manifest.Manifest
	limits   vm.Config
	cache    *store.Store

	mu      sync.Mutex
	loading map[string]bool
}

func newProjectRegistry(ctx context.Context, m *manifest.Manifest, tab *registry.Table, limits vm.Config, cache *store.Store) *projectRegistry {
	return &projectRegistry{
		Table:    tab,
		ctx:      ctx,
		manifest: m,
		limits:   limits,
		cache:    cache,
		loading:  make(map[string]bool),
	}
}

// Import returns a registered module, loading it from the project first
// when ifa.toml binds the path to a program file.
func (r *projectRegistry) Import(path string) (value.Value, error) {
	if v, err := r.Table.Import(path); err == nil {
		return v, nil
	}
	file, ok := r.manifest.ModulePath(path)
	if !ok {
		return r.Table.Import(path)
	}

	r.mu.Lock()
	if r.loading[path] {
		r.mu.Unlock()
		return nil, fmt.Errorf("module %s: import cycle", path)
	}
	r.loading[path] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.loading, path)
		r.mu.Unlock()
	}()

	bc, err := loadProgram(file, r.cache)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", path, err)
	}
	mod, err := exportModule(r.ctx, path, bc, r.limits, r)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded module %s from %s", path, file)
	r.RegisterModule(path, mod)
	return mod, nil
}

// exportModule runs bc on a VM of its own and returns its globals.
// Functions and class methods keep running the module's code with the
// module's globals wherever the importer calls them.
func exportModule(ctx context.Context, name string, bc *bytecode.Bytecode, limits vm.Config, reg vm.Registry) (*value.Map, error) {
	machine := vm.NewWithConfig(limits)
	machine.SetRegistry(reg)
	if _, err := machine.ExecuteContext(ctx, bc); err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}

	exports := value.NewMap()
	for global, v := range machine.Globals() {
		exports.Set(global, v)
	}
	return exports, nil
}
