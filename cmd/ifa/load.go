package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/ifa/pkg/ast"
	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/compiler"
	"github.com/chazu/ifa/store"
)

// loadProgram returns the artifact for path. Files starting with the .ifab
// magic are loaded directly; anything else is decoded as a JSON program
// tree and compiled. When cache is non-nil, compiled artifacts are looked
// up and stored by the hash of the program text.
func loadProgram(path string, cache *store.Store) (*bytecode.Bytecode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if bytes.HasPrefix(data, bytecode.Magic) {
		bc, err := bytecode.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("cannot load %s: %w", path, err)
		}
		return bc, nil
	}

	sourceHash := store.Hash(data)
	if cache != nil {
		bc, e, err := cache.FindBySource(sourceHash)
		switch {
		case err == nil:
			log.Debugf("%s: using cached artifact %s", path, e.Hash[:12])
			return bc, nil
		case !errors.Is(err, store.ErrArtifactNotFound):
			log.Warningf("%s: cache lookup failed: %s", path, err)
		}
	}

	bc, err := compileSource(path, data)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if _, err := cache.Put(bc, sourceHash); err != nil {
			log.Warningf("%s: caching artifact failed: %s", path, err)
		}
	}
	return bc, nil
}

func compileSource(path string, data []byte) (*bytecode.Bytecode, error) {
	prog, err := ast.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bc, err := compiler.Compile(prog, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bc, nil
}

// openCache opens the project's artifact cache when enabled.
func (a *app) openCache(enabled bool) (*store.Store, error) {
	if !enabled {
		return nil, nil
	}
	s, err := store.Open(a.manifest.CachePath())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return s, nil
}

// programPath returns the program named on the command line, or the
// project entry when none is given.
func (a *app) programPath(args []string) (string, error) {
	switch {
	case len(args) > 1:
		return "", fmt.Errorf("expected one program, got %d", len(args))
	case len(args) == 1:
		return args[0], nil
	case a.manifest.EntryPath() != "":
		return a.manifest.EntryPath(), nil
	}
	return "", errors.New("no program given and no [project] entry in ifa.toml")
}
