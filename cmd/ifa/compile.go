package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
)

// compileCommand handles `ifa compile`.
//
//	ifa compile prog.json             # writes prog.ifab
//	ifa compile -o out.ifab prog.json
//	ifa compile -cache prog.json      # also stores the artifact in the cache
func (a *app) compileCommand(args []string) error {
	flags := flag.NewFlagSet("compile", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	output := flags.String("o", "", "Output path (default: program name with .ifab)")
	useCache := flags.Bool("cache", a.manifest.Cache.Enabled, "Store the artifact in the project cache")
	if err := flags.Parse(args); err != nil {
		return err
	}
	path, err := a.programPath(flags.Args())
	if err != nil {
		return err
	}

	cache, err := a.openCache(*useCache)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	bc, err := loadProgram(path, cache)
	if err != nil {
		return err
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".ifab"
	}
	if err := bc.WriteFile(out); err != nil {
		return err
	}
	log.Infof("compiled %s -> %s (%d bytes of code, %d strings)", path, out, len(bc.Code), len(bc.Strings))
	return nil
}

// disasmCommand handles `ifa disasm`.
func (a *app) disasmCommand(args []string) error {
	path, err := a.programPath(args)
	if err != nil {
		return err
	}
	bc, err := loadProgram(path, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, bc.Disassemble())
	return nil
}
