package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/chazu/ifa/pkg/opon"
	"github.com/chazu/ifa/pkg/registry"
	"github.com/chazu/ifa/pkg/value"
	"github.com/chazu/ifa/pkg/vm"
)

// runCommand handles `ifa run`.
//
//	ifa run prog.json
//	ifa run -timeout 2s -budget 1000000 prog.ifab
//	ifa run -trace -dump prog.json
func (a *app) runCommand(args []string) error {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	trace := flags.Bool("trace", false, "Print every instruction to stderr")
	timeout := flags.Duration("timeout", a.manifest.VM.Timeout, "Abort after this long (0 for no limit)")
	budget := flags.Uint64("budget", uint64(a.manifest.VM.StepBudget), "Abort after this many instructions (0 for no limit)")
	useCache := flags.Bool("cache", a.manifest.Cache.Enabled, "Reuse and store compiled artifacts in the project cache")
	dump := flags.Bool("dump", false, "Print the flight recorder after a successful run")
	printResult := flags.Bool("print", false, "Print the program result")
	snapshotDir := flags.String("snapshot-dir", "", "Write a CBOR recorder snapshot here when the program fails")
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
	board, err := a.manifest.NewOpon(bc.Opon)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	limits := a.manifest.VMLimits()
	limits.StepBudget = *budget
	limits.Trace = *trace

	machine := vm.NewWithConfig(limits)
	machine.SetOpon(board)
	machine.SetOutput(a.stdout)
	machine.SetInput(a.stdin)
	machine.SetRegistry(newProjectRegistry(ctx, a.manifest, registry.Standard(a.stdout), limits, cache))

	// Go panics get the full crash report; program errors only the recorder.
	reporter := opon.NewCrashReporter(a.stderr)
	if *snapshotDir != "" {
		reporter.SetSnapshotDir(*snapshotDir)
	}
	reporter.Register(board)
	defer reporter.Recover()

	result, err := machine.ExecuteContext(ctx, bc)
	if err != nil {
		board.Dump(a.stderr)
		if *snapshotDir != "" {
			snap, serr := board.WriteSnapshot(*snapshotDir, err.Error())
			if serr != nil {
				log.Warningf("snapshot: %v", serr)
			} else {
				fmt.Fprintf(a.stderr, "Snapshot written to %s\n", snap)
			}
		}
		return err
	}
	log.Debugf("%s: %d instructions, %d/%d opon slots", path, machine.Steps(), board.MemoryUsed(), board.MaxCapacity())

	if *printResult && result.Kind() != value.KindNull {
		fmt.Fprintln(a.stdout, result)
	}
	if *dump {
		board.Dump(a.stderr)
	}
	return nil
}
