package main

import (
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"
)

// cacheCommand handles `ifa cache`.
//
//	ifa cache list
//	ifa cache get <hash> [-o out.ifab]
//	ifa cache rm <hash>...
func (a *app) cacheCommand(args []string) error {
	if len(args) == 0 {
		return errors.New("cache: expected list, get or rm")
	}
	cache, err := a.openCache(true)
	if err != nil {
		return err
	}
	defer cache.Close()

	switch args[0] {
	case "list", "ls":
		entries, err := cache.List()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HASH\tSOURCE\tVERSION\tSIZE\tCREATED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Hash[:12], e.SourceName, e.Version, e.Size, e.Created.Format(time.RFC3339))
		}
		return tw.Flush()

	case "get":
		flags := flag.NewFlagSet("cache get", flag.ContinueOnError)
		flags.SetOutput(a.stderr)
		output := flags.String("o", "", "Write the artifact here instead of printing its listing")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		if flags.NArg() != 1 {
			return errors.New("cache get: expected one hash")
		}
		hash, err := cache.Resolve(flags.Arg(0))
		if err != nil {
			return err
		}
		bc, err := cache.Get(hash)
		if err != nil {
			return err
		}
		if *output != "" {
			return bc.WriteFile(*output)
		}
		fmt.Fprint(a.stdout, bc.Disassemble())
		return nil

	case "rm":
		if len(args) < 2 {
			return errors.New("cache rm: expected at least one hash")
		}
		for _, arg := range args[1:] {
			hash, err := cache.Resolve(arg)
			if err != nil {
				return err
			}
			if err := cache.Delete(hash); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
		}
		return nil
	}
	return fmt.Errorf("cache: unknown subcommand %q", args[0])
}
