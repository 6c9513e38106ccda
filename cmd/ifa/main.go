// Ifá CLI - the entry point for compiling and running Ifá programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/ifa/manifest"
)

var log = commonlog.GetLogger("ifa.cli")

// app carries the state shared by every subcommand.
type app struct {
	manifest *manifest.Manifest
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ifa", flag.ContinueOnError)
	flags.SetOutput(stderr)
	verbose := flags.Int("v", 0, "Log verbosity, 2 for debug (overrides [log] verbosity in ifa.toml)")
	logFile := flags.String("log", "", "Write logs to this file")
	dir := flags.String("C", ".", "Project directory to search for ifa.toml")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		return 2
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Defaults()
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			m.Log.Verbosity = *verbose
		}
	})
	configureLogging(m, *logFile)

	a := &app{manifest: m, stdin: stdin, stdout: stdout, stderr: stderr}

	rest := flags.Args()
	if len(rest) == 0 {
		if m.EntryPath() == "" {
			usage(stderr, flags)
			return 2
		}
		rest = []string{"run"}
	}

	var cmdErr error
	switch cmd, cmdArgs := rest[0], rest[1:]; cmd {
	case "compile":
		cmdErr = a.compileCommand(cmdArgs)
	case "run":
		cmdErr = a.runCommand(cmdArgs)
	case "disasm":
		cmdErr = a.disasmCommand(cmdArgs)
	case "cache":
		cmdErr = a.cacheCommand(cmdArgs)
	case "help":
		usage(stdout, flags)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage(stderr, flags)
		return 2
	}
	if cmdErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", cmdErr)
		return 1
	}
	return 0
}

func configureLogging(m *manifest.Manifest, logFile string) {
	verbosity := m.Log.Verbosity
	path := m.Log.File
	if logFile != "" {
		path = logFile
	}
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

func usage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: ifa [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  compile <program.json>   Compile a program tree to .ifab\n")
	fmt.Fprintf(w, "  run [program]            Run a .json or .ifab program (default: project entry)\n")
	fmt.Fprintf(w, "  disasm <program>         Print the bytecode listing of a program\n")
	fmt.Fprintf(w, "  cache list|get|rm        Inspect the compiled artifact cache\n")
	fmt.Fprintf(w, "\nOptions:\n")
	flags.SetOutput(w)
	flags.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  ifa compile hello.json -o hello.ifab\n")
	fmt.Fprintf(w, "  ifa run -timeout 5s hello.ifab\n")
	fmt.Fprintf(w, "  ifa -v 2 run -trace hello.json\n")
	fmt.Fprintf(w, "  ifa cache list\n")
}
