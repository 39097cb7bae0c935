// paxy CLI - compiles and runs paxy programs and serves the compiler
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/paxy/compiler"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("paxy.cli")

// version is set at build time.
var version = "0.1.0"

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1 // compile errors, runtime errors, I/O failures
	exitInternal = 2 // compiler defects and usage errors
)

// cli carries the process environment so commands can be tested.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	wd     string

	cleanups []func()
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(exitFailure)
	}
	c := &cli{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		wd:     wd,
	}
	atexit.Register(func() {
		c.cleanup()
		flushLog()
	})
	atexit.Exit(c.main(os.Args[1:]))
}

// flushLog drains the buffered log writer.
func flushLog() {
	if w, ok := commonlog.GetWriter().(io.Closer); ok {
		w.Close()
	}
}

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(s string) error {
	switch s {
	case "true":
		*v++
	case "false":
		*v = 0
	default:
		return fmt.Errorf("-v takes no value")
	}
	return nil
}

func (c *cli) main(args []string) int {
	fs := flag.NewFlagSet("paxy", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var verbose verbosity
	fs.Var(&verbose, "v", "Verbose output (repeat for more)")
	logFile := fs.String("log", "", "Write the log to this file instead of stderr")
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: paxy [options] <command> [arguments]\n\n")
		fmt.Fprintf(c.stderr, "Commands:\n")
		for _, cmd := range commands {
			fmt.Fprintf(c.stderr, "  %-8s %s\n", cmd.name, cmd.summary)
		}
		fmt.Fprintf(c.stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(c.stderr, "\nExamples:\n")
		fmt.Fprintf(c.stderr, "  paxy run prog.paxy          # Compile (cached) and run\n")
		fmt.Fprintf(c.stderr, "  paxy dis -ir prog.paxy      # Show the resolved stream and bytecode\n")
		fmt.Fprintf(c.stderr, "  paxy serve -http :4567      # Serve the compiler over Connect\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInternal
	}

	if *logFile != "" {
		commonlog.Configure(int(verbose), logFile)
	} else {
		commonlog.Configure(int(verbose), nil)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return exitInternal
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	for _, cmd := range commands {
		if cmd.name == name {
			return c.report(cmd.run(c, rest))
		}
	}
	fmt.Fprintf(c.stderr, "paxy: unknown command %q\n", name)
	fs.Usage()
	return exitInternal
}

// report prints err and maps it to an exit code.
func (c *cli) report(err error) int {
	if err == nil {
		return exitOK
	}
	var internal *compiler.InternalError
	switch {
	case errors.Is(err, errUsage):
		return exitInternal
	case errors.As(err, &internal):
		fmt.Fprintf(c.stderr, "paxy: %v\n", err)
		fmt.Fprintf(c.stderr, "This is a bug in the compiler.\n")
		return exitInternal
	}
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return exitFailure
}

// onExit registers fn to run when the process exits.
func (c *cli) onExit(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// cleanup runs the exit handlers, last registered first.
func (c *cli) cleanup() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

var errUsage = errors.New("usage error")
