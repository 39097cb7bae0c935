package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/chazu/paxy/compiler"
	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/manifest"
	"github.com/chazu/paxy/server"
	"github.com/chazu/paxy/vm"
)

type command struct {
	name    string
	summary string
	run     func(c *cli, args []string) error
}

var commands []command

const unitExt = ".pxc"

func init() {
	commands = []command{
		{"run", "Run a program or a compiled unit", runCommand},
		{"compile", "Compile programs into cached units", compileCommand},
		{"dis", "Show the bytecode of a program", disCommand},
		{"serve", "Serve the compiler over Connect and gRPC", serveCommand},
		{"lsp", "Run the language server on stdio", lspCommand},
		{"init", "Create a paxy.toml project", initCommand},
		{"cache", "List the units in the unit store", cacheCommand},
	}
}

// flagSet creates the flag set of a subcommand.
func (c *cli) flagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet("paxy "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: paxy %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// signalContext is cancelled by SIGINT and SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runCommand handles `paxy run`.
func runCommand(c *cli, args []string) error {
	fs := c.flagSet("run", "[options] [file]")
	var b buildFlags
	b.register(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := c.settings(fs, &b)
	if err != nil {
		return err
	}
	files, err := c.sources(s, fs.Args())
	if err != nil {
		return err
	}
	if len(files) != 1 {
		fmt.Fprintln(c.stderr, "paxy run takes one program")
		return errUsage
	}
	if _, err := c.openStore(s); err != nil {
		return err
	}

	u, err := loadProgram(files[0], s.opts)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	machine := vm.NewVM(vm.WithStdout(c.stdout), vm.WithStdin(c.stdin))
	_, err = machine.Run(ctx, u.Module)
	return err
}

// loadProgram reads a compiled unit directly, or builds one from source.
func loadProgram(path string, opts compiler.Options) (*vm.Unit, error) {
	if filepath.Ext(path) == unitExt {
		return vm.ReadUnit(path)
	}
	u, _, err := compiler.BuildUnit(path, opts)
	return u, err
}

// compileCommand handles `paxy compile`. Without arguments it compiles
// every program in the manifest's source directories.
func compileCommand(c *cli, args []string) error {
	fs := c.flagSet("compile", "[options] [files...]")
	var b buildFlags
	b.register(fs, false)
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := c.settings(fs, &b)
	if err != nil {
		return err
	}

	var files []string
	if fs.NArg() == 0 && s.manifest != nil {
		files, err = s.manifest.SourceFiles()
	} else {
		files, err = c.sources(s, fs.Args())
	}
	if err != nil {
		return err
	}
	if _, err := c.openStore(s); err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		_, path, err := compiler.BuildUnit(file, s.opts)
		if err != nil {
			if _, ok := compiler.AsCompileError(err); !ok {
				return err
			}
			fmt.Fprintf(c.stderr, "%s: %v\n", c.rel(file), err)
			failed++
			continue
		}
		if path == "" {
			path = "(not cached)"
		}
		fmt.Fprintf(c.stdout, "%s -> %s\n", c.rel(file), c.rel(path))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d programs failed to compile", failed, len(files))
	}
	return nil
}

// disCommand handles `paxy dis`.
func disCommand(c *cli, args []string) error {
	fs := c.flagSet("dis", "[options] [files...]")
	showIR := fs.Bool("ir", false, "Also show the resolved instruction stream")
	var b buildFlags
	b.register(fs, false)
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := c.settings(fs, &b)
	if err != nil {
		return err
	}
	files, err := c.sources(s, fs.Args())
	if err != nil {
		return err
	}

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		name := moduleName(file)
		resolved, code, err := compiler.Module(name, string(src))
		if err != nil {
			return err
		}
		if *showIR {
			fmt.Fprintf(c.stdout, "Resolved stream of %s:\n%s\n", name, ir.Dump(resolved))
		}
		fmt.Fprint(c.stdout, vm.Disassemble(code))
	}
	return nil
}

// serveCommand handles `paxy serve`.
func serveCommand(c *cli, args []string) error {
	fs := c.flagSet("serve", "[options]")
	httpAddr := fs.String("http", ":4567", "Connect (HTTP) listen address; empty to disable")
	grpcAddr := fs.String("grpc", "", "gRPC listen address; empty to disable")
	workers := fs.Int("workers", 0, "Programs run at once (default GOMAXPROCS)")
	var b buildFlags
	b.register(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *httpAddr == "" && *grpcAddr == "" {
		fmt.Fprintln(c.stderr, "paxy serve needs -http or -grpc")
		return errUsage
	}
	s, err := c.settings(fs, &b)
	if err != nil {
		return err
	}
	st, err := c.openStore(s)
	if err != nil {
		return err
	}

	var opts []server.ServerOption
	if s.timeout > 0 {
		opts = append(opts, server.WithTimeout(s.timeout))
	}
	if st != nil {
		opts = append(opts, server.WithStore(st))
	}
	if *workers > 0 {
		opts = append(opts, server.WithWorkers(*workers))
	}
	srv := server.New(opts...)

	ctx, stop := signalContext()
	defer stop()

	errs := make(chan error, 2)
	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			srv.Stop()
			return err
		}
		go func() { errs <- srv.ServeGRPC(lis) }()
	}
	if *httpAddr != "" {
		go func() { errs <- srv.ListenAndServe(*httpAddr) }()
	}

	select {
	case <-ctx.Done():
		log.Notice("shutting down")
		srv.Stop()
		return nil
	case err := <-errs:
		srv.Stop()
		return err
	}
}

// lspCommand handles `paxy lsp`.
func lspCommand(c *cli, args []string) error {
	fs := c.flagSet("lsp", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	return server.NewLSP(version).Run()
}

// initCommand handles `paxy init`.
func initCommand(c *cli, args []string) error {
	fs := c.flagSet("init", "[dir]")
	name := fs.String("name", "", "Project name (default the directory name)")
	if err := parse(fs, args); err != nil {
		return err
	}
	dir := c.wd
	if fs.NArg() > 0 {
		dir = c.abs(fs.Arg(0))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if *name == "" {
		*name = filepath.Base(dir)
	}

	m := &manifest.Manifest{
		Project: manifest.Project{Name: *name, Version: "0.1.0"},
		Source:  manifest.Source{Dirs: []string{"."}, Entry: "main" + manifest.SourceExt},
		Run:     manifest.Run{Timeout: "30s"},
	}
	if err := manifest.Write(dir, m); err != nil {
		return err
	}

	entry := filepath.Join(dir, m.Source.Entry)
	if _, err := os.Stat(entry); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(entry, []byte("PNT "+strconv.Quote("hello from "+*name)+"\n"), 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.stdout, "Created %s\n", c.rel(filepath.Join(dir, manifest.FileName)))
	return nil
}

// cacheCommand handles `paxy cache`.
func cacheCommand(c *cli, args []string) error {
	fs := c.flagSet("cache", "[options]")
	var b buildFlags
	b.register(fs, false)
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := c.settings(fs, &b)
	if err != nil {
		return err
	}
	if s.cacheDB == "" {
		fmt.Fprintln(c.stderr, "no unit store configured; use -cache-db or [build] cache-db")
		return errUsage
	}
	st, err := c.openStore(s)
	if err != nil {
		return err
	}

	entries, err := st.List(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tNAME\tBYTES\tSTORED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", shortHash(e.Hash), e.Name, e.Size, e.Stored.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// rel shortens path relative to the working directory for display.
func (c *cli) rel(path string) string {
	if r, err := filepath.Rel(c.wd, path); err == nil && !filepath.IsAbs(r) && len(r) < len(path) {
		return r
	}
	return path
}
