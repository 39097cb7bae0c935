package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chazu/paxy/compiler"
	"github.com/chazu/paxy/manifest"
	"github.com/chazu/paxy/store"
)

// Environment variables read by the CLI.
const (
	envDebug    = "PAXY_DEBUG"
	envDebugOut = "PAXY_DEBUG_OUT"
)

// buildFlags are the compilation flags shared by the commands.
type buildFlags struct {
	debug    bool
	debugOut string
	cacheDir string
	cacheDB  string
	noStore  bool
	timeout  time.Duration
}

func (b *buildFlags) register(fs *flag.FlagSet, withTimeout bool) {
	fs.BoolVar(&b.debug, "debug", false, "Dump the resolved stream and disassembly ("+envDebug+")")
	fs.StringVar(&b.debugOut, "debug-out", "", "File for the debug dump instead of the log ("+envDebugOut+")")
	fs.StringVar(&b.cacheDir, "cache-dir", "", "Directory for compiled units (default __paxycache__ next to each file)")
	fs.StringVar(&b.cacheDB, "cache-db", "", "SQLite unit store shared between projects")
	fs.BoolVar(&b.noStore, "no-store", false, "Ignore the configured unit store")
	if withTimeout {
		fs.DurationVar(&b.timeout, "timeout", 0, "Stop the program after this long (0 for no limit)")
	}
}

// settings is the effective configuration of a command: defaults, then
// paxy.toml, then the environment, then flags.
type settings struct {
	manifest *manifest.Manifest
	opts     compiler.Options
	cacheDB  string
	timeout  time.Duration
}

func (c *cli) settings(fs *flag.FlagSet, b *buildFlags) (*settings, error) {
	m, err := manifest.FindAndLoad(c.wd)
	if err != nil {
		return nil, err
	}
	s := &settings{manifest: m}

	if m != nil {
		s.opts.Debug = m.Build.Debug
		s.opts.DebugOut = m.DebugOut()
		s.opts.CacheDir = m.CacheDir()
		s.cacheDB = m.CacheDB()
		s.timeout = m.Timeout()
		log.Debugf("using %s", filepath.Join(m.Dir, manifest.FileName))
	}

	if v := c.getenv(envDebug); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			// any other non-empty value turns dumping on
			on = true
		}
		s.opts.Debug = on
	}
	if v := c.getenv(envDebugOut); v != "" {
		s.opts.DebugOut = c.abs(v)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			s.opts.Debug = b.debug
		case "debug-out":
			s.opts.DebugOut = c.abs(b.debugOut)
		case "cache-dir":
			s.opts.CacheDir = c.abs(b.cacheDir)
		case "cache-db":
			s.cacheDB = c.abs(b.cacheDB)
		case "timeout":
			s.timeout = b.timeout
		}
	})
	if b.noStore {
		s.cacheDB = ""
	}
	return s, nil
}

// openStore opens the configured unit store and attaches it to the
// compile options. The store is closed when the process exits.
func (c *cli) openStore(s *settings) (*store.Store, error) {
	if s.cacheDB == "" {
		return nil, nil
	}
	st, err := store.Open(s.cacheDB)
	if err != nil {
		return nil, fmt.Errorf("unit store: %w", err)
	}
	c.onExit(func() {
		if err := st.Close(); err != nil {
			log.Warningf("closing unit store: %v", err)
		}
	})
	s.opts.Store = st
	return st, nil
}

// sources returns the files named on the command line, or the manifest's
// entry program when none are.
func (c *cli) sources(s *settings, args []string) ([]string, error) {
	if len(args) > 0 {
		out := make([]string, len(args))
		for i, a := range args {
			out[i] = c.abs(a)
		}
		return out, nil
	}
	if s.manifest != nil && s.manifest.EntryPath() != "" {
		return []string{s.manifest.EntryPath()}, nil
	}
	return nil, fmt.Errorf("no program given and no entry in %s", manifest.FileName)
}

func (c *cli) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.wd, p)
}
