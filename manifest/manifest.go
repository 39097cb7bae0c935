// Package manifest handles paxy.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project manifest.
const FileName = "paxy.toml"

// SourceExt is the extension of program files.
const SourceExt = ".paxy"

// Manifest represents a paxy.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Build   Build   `toml:"build"`
	Run     Run     `toml:"run"`

	// Dir is the directory containing the paxy.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Build configures compilation.
type Build struct {
	CacheDir string `toml:"cache-dir"`
	CacheDB  string `toml:"cache-db"`
	Debug    bool   `toml:"debug"`
	DebugOut string `toml:"debug-out"`
}

// Run configures program execution.
type Run struct {
	Timeout string `toml:"timeout"`
}

// Load parses a paxy.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if m.Run.Timeout != "" {
		if _, err := time.ParseDuration(m.Run.Timeout); err != nil {
			return nil, fmt.Errorf("%s: run.timeout: %w", path, err)
		}
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a paxy.toml file,
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

// Write creates a paxy.toml for a new project in dir. It refuses to
// overwrite an existing manifest.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// SourceFiles lists the program files in the source directories, sorted.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading source directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == SourceExt {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// EntryPath returns the program run when no file is named, or "" when the
// manifest does not configure one.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// CacheDir returns the configured unit directory, or "" for the default
// location next to each source file.
func (m *Manifest) CacheDir() string {
	if m.Build.CacheDir == "" {
		return ""
	}
	return m.resolve(m.Build.CacheDir)
}

// CacheDB returns the unit store database, or "" when none is configured.
func (m *Manifest) CacheDB() string {
	if m.Build.CacheDB == "" {
		return ""
	}
	return m.resolve(m.Build.CacheDB)
}

// DebugOut returns the debug dump file, or "" to dump to the log.
func (m *Manifest) DebugOut() string {
	if m.Build.DebugOut == "" {
		return ""
	}
	return m.resolve(m.Build.DebugOut)
}

// Timeout returns the run timeout, zero meaning none. Load has already
// validated the value.
func (m *Manifest) Timeout() time.Duration {
	d, _ := time.ParseDuration(m.Run.Timeout)
	return d
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
