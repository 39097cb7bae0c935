package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// UnitCache is a content-addressed store of serialized units keyed by the
// hash of their source.
type UnitCache interface {
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Put(ctx context.Context, hash, name string, data []byte) error
}

// Options control compilation.
type Options struct {
	// Debug writes the resolved stream and its disassembly after each
	// compilation.
	Debug bool
	// DebugOut is the file the debug dump is written to. When empty the
	// dump goes to the log at debug level.
	DebugOut string
	// CacheDir overrides the __paxycache__ directory next to the source.
	CacheDir string
	// Store, when set, is consulted before compiling and filled after.
	Store UnitCache
}

// Module compiles source text through every stage and returns the
// resolved, normalized stream alongside the linked code.
func Module(name, src string) ([]ir.Item, *vm.Code, error) {
	items, err := ParseString(src)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := Resolve(items, false)
	if err != nil {
		return nil, nil, err
	}
	resolved = Normalize(resolved)
	code, err := Link(name, resolved, nil, 1)
	if err != nil {
		return resolved, nil, err
	}
	return resolved, code, nil
}

// CompileString compiles source text into module code.
func CompileString(name, src string, opts Options) (*vm.Code, error) {
	resolved, code, err := Module(name, src)
	if opts.Debug && resolved != nil {
		if derr := writeDebug(opts, resolved, code); derr != nil {
			log.Warningf("debug dump: %v", derr)
		}
	}
	if err != nil {
		return nil, err
	}
	return code, nil
}

// CompileFile compiles a source file into module code.
func CompileFile(path string, opts Options) (*vm.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return CompileString(moduleName(path), string(data), opts)
}

// BuildUnit compiles a source file into a unit and writes it to the cache
// directory, reusing a current unit from disk or from opts.Store when one
// exists. It returns the unit and the path it was written to, which is
// empty when the cache directory could not be written.
func BuildUnit(path string, opts Options) (*vm.Unit, string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	unitPath := UnitPath(path, opts)

	if u, err := vm.ReadUnit(unitPath); err == nil && u.Fresh(info, source) {
		log.Debugf("%s: using %s", path, unitPath)
		return u, unitPath, nil
	}

	ctx := context.Background()
	hash := vm.SourceHash(source)
	if opts.Store != nil {
		data, ok, err := opts.Store.Get(ctx, hash)
		if err != nil {
			log.Warningf("unit store lookup for %s: %v", path, err)
		} else if ok {
			if u, err := vm.UnmarshalUnit(data); err == nil {
				log.Debugf("%s: using stored unit %s", path, hash[:12])
				u.SourceMTime = info.ModTime().Unix()
				u.SourceSize = info.Size()
				return u, writeCached(unitPath, u), nil
			}
		}
	}

	code, err := CompileString(moduleName(path), string(source), opts)
	if err != nil {
		return nil, "", err
	}
	u := vm.NewUnit(code, source, info.ModTime())

	if opts.Store != nil {
		data, err := vm.MarshalUnit(u)
		if err == nil {
			err = opts.Store.Put(ctx, hash, moduleName(path), data)
		}
		if err != nil {
			log.Warningf("unit store update for %s: %v", path, err)
		}
	}
	return u, writeCached(unitPath, u), nil
}

// UnitPath returns where BuildUnit writes the unit for path.
func UnitPath(path string, opts Options) string {
	if opts.CacheDir != "" {
		return filepath.Join(opts.CacheDir, vm.UnitFileName(path))
	}
	return vm.CachePath(path)
}

func writeCached(unitPath string, u *vm.Unit) string {
	if err := vm.WriteUnit(unitPath, u); err != nil {
		log.Warningf("not caching unit: %v", err)
		return ""
	}
	return unitPath
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
