package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Units: packaged module code
// ---------------------------------------------------------------------------

const (
	// UnitMagic identifies a serialized unit.
	UnitMagic = "PXYC"
	// UnitVersion is bumped whenever the instruction set or the encoding
	// changes incompatibly.
	UnitVersion = 1
	// CacheDirName is the directory next to a source file that holds its
	// compiled units.
	CacheDirName = "__paxycache__"
)

// Unit flags.
const (
	// FlagHashBased marks a unit validated by source hash instead of
	// modification time and size.
	FlagHashBased uint32 = 1 << iota
)

// ErrBadUnit is returned when data is not a readable unit.
var ErrBadUnit = errors.New("vm: not a paxy unit")

// Unit is a compiled module with the header used to decide whether it is
// still current for its source.
type Unit struct {
	Magic       string `cbor:"1,keyasint"`
	Version     int    `cbor:"2,keyasint"`
	Flags       uint32 `cbor:"3,keyasint,omitempty"`
	SourceMTime int64  `cbor:"4,keyasint,omitempty"` // unix seconds
	SourceSize  int64  `cbor:"5,keyasint,omitempty"`
	SourceHash  string `cbor:"6,keyasint,omitempty"` // hex SHA-256 of the source
	Module      *Code  `cbor:"7,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewUnit wraps module code with a header describing its source.
func NewUnit(module *Code, source []byte, mtime time.Time) *Unit {
	return &Unit{
		Magic:       UnitMagic,
		Version:     UnitVersion,
		SourceMTime: mtime.Unix(),
		SourceSize:  int64(len(source)),
		SourceHash:  SourceHash(source),
		Module:      module,
	}
}

// SourceHash returns the hex SHA-256 of source.
func SourceHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Validate checks the header.
func (u *Unit) Validate() error {
	if u.Magic != UnitMagic {
		return fmt.Errorf("%w: bad magic %q", ErrBadUnit, u.Magic)
	}
	if u.Version != UnitVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadUnit, u.Version, UnitVersion)
	}
	if u.Module == nil {
		return fmt.Errorf("%w: missing module code", ErrBadUnit)
	}
	var bad error
	u.Module.Walk(func(c *Code) {
		for _, k := range c.Consts {
			if err := k.check(); err != nil && bad == nil {
				bad = fmt.Errorf("%w: constant in %s: %v", ErrBadUnit, c.Name, err)
			}
		}
	})
	return bad
}

// Fresh reports whether the unit was compiled from the source described
// by info and source. Hash-based units compare the hash; others compare
// modification time and size.
func (u *Unit) Fresh(info os.FileInfo, source []byte) bool {
	if u.Flags&FlagHashBased != 0 {
		return u.SourceHash == SourceHash(source)
	}
	return u.SourceMTime == info.ModTime().Unix() && u.SourceSize == info.Size()
}

// MarshalUnit serializes a unit to canonical CBOR.
func MarshalUnit(u *Unit) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(u)
}

// UnmarshalUnit deserializes and validates a unit.
func UnmarshalUnit(data []byte) (*Unit, error) {
	var u Unit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("vm: unmarshal unit: %w", err)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// WriteUnit writes a unit atomically: it is encoded to a temporary file in
// the target directory and renamed into place.
func WriteUnit(path string, u *Unit) error {
	data, err := MarshalUnit(u)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vm: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("vm: writing unit: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vm: writing unit: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vm: writing unit: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vm: writing unit: %w", err)
	}
	return nil
}

// ReadUnit loads a unit from disk.
func ReadUnit(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	u, err := UnmarshalUnit(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// CachePath returns where the unit for a source file is stored:
// <dir>/__paxycache__/<stem>.paxy-<version>.pxc.
func CachePath(src string) string {
	return filepath.Join(filepath.Dir(src), CacheDirName, UnitFileName(src))
}

// UnitFileName returns the base name of the unit for a source file.
func UnitFileName(src string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s.paxy-%d.pxc", stem, UnitVersion)
}
