package vm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleModule(t *testing.T) *Code {
	fn := &Code{
		Name:      "f",
		ArgCount:  1,
		ArgNames:  []string{"a"},
		Locals:    []string{"a"},
		FirstLine: 2,
		Callable:  true,
		Instructions: []Instruction{
			{Op: OpLoadFast, Arg: 0, Line: 3},
			{Op: OpReturnValue, Line: 3},
		},
	}
	return &Code{
		Name:      "prog",
		Names:     []string{"f"},
		Consts:    consts(t, fn, Tuple{int64(1), "x", nil}, 2.5, true),
		FirstLine: 1,
		Instructions: []Instruction{
			{Op: OpLoadConst, Arg: 0, Line: 2},
			{Op: OpMakeFunction, Line: 2},
			{Op: OpStoreName, Arg: 0, Line: 2},
			{Op: OpLoadConst, Arg: 1, Line: 5},
			{Op: OpReturnValue, Line: 5},
		},
	}
}

func TestUnitRoundTrip(t *testing.T) {
	src := []byte("PNT 1\n")
	u := NewUnit(sampleModule(t), src, time.Unix(1700000000, 0))
	data, err := MarshalUnit(u)
	if err != nil {
		t.Fatal(err)
	}
	again, err := MarshalUnit(u)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(again) {
		t.Error("encoding is not deterministic")
	}

	got, err := UnmarshalUnit(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceMTime != 1700000000 || got.SourceSize != int64(len(src)) || got.SourceHash != SourceHash(src) {
		t.Errorf("header = %+v", got)
	}
	if Disassemble(got.Module) != Disassemble(u.Module) {
		t.Errorf("module changed in transit:\n%s\nvs\n%s", Disassemble(got.Module), Disassemble(u.Module))
	}
	fn := got.Module.Consts[0].Code
	if fn == nil || !fn.IsFunction() || fn.ArgCount != 1 {
		t.Errorf("nested code = %+v", fn)
	}
}

func TestUnitKeepsFrozenSetConstants(t *testing.T) {
	set, err := NewFrozenSet(int64(2), "x", nil)
	if err != nil {
		t.Fatal(err)
	}
	code := &Code{
		Name:         "prog",
		Consts:       consts(t, set),
		Instructions: []Instruction{{Op: OpLoadConst, Line: 1}, {Op: OpReturnValue, Line: 1}},
	}
	data, err := MarshalUnit(NewUnit(code, []byte("IGL s 2 'x' None\n"), time.Unix(1, 0)))
	if err != nil {
		t.Fatal(err)
	}
	u, err := UnmarshalUnit(data)
	if err != nil {
		t.Fatal(err)
	}
	got := u.Module.Consts[0].Value()
	if !Equal(got, set) || Repr(got) != "frozenset({2, 'x', None})" {
		t.Errorf("constant = %s", Repr(got))
	}

	// a set constant with an unhashable member is refused
	code.Consts = []Constant{{Kind: ConstFrozenSet, Items: []Constant{{Kind: ConstTuple}}}}
	if _, err := MarshalUnit(NewUnit(code, nil, time.Unix(1, 0))); !errors.Is(err, ErrBadUnit) {
		t.Errorf("bad set err = %v, want ErrBadUnit", err)
	}
}

func TestUnitRejectsBadData(t *testing.T) {
	u := NewUnit(sampleModule(t), nil, time.Now())
	u.Version = UnitVersion + 1
	if _, err := MarshalUnit(u); !errors.Is(err, ErrBadUnit) {
		t.Errorf("marshal with bad version err = %v", err)
	}
	if _, err := UnmarshalUnit([]byte("not cbor")); err == nil {
		t.Error("garbage should not unmarshal")
	}

	u.Version = UnitVersion
	u.Magic = "NOPE"
	if err := u.Validate(); !errors.Is(err, ErrBadUnit) {
		t.Errorf("bad magic err = %v", err)
	}
	u.Magic = UnitMagic
	u.Module = nil
	if err := u.Validate(); !errors.Is(err, ErrBadUnit) {
		t.Errorf("missing module err = %v", err)
	}
}

func TestUnitFreshness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.paxy")
	src := []byte("PNT 1\n")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	u := NewUnit(sampleModule(t), src, info.ModTime())
	if !u.Fresh(info, src) {
		t.Error("unit should be fresh for its own source")
	}
	u.SourceSize++
	if u.Fresh(info, src) {
		t.Error("a size mismatch should make the unit stale")
	}

	u.Flags |= FlagHashBased
	if !u.Fresh(info, src) {
		t.Error("hash-based unit should ignore size and mtime")
	}
	if u.Fresh(info, []byte("PNT 2\n")) {
		t.Error("hash-based unit should notice changed source")
	}
}

func TestWriteAndReadUnit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.paxy")
	path := CachePath(src)
	if want := filepath.Join(dir, CacheDirName, "prog.paxy-1.pxc"); path != want {
		t.Errorf("CachePath = %s, want %s", path, want)
	}

	u := NewUnit(sampleModule(t), []byte("x"), time.Now())
	if err := WriteUnit(path, u); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || strings.HasSuffix(entries[0].Name(), ".tmp") {
		t.Errorf("cache dir holds %v, want only the unit", entries)
	}

	got, err := ReadUnit(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Module.Name != "prog" {
		t.Errorf("module = %q", got.Module.Name)
	}

	if err := os.WriteFile(path, []byte{0xff}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadUnit(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("corrupt unit err = %v, want one naming the file", err)
	}
}
