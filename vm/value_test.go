package vm

import (
	"math"
	"testing"
)

func TestRepr(t *testing.T) {
	m := NewMap()
	m.Set("b", int64(1))
	m.Set(int64(2), NewList())
	tests := []struct {
		v    Value
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{false, "False"},
		{int64(-12), "-12"},
		{1.0, "1.0"},
		{0.1, "0.1"},
		{1e16, "1e+16"},
		{1.5e-5, "1.5e-05"},
		{math.Copysign(0, -1), "-0.0"},
		{math.Inf(1), "inf"},
		{math.NaN(), "nan"},
		{"plain", "'plain'"},
		{"it's", `"it's"`},
		{`both ' and "`, `'both \' and "'`},
		{"tab\tnew\nline", `'tab\tnew\nline'`},
		{"\x01", `'\x01'`},
		{NewList(int64(1), "a"), "[1, 'a']"},
		{Tuple{}, "()"},
		{Tuple{int64(1)}, "(1,)"},
		{Tuple{int64(1), nil}, "(1, None)"},
		{m, "{'b': 1, 2: []}"},
		{&Range{Start: 0, Stop: 3, Step: 1}, "range(0, 3)"},
		{&Function{Code: &Code{Name: "f"}}, "<function f>"},
		{&Builtin{Name: "len"}, "<built-in function len>"},
		{&Code{Name: "g", FirstLine: 4}, "<code object g, line 4>"},
	}
	for _, tc := range tests {
		if got := Repr(tc.v); got != tc.want {
			t.Errorf("Repr(%#v) = %s, want %s", tc.v, got, tc.want)
		}
	}
	if Str("text") != "text" || Str(int64(3)) != "3" || Str(NewList("a")) != "['a']" {
		t.Error("Str should print strings bare and everything else as Repr")
	}
}

func TestTruthy(t *testing.T) {
	falsy := []Value{nil, false, int64(0), 0.0, "", NewList(), Tuple{}, NewMap(), &Range{Start: 3, Stop: 3, Step: 1}}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Truthy(%s) = true", Repr(v))
		}
	}
	truthy := []Value{true, int64(-1), 0.5, "0", NewList(nil), Tuple{nil}, &Range{Start: 0, Stop: 1, Step: 1}, &Builtin{Name: "x"}}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Truthy(%s) = false", Repr(v))
		}
	}
}

func TestTypeName(t *testing.T) {
	tests := map[string]Value{
		"NoneType": nil,
		"bool":     true,
		"int":      int64(1),
		"float":    1.0,
		"str":      "",
		"list":     NewList(),
		"tuple":    Tuple{},
		"dict":     NewMap(),
		"range":    &Range{},
		"function": &Function{},
		"NULL":     null,
	}
	for want, v := range tests {
		if got := TypeName(v); got != want {
			t.Errorf("TypeName(%#v) = %s, want %s", v, got, want)
		}
	}
}

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := NewMap()
	for _, k := range []Value{"z", "a", int64(3), nil} {
		if err := m.Set(k, k); err != nil {
			t.Fatal(err)
		}
	}
	// overwriting keeps the slot; 3.0 and 3 are the same key
	if err := m.Set(3.0, "three"); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", m.Len())
	}
	if got := Repr(m); got != "{'z': 'z', 'a': 'a', 3: 'three', None: None}" {
		t.Errorf("map = %s", got)
	}

	ok, err := m.Delete("a")
	if err != nil || !ok {
		t.Fatalf("Delete(a) = %v, %v", ok, err)
	}
	if ok, _ := m.Delete("a"); ok {
		t.Error("second Delete(a) should report absence")
	}
	keys := m.Keys()
	if len(keys) != 3 || keys[0] != "z" || keys[1] != int64(3) || keys[2] != nil {
		t.Errorf("Keys() = %v", keys)
	}

	if _, _, err := m.Get(NewMap()); runtimeKind(err) != "TypeError" {
		t.Errorf("unhashable Get err = %v", err)
	}
	// 0.5 is not integral and keeps its own slot
	m.Set(0.5, "half")
	if v, ok, _ := m.Get(0.5); !ok || v != "half" {
		t.Errorf("Get(0.5) = %v, %v", v, ok)
	}
}

func TestFrozenSet(t *testing.T) {
	s, err := NewFrozenSet("cat", "dog", "cat", int64(1), true, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if got := Repr(s); got != "frozenset({'cat', 'dog', 1})" {
		t.Errorf("Repr = %s", got)
	}
	if TypeName(s) != "frozenset" || !Truthy(s) {
		t.Errorf("TypeName = %s, Truthy = %v", TypeName(s), Truthy(s))
	}
	empty, _ := NewFrozenSet()
	if Truthy(empty) || Repr(empty) != "frozenset()" {
		t.Errorf("empty set = %s, truthy %v", Repr(empty), Truthy(empty))
	}

	if _, err := NewFrozenSet(int64(1), NewList()); runtimeKind(err) != "TypeError" {
		t.Errorf("unhashable member err = %v", err)
	}
}

func TestFrozenSetAsMapKey(t *testing.T) {
	ab, _ := NewFrozenSet("a", "b")
	ba, _ := NewFrozenSet("b", "a")
	inner, _ := NewFrozenSet(ab, "c")

	m := NewMap()
	if err := m.Set(ab, int64(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ba, int64(2)); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(inner, int64(3)); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if v, ok, _ := m.Get(ba); !ok || v != int64(2) {
		t.Errorf("Get(ba) = %v, %v", v, ok)
	}
	keys := m.Keys()
	if keys[0] != ab || keys[1] != inner {
		t.Errorf("Keys() = %v, want the stored sets", keys)
	}
	if got := Repr(m); got != "{frozenset({'a', 'b'}): 2, frozenset({frozenset({'a', 'b'}), 'c'}): 3}" {
		t.Errorf("Repr = %s", got)
	}

	if ok, err := m.Delete(ba); !ok || err != nil {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if m.Len() != 1 || m.Keys()[0] != inner {
		t.Errorf("after Delete keys = %v", m.Keys())
	}

	// a string that spells like a set key does not collide with it
	one, _ := NewFrozenSet("a")
	if _, ok, _ := m.Get(`s"a"`); ok {
		t.Error("string matched a set key")
	}
	if _, ok, _ := m.Get(one); ok {
		t.Error("different set matched")
	}
}
