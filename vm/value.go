package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: runtime representation of paxy values
// ---------------------------------------------------------------------------

// Value is any runtime value. The concrete types are:
//
//	nil        None
//	bool       True / False
//	int64      integers
//	float64    floats
//	string     text
//	*List      mutable vector
//	Tuple      immutable row
//	*Map       insertion-ordered dictionary
//	*FrozenSet immutable set
//	*Range     integer range produced by range()
//	*Function  callable made by MAKE_FUNCTION
//	*Builtin   host function
//	*Iterator  iteration state produced by GET_ITER
//	*Code      function template loaded by LOAD_CONST
type Value interface{}

// List is a mutable vector.
type List struct {
	Items []Value
}

// NewList creates a list holding items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// Tuple is an immutable sequence.
type Tuple []Value

// Range is the lazy integer sequence returned by range().
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of items the range yields.
func (r *Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// Function is a user-defined callable.
type Function struct {
	Code *Code
}

// Builtin is a host function exposed to programs.
type Builtin struct {
	Name string
	Fn   func(v *VM, args []Value) (Value, error)
}

// Iterator yields successive values until exhausted.
type Iterator struct {
	next func() (Value, bool)
}

// Next returns the next value and whether one was available.
func (it *Iterator) Next() (Value, bool) {
	return it.next()
}

// nullMarker is the calling-convention sentinel pushed by PUSH_NULL.
type nullMarker struct{ _ byte }

var null = &nullMarker{}

// unboundMarker fills local slots that have not been assigned.
type unboundMarker struct{ _ byte }

var unbound = &unboundMarker{}

// ---------------------------------------------------------------------------
// Map
// ---------------------------------------------------------------------------

// Map is a dictionary that remembers insertion order.
type Map struct {
	keys  []Value
	items map[Value]Value
	shown map[Value]Value // set keys by their normalized form
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{items: make(map[Value]Value)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value {
	out := make([]Value, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.key(k)
	}
	return out
}

// key maps a normalized key back to the value the program stored.
func (m *Map) key(k Value) Value {
	if v, ok := m.shown[k]; ok {
		return v
	}
	return k
}

// Get looks up a key.
func (m *Map) Get(key Value) (Value, bool, error) {
	k, err := mapKey(key)
	if err != nil {
		return nil, false, err
	}
	v, ok := m.items[k]
	return v, ok, nil
}

// Set stores a key, keeping its original position if already present.
func (m *Map) Set(key, value Value) error {
	k, err := mapKey(key)
	if err != nil {
		return err
	}
	if _, ok := m.items[k]; !ok {
		m.keys = append(m.keys, k)
		if _, isSet := k.(setKey); isSet {
			if m.shown == nil {
				m.shown = make(map[Value]Value)
			}
			m.shown[k] = key
		}
	}
	m.items[k] = value
	return nil
}

// Delete removes a key and reports whether it was present.
func (m *Map) Delete(key Value) (bool, error) {
	k, err := mapKey(key)
	if err != nil {
		return false, err
	}
	if _, ok := m.items[k]; !ok {
		return false, nil
	}
	delete(m.items, k)
	delete(m.shown, k)
	for i, existing := range m.keys {
		if existing == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true, nil
}

// mapKey normalizes a value for use as a Go map key. Integral floats and
// booleans collapse onto the equal integer so 1, 1.0 and True share a slot.
func mapKey(v Value) (Value, error) {
	switch x := v.(type) {
	case nil, string, int64:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<62 {
			return int64(x), nil
		}
		return x, nil
	case *FrozenSet:
		return x.hashKey(), nil
	case *Function, *Builtin:
		return x, nil
	}
	return nil, typeErrorf("unhashable type: '%s'", TypeName(v))
}

// ---------------------------------------------------------------------------
// FrozenSet
// ---------------------------------------------------------------------------

// FrozenSet is an immutable set. Members keep the order they were first
// added in; later duplicates are dropped.
type FrozenSet struct {
	items []Value
	index map[Value]struct{}
}

// NewFrozenSet builds a set from items, which must all be hashable.
func NewFrozenSet(items ...Value) (*FrozenSet, error) {
	s := &FrozenSet{index: make(map[Value]struct{}, len(items))}
	for _, it := range items {
		k, err := mapKey(it)
		if err != nil {
			return nil, err
		}
		if _, dup := s.index[k]; dup {
			continue
		}
		s.index[k] = struct{}{}
		s.items = append(s.items, it)
	}
	return s, nil
}

// Len returns the number of members.
func (s *FrozenSet) Len() int {
	return len(s.items)
}

// Items returns the members in insertion order.
func (s *FrozenSet) Items() []Value {
	return append([]Value(nil), s.items...)
}

// Has reports whether v is a member. Unhashable values are a TypeError.
func (s *FrozenSet) Has(v Value) (bool, error) {
	k, err := mapKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[k]
	return ok, nil
}

func (s *FrozenSet) String() string {
	return Repr(s)
}

// setKey is the normalized map key of a FrozenSet. Sets with the same
// members have the same key whatever their order.
type setKey string

func (s *FrozenSet) hashKey() setKey {
	parts := make([]string, 0, len(s.index))
	for k := range s.index {
		parts = append(parts, keyString(k))
	}
	sort.Strings(parts)
	return setKey(strings.Join(parts, ","))
}

// keyString spells a normalized key unambiguously.
func keyString(k Value) string {
	switch x := k.(type) {
	case nil:
		return "N"
	case int64:
		return "i" + strconv.FormatInt(x, 10)
	case float64:
		return "f" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s" + strconv.Quote(x)
	case setKey:
		return "{" + string(x) + "}"
	}
	return fmt.Sprintf("p%p", k)
}

// ---------------------------------------------------------------------------
// Introspection and formatting
// ---------------------------------------------------------------------------

// TypeName returns the user-facing type name of v.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Map:
		return "dict"
	case *FrozenSet:
		return "frozenset"
	case *Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function"
	case *Iterator:
		return "iterator"
	case *Code:
		return "code"
	case *nullMarker:
		return "NULL"
	}
	return fmt.Sprintf("%T", v)
}

// Truthy reports the truth value of v.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case Tuple:
		return len(x) > 0
	case *Map:
		return x.Len() > 0
	case *FrozenSet:
		return x.Len() > 0
	case *Range:
		return x.Len() > 0
	}
	return true
}

// Str formats v the way print shows it.
func Str(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}

// Repr formats v as a literal.
func Repr(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return quoteString(x)
	case *List:
		return "[" + joinRepr(x.Items) + "]"
	case Tuple:
		if len(x) == 1 {
			return "(" + Repr(x[0]) + ",)"
		}
		return "(" + joinRepr(x) + ")"
	case *Map:
		parts := make([]string, 0, x.Len())
		for _, k := range x.keys {
			parts = append(parts, Repr(x.key(k))+": "+Repr(x.items[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *FrozenSet:
		if x.Len() == 0 {
			return "frozenset()"
		}
		return "frozenset({" + joinRepr(x.items) + "})"
	case *Range:
		if x.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", x.Start, x.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case *Function:
		return fmt.Sprintf("<function %s>", x.Code.Name)
	case *Builtin:
		return fmt.Sprintf("<built-in function %s>", x.Name)
	case *Code:
		return fmt.Sprintf("<code object %s, line %d>", x.Name, x.FirstLine)
	}
	return fmt.Sprintf("<%s>", TypeName(v))
}

func joinRepr(items []Value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

// quoteString renders s with single quotes unless it contains one and no
// double quote.
func quoteString(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// formatFloat uses the shortest round-tripping representation, switching to
// exponent notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	exp := int(math.Floor(math.Log10(math.Abs(f))))
	if exp < -4 || exp >= 16 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
