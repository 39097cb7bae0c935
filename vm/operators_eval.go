package vm

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Numeric helpers
// ---------------------------------------------------------------------------

// asInt returns v as an integer if it is an int or a bool.
func asInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// inInt64Range reports whether f converts to int64 without overflow.
func inInt64Range(f float64) bool {
	return f >= -(1<<63) && f < 1<<63
}

// asFloat returns v as a float if it is numeric.
func asFloat(v Value) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

func isFloat(v Value) bool {
	_, ok := v.(float64)
	return ok
}

func zeroDivision(what string) *RuntimeError {
	return errorf("ZeroDivisionError", "%s", what)
}

func unsupportedOperands(sym string, a, b Value) *RuntimeError {
	return typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", sym, TypeName(a), TypeName(b))
}

var binarySymbols = map[BinaryOp]string{
	BinaryAdd:            "+",
	BinaryAnd:            "&",
	BinaryFloorDivide:    "//",
	BinaryLShift:         "<<",
	BinaryMatrixMultiply: "@",
	BinaryMultiply:       "*",
	BinaryRemainder:      "%",
	BinaryOr:             "|",
	BinaryPower:          "**",
	BinaryRShift:         ">>",
	BinarySubtract:       "-",
	BinaryTrueDivide:     "/",
	BinaryXor:            "^",
}

// ---------------------------------------------------------------------------
// BINARY_OP
// ---------------------------------------------------------------------------

// BinaryOperation applies op to a and b.
func BinaryOperation(op BinaryOp, a, b Value) (Value, error) {
	switch op {
	case BinaryAdd:
		return add(a, b)
	case BinaryMultiply:
		return multiply(a, b)
	case BinaryAnd, BinaryOr, BinaryXor:
		return bitwise(op, a, b)
	case BinaryMatrixMultiply:
		return nil, unsupportedOperands("@", a, b)
	}

	if !isFloat(a) && !isFloat(b) {
		x, xok := asInt(a)
		y, yok := asInt(b)
		if xok && yok {
			return intArith(op, x, y)
		}
	}
	x, xok := asFloat(a)
	y, yok := asFloat(b)
	if !xok || !yok {
		return nil, unsupportedOperands(binarySymbols[op], a, b)
	}
	return floatArith(op, x, y)
}

func add(a, b Value) (Value, error) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			items := make([]Value, 0, len(x.Items)+len(y.Items))
			items = append(items, x.Items...)
			return NewList(append(items, y.Items...)...), nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			out := make(Tuple, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
	}
	if !isFloat(a) && !isFloat(b) {
		x, xok := asInt(a)
		y, yok := asInt(b)
		if xok && yok {
			return x + y, nil
		}
	}
	x, xok := asFloat(a)
	y, yok := asFloat(b)
	if xok && yok {
		return x + y, nil
	}
	if _, ok := a.(string); ok {
		return nil, typeErrorf("can only concatenate str (not \"%s\") to str", TypeName(b))
	}
	return nil, unsupportedOperands("+", a, b)
}

func multiply(a, b Value) (Value, error) {
	if n, ok := asInt(b); ok {
		if r, ok, err := repeat(a, n); ok {
			return r, err
		}
	}
	if n, ok := asInt(a); ok {
		if r, ok, err := repeat(b, n); ok {
			return r, err
		}
	}
	if !isFloat(a) && !isFloat(b) {
		x, xok := asInt(a)
		y, yok := asInt(b)
		if xok && yok {
			return x * y, nil
		}
	}
	x, xok := asFloat(a)
	y, yok := asFloat(b)
	if xok && yok {
		return x * y, nil
	}
	return nil, unsupportedOperands("*", a, b)
}

// MaxSequenceLen bounds the length of a sequence built by repetition.
const MaxSequenceLen = 1 << 30

// repeat implements sequence * int. ok is false when seq is not a sequence.
func repeat(seq Value, n int64) (Value, bool, error) {
	var size int
	switch s := seq.(type) {
	case string:
		size = len(s)
	case *List:
		size = len(s.Items)
	case Tuple:
		size = len(s)
	default:
		return nil, false, nil
	}
	if n < 0 {
		n = 0
	}
	if size > 0 && n > MaxSequenceLen/int64(size) {
		if n > math.MaxInt64/int64(size) {
			return nil, true, errorf("OverflowError", "cannot fit 'int' into an index-sized integer")
		}
		return nil, true, errorf("MemoryError", "repeated %s would exceed %d items", TypeName(seq), MaxSequenceLen)
	}

	switch s := seq.(type) {
	case string:
		return strings.Repeat(s, int(n)), true, nil
	case *List:
		items := make([]Value, 0, size*int(n))
		for i := int64(0); i < n; i++ {
			items = append(items, s.Items...)
		}
		return NewList(items...), true, nil
	}
	s := seq.(Tuple)
	out := make(Tuple, 0, size*int(n))
	for i := int64(0); i < n; i++ {
		out = append(out, s...)
	}
	return out, true, nil
}

func bitwise(op BinaryOp, a, b Value) (Value, error) {
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch op {
			case BinaryAnd:
				return x && y, nil
			case BinaryOr:
				return x || y, nil
			default:
				return x != y, nil
			}
		}
	}
	x, xok := asInt(a)
	y, yok := asInt(b)
	if !xok || !yok || isFloat(a) || isFloat(b) {
		return nil, unsupportedOperands(binarySymbols[op], a, b)
	}
	switch op {
	case BinaryAnd:
		return x & y, nil
	case BinaryOr:
		return x | y, nil
	default:
		return x ^ y, nil
	}
}

func intArith(op BinaryOp, x, y int64) (Value, error) {
	switch op {
	case BinarySubtract:
		return x - y, nil
	case BinaryTrueDivide:
		if y == 0 {
			return nil, zeroDivision("division by zero")
		}
		return float64(x) / float64(y), nil
	case BinaryFloorDivide:
		if y == 0 {
			return nil, zeroDivision("integer division or modulo by zero")
		}
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		return q, nil
	case BinaryRemainder:
		if y == 0 {
			return nil, zeroDivision("integer division or modulo by zero")
		}
		r := x % y
		if r != 0 && ((r < 0) != (y < 0)) {
			r += y
		}
		return r, nil
	case BinaryPower:
		if y < 0 {
			if x == 0 {
				return nil, zeroDivision("0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(x), float64(y)), nil
		}
		result := int64(1)
		base := x
		for e := y; e > 0; e >>= 1 {
			if e&1 == 1 {
				result *= base
			}
			base *= base
		}
		return result, nil
	case BinaryLShift:
		if y < 0 {
			return nil, valueErrorf("negative shift count")
		}
		if y >= 64 {
			return int64(0), nil
		}
		return x << uint(y), nil
	case BinaryRShift:
		if y < 0 {
			return nil, valueErrorf("negative shift count")
		}
		if y >= 64 {
			if x < 0 {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		return x >> uint(y), nil
	}
	return nil, errorf("SystemError", "bad binary operator %s", op)
}

func floatArith(op BinaryOp, x, y float64) (Value, error) {
	switch op {
	case BinarySubtract:
		return x - y, nil
	case BinaryTrueDivide:
		if y == 0 {
			return nil, zeroDivision("float division by zero")
		}
		return x / y, nil
	case BinaryFloorDivide:
		if y == 0 {
			return nil, zeroDivision("float floor division by zero")
		}
		return math.Floor(x / y), nil
	case BinaryRemainder:
		if y == 0 {
			return nil, zeroDivision("float modulo")
		}
		r := math.Mod(x, y)
		if r != 0 && ((r < 0) != (y < 0)) {
			r += y
		}
		return r, nil
	case BinaryPower:
		if x == 0 && y < 0 {
			return nil, zeroDivision("0.0 cannot be raised to a negative power")
		}
		return math.Pow(x, y), nil
	}
	return nil, unsupportedOperands(binarySymbols[op], x, y)
}

// ---------------------------------------------------------------------------
// Unary operators
// ---------------------------------------------------------------------------

// Negate implements UNARY_NEGATIVE.
func Negate(v Value) (Value, error) {
	switch x := v.(type) {
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	case bool:
		n, _ := asInt(x)
		return -n, nil
	}
	return nil, typeErrorf("bad operand type for unary -: '%s'", TypeName(v))
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// Equal reports whether a == b.
func Equal(a, b Value) bool {
	if x, ok := asFloat(a); ok {
		if y, ok := asFloat(b); ok {
			if !isFloat(a) && !isFloat(b) {
				xi, _ := asInt(a)
				yi, _ := asInt(b)
				return xi == yi
			}
			return x == y
		}
		return false
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		return ok && equalSeq(x.Items, y.Items)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSeq(x, y)
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, found := y.items[k]
			if !found || !Equal(x.items[k], yv) {
				return false
			}
		}
		return true
	case *Range:
		y, ok := b.(*Range)
		return ok && *x == *y
	case *FrozenSet:
		y, ok := b.(*FrozenSet)
		return ok && x.Len() == y.Len() && x.hashKey() == y.hashKey()
	}
	return Identical(a, b)
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Identical implements the is operator.
func Identical(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	case *List, *Map, *FrozenSet, *Range, *Function, *Builtin, *Iterator, *Code:
		return a == b
	}
	return false
}

var compareSymbols = map[CompareOp]string{
	CompareLT: "<",
	CompareLE: "<=",
	CompareEQ: "==",
	CompareNE: "!=",
	CompareGT: ">",
	CompareGE: ">=",
}

// Compare implements COMPARE_OP.
func Compare(op CompareOp, a, b Value) (Value, error) {
	switch op {
	case CompareEQ:
		return Equal(a, b), nil
	case CompareNE:
		return !Equal(a, b), nil
	}
	c, err := order(a, b)
	if err != nil {
		return nil, typeErrorf("'%s' not supported between instances of '%s' and '%s'",
			compareSymbols[op], TypeName(a), TypeName(b))
	}
	if c == unordered {
		return false, nil
	}
	switch op {
	case CompareLT:
		return c < 0, nil
	case CompareLE:
		return c <= 0, nil
	case CompareGT:
		return c > 0, nil
	case CompareGE:
		return c >= 0, nil
	}
	return nil, errorf("SystemError", "bad comparison %s", op)
}

// unordered is returned by order for comparisons involving NaN.
const unordered = 2

// order returns -1, 0 or 1, or unordered for NaN.
func order(a, b Value) (int, error) {
	if x, ok := asFloat(a); ok {
		if y, ok := asFloat(b); ok {
			if !isFloat(a) && !isFloat(b) {
				xi, _ := asInt(a)
				yi, _ := asInt(b)
				return cmpInt(xi, yi), nil
			}
			switch {
			case math.IsNaN(x) || math.IsNaN(y):
				return unordered, nil
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return orderSeq(x.Items, y.Items)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return orderSeq(x, y)
		}
	}
	return 0, typeErrorf("unorderable")
}

func orderSeq(a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return order(a[i], b[i])
	}
	return cmpInt(int64(len(a)), int64(len(b))), nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------------

// Contains implements the in operator.
func Contains(haystack, needle Value) (bool, error) {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", TypeName(needle))
		}
		return strings.Contains(h, s), nil
	case *List:
		return containsSeq(h.Items, needle), nil
	case Tuple:
		return containsSeq(h, needle), nil
	case *Map:
		_, ok, err := h.Get(needle)
		return ok, err
	case *FrozenSet:
		return h.Has(needle)
	case *Range:
		n, ok := asInt(needle)
		if !ok || isFloat(needle) {
			if f, isF := needle.(float64); isF && f == math.Trunc(f) && inInt64Range(f) {
				n, ok = int64(f), true
			}
		}
		if !ok {
			return false, nil
		}
		if h.Step > 0 {
			return n >= h.Start && n < h.Stop && (n-h.Start)%h.Step == 0, nil
		}
		return n <= h.Start && n > h.Stop && (h.Start-n)%(-h.Step) == 0, nil
	}
	return false, typeErrorf("argument of type '%s' is not iterable", TypeName(haystack))
}

func containsSeq(items []Value, needle Value) bool {
	for _, it := range items {
		if Equal(it, needle) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Subscripts
// ---------------------------------------------------------------------------

// normIndex resolves a possibly negative index against length n.
func normIndex(key Value, n int, what string) (int, error) {
	i, ok := asInt(key)
	if !ok || isFloat(key) {
		return 0, typeErrorf("%s indices must be integers, not %s", what, TypeName(key))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, errorf("IndexError", "%s index out of range", what)
	}
	return int(i), nil
}

// GetItem implements container[key].
func GetItem(container, key Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		i, err := normIndex(key, len(c.Items), "list")
		if err != nil {
			return nil, err
		}
		return c.Items[i], nil
	case Tuple:
		i, err := normIndex(key, len(c), "tuple")
		if err != nil {
			return nil, err
		}
		return c[i], nil
	case string:
		runes := []rune(c)
		i, err := normIndex(key, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Map:
		v, ok, err := c.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorf("KeyError", "%s", Repr(key))
		}
		return v, nil
	case *Range:
		i, err := normIndex(key, int(c.Len()), "range object")
		if err != nil {
			return nil, err
		}
		return c.Start + int64(i)*c.Step, nil
	}
	return nil, typeErrorf("'%s' object is not subscriptable", TypeName(container))
}

// SetItem implements container[key] = value.
func SetItem(container, key, value Value) error {
	switch c := container.(type) {
	case *List:
		i, err := normIndex(key, len(c.Items), "list assignment")
		if err != nil {
			return err
		}
		c.Items[i] = value
		return nil
	case *Map:
		return c.Set(key, value)
	}
	return typeErrorf("'%s' object does not support item assignment", TypeName(container))
}

// DeleteItem implements del container[key].
func DeleteItem(container, key Value) error {
	switch c := container.(type) {
	case *List:
		i, err := normIndex(key, len(c.Items), "list assignment")
		if err != nil {
			return err
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	case *Map:
		ok, err := c.Delete(key)
		if err != nil {
			return err
		}
		if !ok {
			return errorf("KeyError", "%s", Repr(key))
		}
		return nil
	}
	return typeErrorf("'%s' object doesn't support item deletion", TypeName(container))
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// Iterate implements GET_ITER.
func Iterate(v Value) (*Iterator, error) {
	switch x := v.(type) {
	case *Iterator:
		return x, nil
	case *List:
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(x.Items) {
				return nil, false
			}
			i++
			return x.Items[i-1], true
		}}, nil
	case Tuple:
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(x) {
				return nil, false
			}
			i++
			return x[i-1], true
		}}, nil
	case string:
		rest := x
		return &Iterator{next: func() (Value, bool) {
			if rest == "" {
				return nil, false
			}
			r, size := utf8.DecodeRuneInString(rest)
			rest = rest[size:]
			return string(r), true
		}}, nil
	case *FrozenSet:
		items := x.Items()
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(items) {
				return nil, false
			}
			i++
			return items[i-1], true
		}}, nil
	case *Map:
		keys := x.Keys()
		i := 0
		return &Iterator{next: func() (Value, bool) {
			if i >= len(keys) {
				return nil, false
			}
			i++
			return keys[i-1], true
		}}, nil
	case *Range:
		cur, n := x.Start, x.Len()
		var done int64
		return &Iterator{next: func() (Value, bool) {
			if done >= n {
				return nil, false
			}
			v := cur
			cur += x.Step
			done++
			return v, true
		}}, nil
	}
	return nil, typeErrorf("'%s' object is not iterable", TypeName(v))
}
