package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Code: a linked, executable instruction container
// ---------------------------------------------------------------------------

// Instruction is a single decoded VM instruction. Jump-class instructions
// hold the absolute index of their target instruction.
type Instruction struct {
	Op   Opcode `cbor:"1,keyasint"`
	Arg  int    `cbor:"2,keyasint,omitempty"`
	Line int    `cbor:"3,keyasint,omitempty"`
}

func (in Instruction) String() string {
	if in.Op.HasArg() {
		return fmt.Sprintf("%s %d", in.Op, in.Arg)
	}
	return in.Op.String()
}

// Code is the unit the interpreter executes: the module body or one
// function body.
type Code struct {
	Name         string        `cbor:"1,keyasint"`
	ArgCount     int           `cbor:"2,keyasint,omitempty"`
	ArgNames     []string      `cbor:"3,keyasint,omitempty"`
	Locals       []string      `cbor:"4,keyasint,omitempty"` // local slot names, parameters first
	Names        []string      `cbor:"5,keyasint,omitempty"` // namespace and global names
	Consts       []Constant    `cbor:"6,keyasint,omitempty"`
	Instructions []Instruction `cbor:"7,keyasint"`
	FirstLine    int           `cbor:"8,keyasint,omitempty"`
	Callable     bool          `cbor:"9,keyasint,omitempty"` // function body rather than a module
}

// IsFunction reports whether the code is a function body with its own
// local slots.
func (c *Code) IsFunction() bool {
	return c.Callable
}

// GlobalArg encodes a LOAD_GLOBAL argument.
func GlobalArg(nameIndex int, pushNull bool) int {
	arg := nameIndex << 1
	if pushNull {
		arg |= 1
	}
	return arg
}

// DecodeGlobalArg splits a LOAD_GLOBAL argument into its parts.
func DecodeGlobalArg(arg int) (nameIndex int, pushNull bool) {
	return arg >> 1, arg&1 == 1
}

// GlobalRef is the symbolic operand of LOAD_GLOBAL before linking.
// PushNull asks the instruction to push the calling-convention sentinel
// before the value.
type GlobalRef struct {
	Name     string
	PushNull bool
}

func (g GlobalRef) String() string {
	if g.PushNull {
		return "NULL + " + g.Name
	}
	return g.Name
}

// ---------------------------------------------------------------------------
// Constant pool entries
// ---------------------------------------------------------------------------

// ConstKind tags a Constant.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstFloat
	ConstString
	ConstBool
	ConstTuple
	ConstCode
	ConstFrozenSet
)

// Constant is a serializable constant pool entry.
type Constant struct {
	Kind  ConstKind  `cbor:"1,keyasint"`
	Int   int64      `cbor:"2,keyasint,omitempty"`
	Float float64    `cbor:"3,keyasint,omitempty"`
	Str   string     `cbor:"4,keyasint,omitempty"`
	Bool  bool       `cbor:"5,keyasint,omitempty"`
	Items []Constant `cbor:"6,keyasint,omitempty"`
	Code  *Code      `cbor:"7,keyasint,omitempty"`
}

// ConstantOf converts a literal operand into a pool entry.
func ConstantOf(v interface{}) (Constant, error) {
	switch x := v.(type) {
	case nil:
		return Constant{Kind: ConstNone}, nil
	case bool:
		return Constant{Kind: ConstBool, Bool: x}, nil
	case int:
		return Constant{Kind: ConstInt, Int: int64(x)}, nil
	case int64:
		return Constant{Kind: ConstInt, Int: x}, nil
	case float64:
		return Constant{Kind: ConstFloat, Float: x}, nil
	case string:
		return Constant{Kind: ConstString, Str: x}, nil
	case Tuple:
		items, err := constantsOf(x)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstTuple, Items: items}, nil
	case *FrozenSet:
		items, err := constantsOf(x.items)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstFrozenSet, Items: items}, nil
	case *Code:
		return Constant{Kind: ConstCode, Code: x}, nil
	}
	return Constant{}, fmt.Errorf("vm: unsupported constant %T", v)
}

func constantsOf(vs []Value) ([]Constant, error) {
	items := make([]Constant, len(vs))
	for i, it := range vs {
		c, err := ConstantOf(it)
		if err != nil {
			return nil, err
		}
		items[i] = c
	}
	return items, nil
}

// Value returns the runtime value of the constant.
func (c Constant) Value() Value {
	switch c.Kind {
	case ConstInt:
		return c.Int
	case ConstFloat:
		return c.Float
	case ConstString:
		return c.Str
	case ConstBool:
		return c.Bool
	case ConstTuple:
		items := make(Tuple, len(c.Items))
		for i, it := range c.Items {
			items[i] = it.Value()
		}
		return items
	case ConstFrozenSet:
		items := make([]Value, len(c.Items))
		for i, it := range c.Items {
			items[i] = it.Value()
		}
		s, err := NewFrozenSet(items...)
		if err != nil {
			// Unit.Validate rejects unhashable members
			panic(err)
		}
		return s
	case ConstCode:
		return c.Code
	}
	return nil
}

// check reports constants that cannot become values: sets with
// unhashable members.
func (c Constant) check() error {
	switch c.Kind {
	case ConstTuple:
		for _, it := range c.Items {
			if err := it.check(); err != nil {
				return err
			}
		}
	case ConstFrozenSet:
		items := make([]Value, len(c.Items))
		for i, it := range c.Items {
			if err := it.check(); err != nil {
				return err
			}
			items[i] = it.Value()
		}
		if _, err := NewFrozenSet(items...); err != nil {
			return err
		}
	}
	return nil
}

// SameConstant reports whether two pool entries are interchangeable. Code
// objects are only ever equal to themselves.
func SameConstant(a, b Constant) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ConstNone:
		return true
	case ConstInt:
		return a.Int == b.Int
	case ConstFloat:
		return math.Float64bits(a.Float) == math.Float64bits(b.Float)
	case ConstString:
		return a.Str == b.Str
	case ConstBool:
		return a.Bool == b.Bool
	case ConstTuple, ConstFrozenSet:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !SameConstant(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case ConstCode:
		return a.Code == b.Code
	}
	return false
}

// Walk calls fn for c and every function body nested in its constants,
// depth first.
func (c *Code) Walk(fn func(*Code)) {
	fn(c)
	for _, k := range c.Consts {
		walkConst(k, fn)
	}
}

func walkConst(k Constant, fn func(*Code)) {
	switch k.Kind {
	case ConstCode:
		if k.Code != nil {
			k.Code.Walk(fn)
		}
	case ConstTuple, ConstFrozenSet:
		for _, it := range k.Items {
			walkConst(it, fn)
		}
	}
}
