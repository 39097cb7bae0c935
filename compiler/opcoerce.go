package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Operator resolver
// ---------------------------------------------------------------------------

// Operator families, as reported in UnknownOperator errors.
const (
	FamilyBinary   = "BINARY_OP"
	FamilyCompare  = "COMPARE_OP"
	FamilyIs       = "IS_OP"
	FamilyContains = "CONTAINS_OP"
)

var binarySymbols = map[string]vm.BinaryOp{
	"+":  vm.BinaryAdd,
	"-":  vm.BinarySubtract,
	"*":  vm.BinaryMultiply,
	"/":  vm.BinaryTrueDivide,
	"//": vm.BinaryFloorDivide,
	"%":  vm.BinaryRemainder,
	"**": vm.BinaryPower,
	"<<": vm.BinaryLShift,
	">>": vm.BinaryRShift,
	"|":  vm.BinaryOr,
	"&":  vm.BinaryAnd,
	"^":  vm.BinaryXor,
	"@":  vm.BinaryMatrixMultiply,
}

var compareSymbols = map[string]vm.CompareOp{
	"==": vm.CompareEQ,
	"!=": vm.CompareNE,
	"<":  vm.CompareLT,
	"<=": vm.CompareLE,
	">":  vm.CompareGT,
	">=": vm.CompareGE,
}

var isSymbols = map[string]vm.IsOp{
	"is":     vm.IsSame,
	"is not": vm.IsNotSame,
}

var containsSymbols = map[string]vm.ContainsOp{
	"in":     vm.ContainsIn,
	"not in": vm.ContainsNotIn,
}

// intCode extracts an integer operator code from a Go integer value.
func intCode(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case int32:
		return int(x), true
	}
	return 0, false
}

// operatorText treats an identifier token like the bare word it spells.
func operatorText(v interface{}) interface{} {
	if id, ok := v.(ir.Ident); ok {
		return string(id)
	}
	return v
}

// canonicalName turns "is not" or "not_in" style spellings into enum names.
func canonicalName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), "_"))
}

// ResolveBinaryOp accepts a vm.BinaryOp, a symbol ("+"), a name ("add",
// "ADD") or an integer code.
func ResolveBinaryOp(v interface{}) (vm.BinaryOp, error) {
	v = operatorText(v)
	switch x := v.(type) {
	case vm.BinaryOp:
		if x.Valid() {
			return x, nil
		}
	case string:
		if op, ok := binarySymbols[x]; ok {
			return op, nil
		}
		if op, ok := vm.BinaryOpByName(canonicalName(x)); ok {
			return op, nil
		}
	default:
		if n, ok := intCode(v); ok && vm.BinaryOp(n).Valid() {
			return vm.BinaryOp(n), nil
		}
	}
	return 0, unknownOperator(FamilyBinary, v)
}

// ResolveCompareOp accepts a vm.CompareOp, a symbol ("<="), a name ("LE")
// or an integer code.
func ResolveCompareOp(v interface{}) (vm.CompareOp, error) {
	v = operatorText(v)
	switch x := v.(type) {
	case vm.CompareOp:
		if x.Valid() {
			return x, nil
		}
	case string:
		if op, ok := compareSymbols[x]; ok {
			return op, nil
		}
		if op, ok := vm.CompareOpByName(canonicalName(x)); ok {
			return op, nil
		}
	default:
		if n, ok := intCode(v); ok && vm.CompareOp(n).Valid() {
			return vm.CompareOp(n), nil
		}
	}
	return 0, unknownOperator(FamilyCompare, v)
}

// ResolveIsOp accepts a vm.IsOp, "is", "is not", a name or 0/1.
func ResolveIsOp(v interface{}) (vm.IsOp, error) {
	v = operatorText(v)
	switch x := v.(type) {
	case vm.IsOp:
		if x.Valid() {
			return x, nil
		}
	case string:
		if op, ok := isSymbols[strings.ToLower(strings.Join(strings.Fields(x), " "))]; ok {
			return op, nil
		}
		if op, ok := vm.IsOpByName(canonicalName(x)); ok {
			return op, nil
		}
	default:
		if n, ok := intCode(v); ok && vm.IsOp(n).Valid() {
			return vm.IsOp(n), nil
		}
	}
	return 0, unknownOperator(FamilyIs, v)
}

// ResolveContainsOp accepts a vm.ContainsOp, "in", "not in", a name or 0/1.
func ResolveContainsOp(v interface{}) (vm.ContainsOp, error) {
	v = operatorText(v)
	switch x := v.(type) {
	case vm.ContainsOp:
		if x.Valid() {
			return x, nil
		}
	case string:
		if op, ok := containsSymbols[strings.ToLower(strings.Join(strings.Fields(x), " "))]; ok {
			return op, nil
		}
		if op, ok := vm.ContainsOpByName(canonicalName(x)); ok {
			return op, nil
		}
	default:
		if n, ok := intCode(v); ok && vm.ContainsOp(n).Valid() {
			return vm.ContainsOp(n), nil
		}
	}
	return 0, unknownOperator(FamilyContains, v)
}

// ClassifyOperator picks the operator family for the LET operator form,
// trying comparison, identity, membership and finally arithmetic. The
// returned argument is the resolved enum for the returned opcode. Only
// spellings are classified; integer codes are ambiguous across families.
func ClassifyOperator(v interface{}) (vm.Opcode, interface{}, error) {
	v = operatorText(v)
	if s, ok := v.(fmt.Stringer); ok {
		v = s.String()
	}
	if _, ok := v.(string); !ok {
		return 0, nil, unknownOperator(FamilyBinary, v)
	}
	if op, err := ResolveCompareOp(v); err == nil {
		return vm.OpCompareOp, op, nil
	}
	if op, err := ResolveIsOp(v); err == nil {
		return vm.OpIsOp, op, nil
	}
	if op, err := ResolveContainsOp(v); err == nil {
		return vm.OpContainsOp, op, nil
	}
	op, err := ResolveBinaryOp(v)
	if err != nil {
		return 0, nil, err
	}
	return vm.OpBinaryOp, op, nil
}

// resolveOperatorArg coerces the argument of a native operator opcode.
// Other opcodes pass through unchanged.
func resolveOperatorArg(op vm.Opcode, arg interface{}) (interface{}, error) {
	switch op {
	case vm.OpBinaryOp:
		return ResolveBinaryOp(arg)
	case vm.OpCompareOp:
		return ResolveCompareOp(arg)
	case vm.OpIsOp:
		return ResolveIsOp(arg)
	case vm.OpContainsOp:
		return ResolveContainsOp(arg)
	}
	return arg, nil
}
