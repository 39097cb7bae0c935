package vm

import "fmt"

// ---------------------------------------------------------------------------
// Operator arguments for BINARY_OP, COMPARE_OP, IS_OP and CONTAINS_OP
// ---------------------------------------------------------------------------

// BinaryOp selects the arithmetic or bitwise operation of BINARY_OP.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinaryAnd
	BinaryFloorDivide
	BinaryLShift
	BinaryMatrixMultiply
	BinaryMultiply
	BinaryRemainder
	BinaryOr
	BinaryPower
	BinaryRShift
	BinarySubtract
	BinaryTrueDivide
	BinaryXor
)

var binaryOpNames = [...]string{
	BinaryAdd:            "ADD",
	BinaryAnd:            "AND",
	BinaryFloorDivide:    "FLOOR_DIVIDE",
	BinaryLShift:         "LSHIFT",
	BinaryMatrixMultiply: "MATRIX_MULTIPLY",
	BinaryMultiply:       "MULTIPLY",
	BinaryRemainder:      "REMAINDER",
	BinaryOr:             "OR",
	BinaryPower:          "POWER",
	BinaryRShift:         "RSHIFT",
	BinarySubtract:       "SUBTRACT",
	BinaryTrueDivide:     "TRUE_DIVIDE",
	BinaryXor:            "XOR",
}

// Valid reports whether op is a known binary operator.
func (op BinaryOp) Valid() bool {
	return op >= 0 && int(op) < len(binaryOpNames)
}

func (op BinaryOp) String() string {
	if op.Valid() {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// CompareOp selects the ordering comparison of COMPARE_OP.
type CompareOp int

const (
	CompareLT CompareOp = iota
	CompareLE
	CompareEQ
	CompareNE
	CompareGT
	CompareGE
)

var compareOpNames = [...]string{
	CompareLT: "LT",
	CompareLE: "LE",
	CompareEQ: "EQ",
	CompareNE: "NE",
	CompareGT: "GT",
	CompareGE: "GE",
}

// Valid reports whether op is a known comparison.
func (op CompareOp) Valid() bool {
	return op >= 0 && int(op) < len(compareOpNames)
}

func (op CompareOp) String() string {
	if op.Valid() {
		return compareOpNames[op]
	}
	return fmt.Sprintf("CompareOp(%d)", int(op))
}

// IsOp selects identity or non-identity for IS_OP.
type IsOp int

const (
	IsSame IsOp = iota
	IsNotSame
)

// Valid reports whether op is a known identity test.
func (op IsOp) Valid() bool {
	return op == IsSame || op == IsNotSame
}

func (op IsOp) String() string {
	switch op {
	case IsSame:
		return "IS"
	case IsNotSame:
		return "IS_NOT"
	}
	return fmt.Sprintf("IsOp(%d)", int(op))
}

// ContainsOp selects membership or non-membership for CONTAINS_OP.
type ContainsOp int

const (
	ContainsIn ContainsOp = iota
	ContainsNotIn
)

// Valid reports whether op is a known membership test.
func (op ContainsOp) Valid() bool {
	return op == ContainsIn || op == ContainsNotIn
}

func (op ContainsOp) String() string {
	switch op {
	case ContainsIn:
		return "IN"
	case ContainsNotIn:
		return "NOT_IN"
	}
	return fmt.Sprintf("ContainsOp(%d)", int(op))
}

// BinaryOpByName returns the binary operator with the given canonical name.
func BinaryOpByName(name string) (BinaryOp, bool) {
	for i, n := range binaryOpNames {
		if n == name {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// CompareOpByName returns the comparison with the given canonical name.
func CompareOpByName(name string) (CompareOp, bool) {
	for i, n := range compareOpNames {
		if n == name {
			return CompareOp(i), true
		}
	}
	return 0, false
}

// IsOpByName returns the identity test with the given canonical name.
func IsOpByName(name string) (IsOp, bool) {
	switch name {
	case "IS":
		return IsSame, true
	case "IS_NOT":
		return IsNotSame, true
	}
	return 0, false
}

// ContainsOpByName returns the membership test with the given canonical name.
func ContainsOpByName(name string) (ContainsOp, bool) {
	switch name {
	case "IN":
		return ContainsIn, true
	case "NOT_IN":
		return ContainsNotIn, true
	}
	return 0, false
}
