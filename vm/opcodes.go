package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single VM instruction.
type Opcode byte

// Stack Operations
const (
	OpNop      Opcode = 0x00 // no operation
	OpPopTop   Opcode = 0x01 // discard top of stack
	OpPushNull Opcode = 0x02 // push the calling-convention sentinel
	OpCopy     Opcode = 0x03 // push a copy of the n-th item (1 = top)
	OpSwap     Opcode = 0x04 // swap top with the n-th item
	OpResume   Opcode = 0x05 // start-of-callable marker
)

// Constants and Names
const (
	OpLoadConst   Opcode = 0x10 // push constant (pool index)
	OpLoadName    Opcode = 0x11 // push namespace variable (name index)
	OpStoreName   Opcode = 0x12 // pop into namespace variable
	OpDeleteName  Opcode = 0x13 // delete namespace variable
	OpLoadFast    Opcode = 0x14 // push local slot
	OpStoreFast   Opcode = 0x15 // pop into local slot
	OpDeleteFast  Opcode = 0x16 // clear local slot
	OpLoadGlobal  Opcode = 0x17 // push global (name index<<1 | push-null bit)
	OpStoreGlobal Opcode = 0x18 // pop into global
)

// Operators
const (
	OpBinaryOp      Opcode = 0x20 // pop two, push lhs <op> rhs
	OpCompareOp     Opcode = 0x21 // pop two, push comparison result
	OpIsOp          Opcode = 0x22 // pop two, push identity test
	OpContainsOp    Opcode = 0x23 // pop two, push membership test
	OpUnaryNot      Opcode = 0x24 // logical not of top
	OpUnaryNegative Opcode = 0x25 // arithmetic negation of top
)

// Containers
const (
	OpBuildList    Opcode = 0x30 // pop n, push list
	OpBuildTuple   Opcode = 0x31 // pop n, push tuple
	OpBuildMap     Opcode = 0x32 // pop 2n, push map
	OpMapAdd       Opcode = 0x33 // pop key, value; add to map at depth n
	OpBinarySubscr Opcode = 0x34 // pop container, key; push item
	OpStoreSubscr  Opcode = 0x35 // pop container, key, value; store
	OpDeleteSubscr Opcode = 0x36 // pop container, key; delete
)

// Calls and Returns
const (
	OpCall         Opcode = 0x40 // call with n positional args: NULL, callable, args...
	OpMakeFunction Opcode = 0x41 // pop code, push function
	OpReturnValue  Opcode = 0x42 // return top of stack
)

// Iteration
const (
	OpGetIter Opcode = 0x50 // replace top with an iterator over it
	OpForIter Opcode = 0x51 // push next item or jump to target when exhausted
	OpEndFor  Opcode = 0x52 // end-of-loop marker
)

// Control Flow
const (
	OpJumpForward    Opcode = 0x60 // unconditional jump to a later instruction
	OpJumpBackward   Opcode = 0x61 // unconditional jump to an earlier instruction
	OpPopJumpIfTrue  Opcode = 0x62 // pop, jump if truthy
	OpPopJumpIfFalse Opcode = 0x63 // pop, jump if falsy
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeClass groups opcodes by how their argument is interpreted.
type OpcodeClass uint8

const (
	ClassPlain  OpcodeClass = iota // no argument or a small integer
	ClassConst                     // constant pool index
	ClassName                      // namespace name index
	ClassLocal                     // local slot index
	ClassGlobal                    // global name index with flag bit
	ClassJump                      // instruction index
	ClassOperator                  // operator enum
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string      // canonical upper-case spelling
	HasArg bool        // instruction carries an argument
	Class  OpcodeClass // how the argument is interpreted
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:      {"NOP", false, ClassPlain},
	OpPopTop:   {"POP_TOP", false, ClassPlain},
	OpPushNull: {"PUSH_NULL", false, ClassPlain},
	OpCopy:     {"COPY", true, ClassPlain},
	OpSwap:     {"SWAP", true, ClassPlain},
	OpResume:   {"RESUME", true, ClassPlain},

	OpLoadConst:   {"LOAD_CONST", true, ClassConst},
	OpLoadName:    {"LOAD_NAME", true, ClassName},
	OpStoreName:   {"STORE_NAME", true, ClassName},
	OpDeleteName:  {"DELETE_NAME", true, ClassName},
	OpLoadFast:    {"LOAD_FAST", true, ClassLocal},
	OpStoreFast:   {"STORE_FAST", true, ClassLocal},
	OpDeleteFast:  {"DELETE_FAST", true, ClassLocal},
	OpLoadGlobal:  {"LOAD_GLOBAL", true, ClassGlobal},
	OpStoreGlobal: {"STORE_GLOBAL", true, ClassName},

	OpBinaryOp:      {"BINARY_OP", true, ClassOperator},
	OpCompareOp:     {"COMPARE_OP", true, ClassOperator},
	OpIsOp:          {"IS_OP", true, ClassOperator},
	OpContainsOp:    {"CONTAINS_OP", true, ClassOperator},
	OpUnaryNot:      {"UNARY_NOT", false, ClassPlain},
	OpUnaryNegative: {"UNARY_NEGATIVE", false, ClassPlain},

	OpBuildList:    {"BUILD_LIST", true, ClassPlain},
	OpBuildTuple:   {"BUILD_TUPLE", true, ClassPlain},
	OpBuildMap:     {"BUILD_MAP", true, ClassPlain},
	OpMapAdd:       {"MAP_ADD", true, ClassPlain},
	OpBinarySubscr: {"BINARY_SUBSCR", false, ClassPlain},
	OpStoreSubscr:  {"STORE_SUBSCR", false, ClassPlain},
	OpDeleteSubscr: {"DELETE_SUBSCR", false, ClassPlain},

	OpCall:         {"CALL", true, ClassPlain},
	OpMakeFunction: {"MAKE_FUNCTION", false, ClassPlain},
	OpReturnValue:  {"RETURN_VALUE", false, ClassPlain},

	OpGetIter: {"GET_ITER", false, ClassPlain},
	OpForIter: {"FOR_ITER", true, ClassJump},
	OpEndFor:  {"END_FOR", false, ClassPlain},

	OpJumpForward:    {"JUMP_FORWARD", true, ClassJump},
	OpJumpBackward:   {"JUMP_BACKWARD", true, ClassJump},
	OpPopJumpIfTrue:  {"POP_JUMP_IF_TRUE", true, ClassJump},
	OpPopJumpIfFalse: {"POP_JUMP_IF_FALSE", true, ClassJump},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// Valid reports whether op is part of the catalogue.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// HasArg reports whether the instruction carries an argument.
func (op Opcode) HasArg() bool {
	return op.Info().HasArg
}

// IsJump reports whether the argument of op is a jump target.
func (op Opcode) IsJump() bool {
	return op.Info().Class == ClassJump
}

// IsNameOp reports whether op addresses the module namespace by name.
func (op Opcode) IsNameOp() bool {
	switch op {
	case OpLoadName, OpStoreName, OpDeleteName:
		return true
	}
	return false
}

// IsReturn reports whether op leaves the current frame.
func (op Opcode) IsReturn() bool {
	return op == OpReturnValue
}

// LookupOpcode finds an opcode by its spelling (case-insensitive).
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[strings.ToUpper(name)]
	return op, ok
}

// Opcodes returns every opcode in the catalogue in numeric order.
func Opcodes() []Opcode {
	var ops []Opcode
	for i := 0; i < 256; i++ {
		if Opcode(i).Valid() {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
