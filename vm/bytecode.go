package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at index pc of code,
// with the meaning of its argument resolved against code's pools.
func DisassembleInstruction(code *Code, pc int) string {
	in := code.Instructions[pc]
	info := in.Op.Info()
	head := fmt.Sprintf("%04d  %4d  %-18s", pc, in.Line, info.Name)
	if !info.HasArg {
		return strings.TrimRight(head, " ")
	}

	switch info.Class {
	case ClassConst:
		if in.Arg >= 0 && in.Arg < len(code.Consts) {
			return fmt.Sprintf("%s %d (%s)", head, in.Arg, Repr(code.Consts[in.Arg].Value()))
		}
	case ClassName:
		if in.Arg >= 0 && in.Arg < len(code.Names) {
			return fmt.Sprintf("%s %d (%s)", head, in.Arg, code.Names[in.Arg])
		}
	case ClassLocal:
		if in.Arg >= 0 && in.Arg < len(code.Locals) {
			return fmt.Sprintf("%s %d (%s)", head, in.Arg, code.Locals[in.Arg])
		}
	case ClassGlobal:
		idx, pushNull := DecodeGlobalArg(in.Arg)
		if idx >= 0 && idx < len(code.Names) {
			return fmt.Sprintf("%s %d (%s)", head, in.Arg, GlobalRef{Name: code.Names[idx], PushNull: pushNull})
		}
	case ClassJump:
		return fmt.Sprintf("%s %d (-> %04d)", head, in.Arg, in.Arg)
	case ClassOperator:
		return fmt.Sprintf("%s %d (%s)", head, in.Arg, operatorName(in.Op, in.Arg))
	}
	return fmt.Sprintf("%s %d", head, in.Arg)
}

func operatorName(op Opcode, arg int) string {
	switch op {
	case OpBinaryOp:
		return BinaryOp(arg).String()
	case OpCompareOp:
		return CompareOp(arg).String()
	case OpIsOp:
		return IsOp(arg).String()
	case OpContainsOp:
		return ContainsOp(arg).String()
	}
	return fmt.Sprint(arg)
}

// Disassemble returns a listing of code followed by every function body
// nested in its constants.
func Disassemble(code *Code) string {
	var b strings.Builder
	first := true
	code.Walk(func(c *Code) {
		if !first {
			b.WriteByte('\n')
		}
		first = false
		kind := "module"
		if c.IsFunction() {
			kind = "function"
		}
		fmt.Fprintf(&b, "Disassembly of %s %s (line %d):\n", kind, c.Name, c.FirstLine)
		if c.IsFunction() {
			fmt.Fprintf(&b, "  args:   %s\n", strings.Join(c.ArgNames, ", "))
			fmt.Fprintf(&b, "  locals: %s\n", strings.Join(c.Locals, ", "))
		}
		for pc := range c.Instructions {
			b.WriteString(DisassembleInstruction(c, pc))
			b.WriteByte('\n')
		}
	})
	return b.String()
}
