package compiler

import (
	"fmt"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Linker: resolved IR to vm.Code
// ---------------------------------------------------------------------------

// linker builds the pools of one Code.
type linker struct {
	name   string
	items  []ir.Item
	code   *vm.Code
	names  map[string]int
	locals map[string]int
	labels map[*ir.Label]int
}

// Link turns a resolved, normalized stream into executable code. params is
// nil for module code and the parameter list for a function body. Nested
// callables are linked recursively into code constants.
func Link(name string, items []ir.Item, params []string, firstLine int) (*vm.Code, error) {
	return link(name, items, params, firstLine, params != nil)
}

func link(name string, items []ir.Item, params []string, firstLine int, callable bool) (*vm.Code, error) {
	if err := checkResolved("link "+name, items); err != nil {
		return nil, err
	}
	l := &linker{
		name:  name,
		items: items,
		code: &vm.Code{
			Name:      name,
			ArgCount:  len(params),
			ArgNames:  append([]string(nil), params...),
			FirstLine: firstLine,
			Callable:  callable,
		},
		names:  make(map[string]int),
		locals: make(map[string]int),
		labels: make(map[*ir.Label]int),
	}
	for _, p := range params {
		l.localIndex(p)
	}

	l.placeLabels()
	for i, it := range items {
		op, ok := it.(*ir.Operation)
		if !ok {
			continue
		}
		arg, err := l.encode(op, len(l.code.Instructions))
		if ie, ok := err.(*InternalError); ok {
			return nil, ie
		}
		if err != nil {
			return nil, &InternalError{Pass: "link " + name, Index: i, Detail: err.Error(), Dump: ir.Dump(items)}
		}
		l.code.Instructions = append(l.code.Instructions, vm.Instruction{Op: op.Op, Arg: arg, Line: op.Line})
	}
	log.Debugf("linked %s: %d instructions, %d consts, %d names, %d locals",
		name, len(l.code.Instructions), len(l.code.Consts), len(l.code.Names), len(l.code.Locals))
	return l.code, nil
}

// placeLabels assigns every label the index of the instruction after it.
func (l *linker) placeLabels() {
	pc := 0
	for _, it := range l.items {
		switch x := it.(type) {
		case *ir.Label:
			l.labels[x] = pc
		case *ir.Operation:
			pc++
		}
	}
}

func (l *linker) nameIndex(n string) int {
	if i, ok := l.names[n]; ok {
		return i
	}
	i := len(l.code.Names)
	l.names[n] = i
	l.code.Names = append(l.code.Names, n)
	return i
}

func (l *linker) localIndex(n string) int {
	if i, ok := l.locals[n]; ok {
		return i
	}
	i := len(l.code.Locals)
	l.locals[n] = i
	l.code.Locals = append(l.code.Locals, n)
	return i
}

// constant adds k to the pool, reusing an equal entry.
func (l *linker) constant(k vm.Constant) int {
	for i, existing := range l.code.Consts {
		if vm.SameConstant(existing, k) {
			return i
		}
	}
	l.code.Consts = append(l.code.Consts, k)
	return len(l.code.Consts) - 1
}

// encode turns a symbolic operand into the instruction argument.
func (l *linker) encode(op *ir.Operation, pc int) (int, error) {
	if !op.Op.HasArg() {
		return 0, nil
	}
	switch op.Op.Info().Class {
	case vm.ClassConst:
		if c, ok := op.Arg.(*ir.Callable); ok {
			code, err := link(c.Name, c.Body, c.Params, c.Line, true)
			if err != nil {
				return 0, err
			}
			return l.constant(vm.Constant{Kind: vm.ConstCode, Code: code}), nil
		}
		k, err := vm.ConstantOf(op.Arg)
		if err != nil {
			return 0, err
		}
		return l.constant(k), nil

	case vm.ClassName:
		n, ok := op.Arg.(string)
		if !ok {
			return 0, fmt.Errorf("%s operand %s is not a name", op.Op, ir.FormatArg(op.Arg))
		}
		return l.nameIndex(n), nil

	case vm.ClassLocal:
		n, ok := op.Arg.(string)
		if !ok {
			return 0, fmt.Errorf("%s operand %s is not a name", op.Op, ir.FormatArg(op.Arg))
		}
		return l.localIndex(n), nil

	case vm.ClassGlobal:
		switch ref := op.Arg.(type) {
		case vm.GlobalRef:
			return vm.GlobalArg(l.nameIndex(ref.Name), ref.PushNull), nil
		case string:
			return vm.GlobalArg(l.nameIndex(ref), false), nil
		}
		return 0, fmt.Errorf("%s operand %s is not a global reference", op.Op, ir.FormatArg(op.Arg))

	case vm.ClassJump:
		label, ok := op.Arg.(*ir.Label)
		if !ok {
			return 0, fmt.Errorf("%s operand %s is not a label", op.Op, ir.FormatArg(op.Arg))
		}
		target, ok := l.labels[label]
		if !ok {
			return 0, fmt.Errorf("%s targets %s which is not in this stream", op.Op, label)
		}
		switch {
		case op.Op == vm.OpJumpForward && target <= pc:
			return 0, fmt.Errorf("JUMP_FORWARD at %d targets earlier instruction %d", pc, target)
		case op.Op == vm.OpJumpBackward && target > pc:
			return 0, fmt.Errorf("JUMP_BACKWARD at %d targets later instruction %d", pc, target)
		}
		return target, nil

	case vm.ClassOperator:
		switch x := op.Arg.(type) {
		case vm.BinaryOp:
			return int(x), nil
		case vm.CompareOp:
			return int(x), nil
		case vm.IsOp:
			return int(x), nil
		case vm.ContainsOp:
			return int(x), nil
		}
		return 0, fmt.Errorf("%s operand %s is not a resolved operator", op.Op, ir.FormatArg(op.Arg))
	}

	switch n := op.Arg.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%s operand %s is not an integer", op.Op, ir.FormatArg(op.Arg))
}
