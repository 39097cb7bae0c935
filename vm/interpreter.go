package vm

import (
	"errors"
)

// ---------------------------------------------------------------------------
// CallFrame: Execution state for one code object
// ---------------------------------------------------------------------------

// CallFrame is the execution state of a module body or function call.
type CallFrame struct {
	Code   *Code
	Locals []Value // nil for module code
	Stack  []Value
	IP     int
}

func (f *CallFrame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *CallFrame) pop() (Value, error) {
	n := len(f.Stack)
	if n == 0 {
		return nil, errorf("SystemError", "stack underflow")
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v, nil
}

func (f *CallFrame) popN(n int) ([]Value, error) {
	if n < 0 || n > len(f.Stack) {
		return nil, errorf("SystemError", "stack underflow")
	}
	start := len(f.Stack) - n
	vals := append([]Value(nil), f.Stack[start:]...)
	f.Stack = f.Stack[:start]
	return vals, nil
}

func (f *CallFrame) peek(depth int) (Value, error) {
	if depth < 1 || depth > len(f.Stack) {
		return nil, errorf("SystemError", "stack underflow")
	}
	return f.Stack[len(f.Stack)-depth], nil
}

func newLocals(code *Code) []Value {
	locals := make([]Value, len(code.Locals))
	for i := range locals {
		locals[i] = unbound
	}
	return locals
}

// checkInterval is how many instructions run between context checks.
const checkInterval = 1024

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (vm *VM) call(fn Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *Builtin:
		return f.Fn(vm, args)
	case *Function:
		return vm.callFunction(f, args)
	}
	return nil, typeErrorf("'%s' object is not callable", TypeName(fn))
}

func (vm *VM) callFunction(fn *Function, args []Value) (Value, error) {
	code := fn.Code
	if len(args) != code.ArgCount {
		return nil, typeErrorf("%s() takes %d positional argument%s but %d %s given",
			code.Name, code.ArgCount, plural(code.ArgCount), len(args), wasWere(len(args)))
	}
	if vm.depth >= vm.maxDepth {
		return nil, errorf("RecursionError", "maximum recursion depth exceeded")
	}
	vm.depth++
	defer func() { vm.depth-- }()

	frame := &CallFrame{Code: code, Locals: newLocals(code)}
	copy(frame.Locals, args)
	return vm.execute(frame)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}

// ---------------------------------------------------------------------------
// Interpreter loop
// ---------------------------------------------------------------------------

// execute runs frame until it returns. Errors raised by an instruction
// are stamped with its line and the code's name.
func (vm *VM) execute(frame *CallFrame) (Value, error) {
	code := frame.Code
	for frame.IP < len(code.Instructions) {
		in := code.Instructions[frame.IP]
		frame.IP++

		vm.steps++
		if vm.steps%checkInterval == 0 {
			if err := vm.ctx.Err(); err != nil {
				return nil, &RuntimeError{Kind: "Interrupted", Msg: err.Error(), Line: in.Line, Func: code.Name, Err: err}
			}
		}

		done, result, err := vm.step(frame, in)
		if err != nil {
			return nil, stamp(err, in.Line, code.Name)
		}
		if done {
			return result, nil
		}
	}
	return nil, stamp(errorf("SystemError", "fell off the end of %s", code.Name), 0, code.Name)
}

// stamp attaches a position to errors that do not have one yet.
func stamp(err error, line int, fn string) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Line == 0 {
			re.Line = line
			re.Func = fn
		}
		return re
	}
	return &RuntimeError{Kind: "Error", Msg: err.Error(), Line: line, Func: fn, Err: err}
}

func (vm *VM) lookupName(name string) (Value, error) {
	if v, ok := vm.LookupGlobal(name); ok {
		return v, nil
	}
	return nil, errorf("NameError", "name '%s' is not defined", name)
}

func nameAt(code *Code, idx int) (string, error) {
	if idx < 0 || idx >= len(code.Names) {
		return "", errorf("SystemError", "name index %d out of range", idx)
	}
	return code.Names[idx], nil
}

func localAt(frame *CallFrame, idx int) error {
	if frame.Locals == nil {
		return errorf("SystemError", "local access in module code")
	}
	if idx < 0 || idx >= len(frame.Locals) {
		return errorf("SystemError", "local index %d out of range", idx)
	}
	return nil
}

// step executes a single instruction. done is true when the frame returned.
func (vm *VM) step(frame *CallFrame, in Instruction) (done bool, result Value, err error) {
	code := frame.Code
	switch in.Op {
	case OpNop, OpResume, OpEndFor:

	case OpPopTop:
		_, err = frame.pop()

	case OpPushNull:
		frame.push(null)

	case OpCopy:
		var v Value
		if v, err = frame.peek(in.Arg); err == nil {
			frame.push(v)
		}

	case OpSwap:
		n := len(frame.Stack)
		if in.Arg < 1 || in.Arg > n {
			return false, nil, errorf("SystemError", "stack underflow")
		}
		frame.Stack[n-1], frame.Stack[n-in.Arg] = frame.Stack[n-in.Arg], frame.Stack[n-1]

	// Constants and names

	case OpLoadConst:
		if in.Arg < 0 || in.Arg >= len(code.Consts) {
			return false, nil, errorf("SystemError", "constant index %d out of range", in.Arg)
		}
		frame.push(code.Consts[in.Arg].Value())

	case OpLoadName:
		var name string
		if name, err = nameAt(code, in.Arg); err != nil {
			return
		}
		var v Value
		if v, err = vm.lookupName(name); err == nil {
			frame.push(v)
		}

	case OpStoreName, OpStoreGlobal:
		var name string
		if name, err = nameAt(code, in.Arg); err != nil {
			return
		}
		var v Value
		if v, err = frame.pop(); err == nil {
			vm.Globals[name] = v
		}

	case OpDeleteName:
		var name string
		if name, err = nameAt(code, in.Arg); err != nil {
			return
		}
		if _, ok := vm.Globals[name]; !ok {
			return false, nil, errorf("NameError", "name '%s' is not defined", name)
		}
		delete(vm.Globals, name)

	case OpLoadGlobal:
		idx, pushNull := DecodeGlobalArg(in.Arg)
		var name string
		if name, err = nameAt(code, idx); err != nil {
			return
		}
		var v Value
		if v, err = vm.lookupName(name); err != nil {
			return
		}
		if pushNull {
			frame.push(null)
		}
		frame.push(v)

	case OpLoadFast:
		if err = localAt(frame, in.Arg); err != nil {
			return
		}
		v := frame.Locals[in.Arg]
		if v == unbound {
			return false, nil, errorf("UnboundLocalError",
				"cannot access local variable '%s' where it is not associated with a value", code.Locals[in.Arg])
		}
		frame.push(v)

	case OpStoreFast:
		if err = localAt(frame, in.Arg); err != nil {
			return
		}
		var v Value
		if v, err = frame.pop(); err == nil {
			frame.Locals[in.Arg] = v
		}

	case OpDeleteFast:
		if err = localAt(frame, in.Arg); err != nil {
			return
		}
		if frame.Locals[in.Arg] == unbound {
			return false, nil, errorf("UnboundLocalError",
				"cannot access local variable '%s' where it is not associated with a value", code.Locals[in.Arg])
		}
		frame.Locals[in.Arg] = unbound

	// Operators

	case OpBinaryOp, OpCompareOp, OpIsOp, OpContainsOp:
		var operands []Value
		if operands, err = frame.popN(2); err != nil {
			return
		}
		var v Value
		if v, err = applyOperator(in.Op, in.Arg, operands[0], operands[1]); err == nil {
			frame.push(v)
		}

	case OpUnaryNot:
		var v Value
		if v, err = frame.pop(); err == nil {
			frame.push(!Truthy(v))
		}

	case OpUnaryNegative:
		var v Value
		if v, err = frame.pop(); err != nil {
			return
		}
		if v, err = Negate(v); err == nil {
			frame.push(v)
		}

	// Containers

	case OpBuildList:
		var items []Value
		if items, err = frame.popN(in.Arg); err == nil {
			frame.push(NewList(items...))
		}

	case OpBuildTuple:
		var items []Value
		if items, err = frame.popN(in.Arg); err == nil {
			frame.push(Tuple(items))
		}

	case OpBuildMap:
		var items []Value
		if items, err = frame.popN(2 * in.Arg); err != nil {
			return
		}
		m := NewMap()
		for i := 0; i < len(items); i += 2 {
			if err := m.Set(items[i], items[i+1]); err != nil {
				return false, nil, err
			}
		}
		frame.push(m)

	case OpMapAdd:
		var kv []Value
		if kv, err = frame.popN(2); err != nil {
			return
		}
		var target Value
		if target, err = frame.peek(in.Arg); err != nil {
			return
		}
		m, ok := target.(*Map)
		if !ok {
			return false, nil, errorf("SystemError", "MAP_ADD target is %s, not dict", TypeName(target))
		}
		if err := m.Set(kv[0], kv[1]); err != nil {
			return false, nil, err
		}

	case OpBinarySubscr:
		var operands []Value
		if operands, err = frame.popN(2); err != nil {
			return
		}
		var v Value
		if v, err = GetItem(operands[0], operands[1]); err == nil {
			frame.push(v)
		}

	case OpStoreSubscr:
		var operands []Value
		if operands, err = frame.popN(3); err == nil {
			err = SetItem(operands[0], operands[1], operands[2])
		}

	case OpDeleteSubscr:
		var operands []Value
		if operands, err = frame.popN(2); err == nil {
			err = DeleteItem(operands[0], operands[1])
		}

	// Calls and returns

	case OpCall:
		var callSite []Value
		if callSite, err = frame.popN(in.Arg + 2); err != nil {
			return
		}
		if _, ok := callSite[0].(*nullMarker); !ok {
			return false, nil, errorf("SystemError", "CALL without NULL below the callable")
		}
		var v Value
		if v, err = vm.call(callSite[1], callSite[2:]); err == nil {
			frame.push(v)
		}

	case OpMakeFunction:
		var v Value
		if v, err = frame.pop(); err != nil {
			return
		}
		c, ok := v.(*Code)
		if !ok {
			return false, nil, errorf("SystemError", "MAKE_FUNCTION needs a code object, got %s", TypeName(v))
		}
		frame.push(&Function{Code: c})

	case OpReturnValue:
		var v Value
		if v, err = frame.pop(); err == nil {
			return true, v, nil
		}

	// Iteration

	case OpGetIter:
		var v Value
		if v, err = frame.pop(); err != nil {
			return
		}
		var it *Iterator
		if it, err = Iterate(v); err == nil {
			frame.push(it)
		}

	case OpForIter:
		var top Value
		if top, err = frame.peek(1); err != nil {
			return
		}
		it, ok := top.(*Iterator)
		if !ok {
			return false, nil, errorf("SystemError", "FOR_ITER on %s", TypeName(top))
		}
		if v, more := it.Next(); more {
			frame.push(v)
		} else {
			frame.IP = in.Arg
		}

	// Control flow

	case OpJumpForward, OpJumpBackward:
		frame.IP = in.Arg

	case OpPopJumpIfTrue, OpPopJumpIfFalse:
		var v Value
		if v, err = frame.pop(); err != nil {
			return
		}
		if Truthy(v) == (in.Op == OpPopJumpIfTrue) {
			frame.IP = in.Arg
		}

	default:
		return false, nil, errorf("SystemError", "unknown opcode %s", in.Op)
	}
	return false, nil, err
}

// applyOperator evaluates one of the four operator families.
func applyOperator(op Opcode, arg int, lhs, rhs Value) (Value, error) {
	switch op {
	case OpBinaryOp:
		return BinaryOperation(BinaryOp(arg), lhs, rhs)
	case OpCompareOp:
		return Compare(CompareOp(arg), lhs, rhs)
	case OpIsOp:
		same := Identical(lhs, rhs)
		if IsOp(arg) == IsNotSame {
			return !same, nil
		}
		return same, nil
	case OpContainsOp:
		in, err := Contains(rhs, lhs)
		if err != nil {
			return nil, err
		}
		if ContainsOp(arg) == ContainsNotIn {
			return !in, nil
		}
		return in, nil
	}
	return nil, errorf("SystemError", "not an operator: %s", op)
}
