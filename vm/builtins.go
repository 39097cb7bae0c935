package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

func (vm *VM) registerBuiltins() {
	for name, fn := range map[string]func(*VM, []Value) (Value, error){
		"print":     builtinPrint,
		"input":     builtinInput,
		"range":     builtinRange,
		"len":       builtinLen,
		"int":       builtinInt,
		"float":     builtinFloat,
		"str":       builtinStr,
		"append":    builtinAppend,
		"pop":       builtinPop,
		"remove":    builtinRemove,
		"reverse":   builtinReverse,
		"frozenset": builtinFrozenSet,
	} {
		vm.builtins[name] = &Builtin{Name: name, Fn: fn}
	}
}

func expectArgs(name string, args []Value, min, max int) error {
	if len(args) >= min && len(args) <= max {
		return nil
	}
	switch {
	case min == max:
		return typeErrorf("%s() takes exactly %d argument%s (%d given)", name, min, plural(min), len(args))
	case len(args) < min:
		return typeErrorf("%s() expected at least %d argument%s, got %d", name, min, plural(min), len(args))
	}
	return typeErrorf("%s() expected at most %d argument%s, got %d", name, max, plural(max), len(args))
}

func listArg(name string, v Value) (*List, error) {
	l, ok := v.(*List)
	if !ok {
		return nil, typeErrorf("%s() argument must be a list, not %s", name, TypeName(v))
	}
	return l, nil
}

func intArg(name string, v Value) (int64, error) {
	n, ok := asInt(v)
	if !ok {
		return 0, typeErrorf("'%s' object cannot be interpreted as an integer in %s()", TypeName(v), name)
	}
	return n, nil
}

func builtinPrint(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	if _, err := fmt.Fprintln(vm.stdout, strings.Join(parts, " ")); err != nil {
		return nil, errorf("OSError", "print: %v", err)
	}
	return nil, nil
}

func builtinInput(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("input", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		fmt.Fprint(vm.stdout, Str(args[0]))
	}
	line, err := vm.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return nil, errorf("EOFError", "EOF when reading a line")
		}
		return nil, errorf("OSError", "input: %v", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func builtinRange(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("range", args, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int64, len(args))
	for i, a := range args {
		n, err := intArg("range", a)
		if err != nil {
			return nil, err
		}
		bounds[i] = n
	}
	r := &Range{Step: 1}
	switch len(bounds) {
	case 1:
		r.Stop = bounds[0]
	case 2:
		r.Start, r.Stop = bounds[0], bounds[1]
	case 3:
		r.Start, r.Stop, r.Step = bounds[0], bounds[1], bounds[2]
	}
	if r.Step == 0 {
		return nil, valueErrorf("range() arg 3 must not be zero")
	}
	return r, nil
}

func builtinLen(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("len", args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case string:
		return int64(len([]rune(x))), nil
	case *List:
		return int64(len(x.Items)), nil
	case Tuple:
		return int64(len(x)), nil
	case *Map:
		return int64(x.Len()), nil
	case *FrozenSet:
		return int64(x.Len()), nil
	case *Range:
		return x.Len(), nil
	}
	return nil, typeErrorf("object of type '%s' has no len()", TypeName(args[0]))
}

func builtinFrozenSet(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("frozenset", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return &FrozenSet{index: map[Value]struct{}{}}, nil
	}
	if s, ok := args[0].(*FrozenSet); ok {
		return s, nil
	}
	it, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	var items []Value
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		items = append(items, v)
	}
	s, err := NewFrozenSet(items...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func builtinInt(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("int", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return int64(0), nil
	}
	switch x := args[0].(type) {
	case int64:
		return x, nil
	case bool:
		n, _ := asInt(x)
		return n, nil
	case float64:
		if math.IsNaN(x) {
			return nil, valueErrorf("cannot convert float NaN to integer")
		}
		if math.IsInf(x, 0) {
			return nil, errorf("OverflowError", "cannot convert float infinity to integer")
		}
		if !inInt64Range(x) {
			return nil, errorf("OverflowError", "float %s is out of integer range", formatFloat(x))
		}
		return int64(x), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, valueErrorf("invalid literal for int() with base 10: %s", Repr(x))
		}
		return n, nil
	}
	return nil, typeErrorf("int() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func builtinFloat(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if f, ok := asFloat(args[0]); ok {
		return f, nil
	}
	if s, ok := args[0].(string); ok {
		trimmed := strings.TrimSpace(s)
		switch strings.ToLower(trimmed) {
		case "inf", "+inf", "infinity", "+infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan", "+nan", "-nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, "_", ""), 64)
		if err != nil {
			return nil, valueErrorf("could not convert string to float: %s", Repr(s))
		}
		return f, nil
	}
	return nil, typeErrorf("float() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func builtinStr(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return Str(args[0]), nil
}

func builtinAppend(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("append", args, 2, 2); err != nil {
		return nil, err
	}
	l, err := listArg("append", args[0])
	if err != nil {
		return nil, err
	}
	l.Items = append(l.Items, args[1])
	return nil, nil
}

func builtinPop(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("pop", args, 1, 2); err != nil {
		return nil, err
	}
	l, err := listArg("pop", args[0])
	if err != nil {
		return nil, err
	}
	if len(l.Items) == 0 {
		return nil, errorf("IndexError", "pop from empty list")
	}
	idx := len(l.Items) - 1
	if len(args) == 2 {
		n, err := intArg("pop", args[1])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n += int64(len(l.Items))
		}
		if n < 0 || n >= int64(len(l.Items)) {
			return nil, errorf("IndexError", "pop index out of range")
		}
		idx = int(n)
	}
	v := l.Items[idx]
	l.Items = append(l.Items[:idx], l.Items[idx+1:]...)
	return v, nil
}

func builtinRemove(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("remove", args, 2, 2); err != nil {
		return nil, err
	}
	l, err := listArg("remove", args[0])
	if err != nil {
		return nil, err
	}
	for i, it := range l.Items {
		if Equal(it, args[1]) {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return nil, nil
		}
	}
	return nil, valueErrorf("list.remove(x): x not in list")
}

func builtinReverse(vm *VM, args []Value) (Value, error) {
	if err := expectArgs("reverse", args, 1, 1); err != nil {
		return nil, err
	}
	l, err := listArg("reverse", args[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
		l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
	}
	return nil, nil
}
