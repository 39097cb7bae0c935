package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func ins(op Opcode, arg int) Instruction {
	return Instruction{Op: op, Arg: arg, Line: 1}
}

func bare(op Opcode) Instruction {
	return Instruction{Op: op, Line: 1}
}

func consts(t *testing.T, vals ...interface{}) []Constant {
	t.Helper()
	out := make([]Constant, len(vals))
	for i, v := range vals {
		c, err := ConstantOf(v)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = c
	}
	return out
}

func run(t *testing.T, code *Code, opts ...Option) (Value, error) {
	t.Helper()
	return NewVM(opts...).Run(context.Background(), code)
}

func runtimeKind(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func TestRunArithmetic(t *testing.T) {
	code := &Code{
		Name:   "m",
		Consts: consts(t, int64(2), int64(3), 1.5),
		Instructions: []Instruction{
			ins(OpResume, 0),
			ins(OpLoadConst, 0),
			ins(OpLoadConst, 1),
			ins(OpBinaryOp, int(BinaryPower)),
			ins(OpLoadConst, 2),
			ins(OpBinaryOp, int(BinaryMultiply)),
			bare(OpUnaryNegative),
			bare(OpReturnValue),
		},
	}
	got, err := run(t, code)
	if err != nil {
		t.Fatal(err)
	}
	if got != -12.0 {
		t.Errorf("result = %#v, want -12.0", got)
	}
}

func TestRunNamespace(t *testing.T) {
	code := &Code{
		Name:   "m",
		Names:  []string{"x", "y"},
		Consts: consts(t, "hello", nil),
		Instructions: []Instruction{
			ins(OpLoadConst, 0),
			ins(OpStoreName, 0),
			ins(OpLoadName, 0),
			ins(OpStoreName, 1),
			ins(OpDeleteName, 0),
			ins(OpLoadConst, 1),
			bare(OpReturnValue),
		},
	}
	m := NewVM()
	if _, err := m.Run(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.LookupGlobal("x"); ok {
		t.Error("x should have been deleted")
	}
	if v, ok := m.LookupGlobal("y"); !ok || v != "hello" {
		t.Errorf("y = %#v, %v", v, ok)
	}
	if names := m.GlobalNames(); len(names) != 1 || names[0] != "y" {
		t.Errorf("GlobalNames() = %v", names)
	}
}

func TestRunCallConvention(t *testing.T) {
	var out bytes.Buffer
	code := &Code{
		Name:   "m",
		Names:  []string{"print", "len"},
		Consts: consts(t, "abc", nil),
		Instructions: []Instruction{
			// print(len("abc")) with the sentinel from the LOAD_GLOBAL flag
			ins(OpLoadGlobal, GlobalArg(0, true)),
			ins(OpLoadGlobal, GlobalArg(1, true)),
			ins(OpLoadConst, 0),
			ins(OpCall, 1),
			ins(OpCall, 1),
			bare(OpPopTop),
			// and with an explicit PUSH_NULL
			bare(OpPushNull),
			ins(OpLoadName, 0),
			ins(OpLoadConst, 0),
			ins(OpCall, 1),
			bare(OpPopTop),
			ins(OpLoadConst, 1),
			bare(OpReturnValue),
		},
	}
	if _, err := run(t, code, WithStdout(&out)); err != nil {
		t.Fatal(err)
	}
	if out.String() != "3\nabc\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunCallWithoutNull(t *testing.T) {
	code := &Code{
		Name:   "m",
		Names:  []string{"len"},
		Consts: consts(t, "abc"),
		Instructions: []Instruction{
			ins(OpLoadGlobal, GlobalArg(0, false)),
			ins(OpLoadConst, 0),
			ins(OpCall, 1),
			bare(OpReturnValue),
		},
	}
	_, err := run(t, code)
	if runtimeKind(err) != "SystemError" {
		t.Fatalf("err = %v, want SystemError", err)
	}
}

// addFunction is "def add(a, b): t = a + b; return t".
func addFunction(t *testing.T) *Code {
	return &Code{
		Name:     "add",
		ArgCount: 2,
		ArgNames: []string{"a", "b"},
		Locals:   []string{"a", "b", "t"},
		Callable: true,
		Instructions: []Instruction{
			ins(OpResume, 0),
			ins(OpLoadFast, 0),
			ins(OpLoadFast, 1),
			ins(OpBinaryOp, int(BinaryAdd)),
			ins(OpStoreFast, 2),
			ins(OpLoadFast, 2),
			bare(OpReturnValue),
		},
	}
}

func TestRunFunctions(t *testing.T) {
	code := &Code{
		Name:   "m",
		Names:  []string{"add", "r"},
		Consts: consts(t, addFunction(t), int64(40), int64(2), nil),
		Instructions: []Instruction{
			ins(OpLoadConst, 0),
			bare(OpMakeFunction),
			ins(OpStoreName, 0),
			ins(OpLoadGlobal, GlobalArg(0, true)),
			ins(OpLoadConst, 1),
			ins(OpLoadConst, 2),
			ins(OpCall, 2),
			ins(OpStoreName, 1),
			ins(OpLoadConst, 3),
			bare(OpReturnValue),
		},
	}
	m := NewVM()
	if _, err := m.Run(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	if r, _ := m.LookupGlobal("r"); r != int64(42) {
		t.Errorf("r = %#v, want 42", r)
	}

	fn, _ := m.LookupGlobal("add")
	got, err := m.Call(context.Background(), fn, "a", "b")
	if err != nil || got != "ab" {
		t.Errorf("Call(add) = %#v, %v", got, err)
	}
	_, err = m.Call(context.Background(), fn, int64(1))
	if runtimeKind(err) != "TypeError" || !strings.Contains(err.Error(), "takes 2 positional arguments but 1 was given") {
		t.Errorf("arity err = %v", err)
	}
	if _, err := m.Call(context.Background(), int64(3)); runtimeKind(err) != "TypeError" {
		t.Errorf("calling an int: err = %v", err)
	}
}

func TestRunUnboundLocal(t *testing.T) {
	code := &Code{
		Name:     "f",
		Locals:   []string{"x"},
		Callable: true,
		Instructions: []Instruction{
			{Op: OpLoadFast, Arg: 0, Line: 7},
			bare(OpReturnValue),
		},
	}
	_, err := run(t, code)
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind != "UnboundLocalError" {
		t.Fatalf("err = %v, want UnboundLocalError", err)
	}
	if re.Line != 7 || re.Func != "f" {
		t.Errorf("position = line %d in %q, want line 7 in f", re.Line, re.Func)
	}
	if !strings.Contains(re.Error(), "local variable 'x'") {
		t.Errorf("message = %q", re.Error())
	}
}

func TestRunLocalInModuleCode(t *testing.T) {
	code := &Code{
		Name:         "m",
		Locals:       []string{"x"},
		Instructions: []Instruction{ins(OpLoadFast, 0), bare(OpReturnValue)},
	}
	if _, err := run(t, code); runtimeKind(err) != "SystemError" {
		t.Fatalf("err = %v, want SystemError", err)
	}
}

func TestRunForLoop(t *testing.T) {
	// total = 0; for i in range(1, 5): total = total + i
	code := &Code{
		Name:   "m",
		Names:  []string{"range", "total", "i"},
		Consts: consts(t, int64(0), int64(1), int64(5)),
		Instructions: []Instruction{
			ins(OpLoadConst, 0),                    // 0
			ins(OpStoreName, 1),                    // 1
			bare(OpPushNull),                       // 2
			ins(OpLoadGlobal, GlobalArg(0, false)), // 3
			ins(OpLoadConst, 1),                    // 4
			ins(OpLoadConst, 2),                    // 5
			ins(OpCall, 2),                         // 6
			bare(OpGetIter),                        // 7
			ins(OpForIter, 15),                     // 8
			ins(OpStoreName, 2),                    // 9
			ins(OpLoadName, 1),                     // 10
			ins(OpLoadName, 2),                     // 11
			ins(OpBinaryOp, int(BinaryAdd)),        // 12
			ins(OpStoreName, 1),                    // 13
			ins(OpJumpBackward, 8),                 // 14
			bare(OpEndFor),                         // 15
			bare(OpPopTop),                         // 16
			ins(OpLoadName, 1),                     // 17
			bare(OpReturnValue),                    // 18
		},
	}
	got, err := run(t, code)
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(10) {
		t.Errorf("total = %#v, want 10", got)
	}
}

func TestRunConditionalJumps(t *testing.T) {
	for _, tc := range []struct {
		cond Value
		want Value
	}{
		{true, "yes"},
		{int64(0), "no"},
		{"", "no"},
		{NewList(int64(1)), "yes"},
	} {
		code := &Code{
			Name:   "m",
			Consts: consts(t, "yes", "no"),
			Instructions: []Instruction{
				ins(OpLoadName, 0),
				ins(OpPopJumpIfFalse, 4),
				ins(OpLoadConst, 0),
				bare(OpReturnValue),
				ins(OpLoadConst, 1),
				bare(OpReturnValue),
			},
			Names: []string{"cond"},
		}
		m := NewVM()
		m.SetGlobal("cond", tc.cond)
		got, err := m.Run(context.Background(), code)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("cond %s: got %v, want %v", Repr(tc.cond), got, tc.want)
		}
	}
}

func TestRunContainers(t *testing.T) {
	code := &Code{
		Name:   "m",
		Names:  []string{"m", "v"},
		Consts: consts(t, "a", int64(1), "b", int64(2), int64(0), int64(9), nil),
		Instructions: []Instruction{
			// m = {"a": 1}; m["b"] = 2
			ins(OpLoadConst, 0),
			ins(OpLoadConst, 1),
			ins(OpBuildMap, 1),
			ins(OpLoadConst, 2),
			ins(OpLoadConst, 3),
			ins(OpMapAdd, 1),
			ins(OpStoreName, 0),
			// v = [1, 2]; v[0] = 9; del v[1]
			ins(OpLoadConst, 1),
			ins(OpLoadConst, 3),
			ins(OpBuildList, 2),
			ins(OpStoreName, 1),
			ins(OpLoadName, 1),
			ins(OpLoadConst, 4),
			ins(OpLoadConst, 5),
			bare(OpStoreSubscr),
			ins(OpLoadName, 1),
			ins(OpLoadConst, 1),
			bare(OpDeleteSubscr),
			// return m["b"]
			ins(OpLoadName, 0),
			ins(OpLoadConst, 2),
			bare(OpBinarySubscr),
			bare(OpReturnValue),
		},
	}
	m := NewVM()
	got, err := m.Run(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(2) {
		t.Errorf("m['b'] = %#v, want 2", got)
	}
	mv, _ := m.LookupGlobal("m")
	if Repr(mv) != "{'a': 1, 'b': 2}" {
		t.Errorf("m = %s", Repr(mv))
	}
	v, _ := m.LookupGlobal("v")
	if Repr(v) != "[9]" {
		t.Errorf("v = %s", Repr(v))
	}
}

func TestRunStackShuffles(t *testing.T) {
	code := &Code{
		Name:   "m",
		Consts: consts(t, int64(1), int64(2)),
		Instructions: []Instruction{
			ins(OpLoadConst, 0),
			ins(OpLoadConst, 1),
			ins(OpSwap, 2),
			ins(OpCopy, 2),
			ins(OpBuildTuple, 3),
			bare(OpReturnValue),
		},
	}
	got, err := run(t, code)
	if err != nil {
		t.Fatal(err)
	}
	if Repr(got) != "(2, 1, 2)" {
		t.Errorf("result = %s, want (2, 1, 2)", Repr(got))
	}
}

func TestRunDefects(t *testing.T) {
	tests := []struct {
		name string
		code *Code
	}{
		{"stack underflow", &Code{Name: "m", Instructions: []Instruction{bare(OpPopTop)}}},
		{"bad constant", &Code{Name: "m", Instructions: []Instruction{ins(OpLoadConst, 3)}}},
		{"bad name", &Code{Name: "m", Instructions: []Instruction{ins(OpLoadName, 0)}}},
		{"fell off the end", &Code{Name: "m", Instructions: []Instruction{bare(OpNop)}}},
		{"unknown opcode", &Code{Name: "m", Instructions: []Instruction{bare(Opcode(0xEE))}}},
		{"make function from int", &Code{
			Name:         "m",
			Consts:       consts(t, int64(1)),
			Instructions: []Instruction{ins(OpLoadConst, 0), bare(OpMakeFunction)},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := run(t, tc.code); runtimeKind(err) != "SystemError" {
				t.Errorf("err = %v, want SystemError", err)
			}
		})
	}
	if _, err := NewVM().Run(context.Background(), nil); runtimeKind(err) != "SystemError" {
		t.Errorf("nil code: err = %v", err)
	}
}

func TestRunRecursionLimit(t *testing.T) {
	// def f(): return f()
	f := &Code{
		Name:     "f",
		Names:    []string{"f"},
		Callable: true,
		Instructions: []Instruction{
			ins(OpLoadGlobal, GlobalArg(0, true)),
			ins(OpCall, 0),
			bare(OpReturnValue),
		},
	}
	code := &Code{
		Name:   "m",
		Names:  []string{"f"},
		Consts: consts(t, f),
		Instructions: []Instruction{
			ins(OpLoadConst, 0),
			bare(OpMakeFunction),
			ins(OpStoreName, 0),
			ins(OpLoadGlobal, GlobalArg(0, true)),
			ins(OpCall, 0),
			bare(OpReturnValue),
		},
	}
	_, err := run(t, code, WithMaxDepth(20))
	if runtimeKind(err) != "RecursionError" {
		t.Fatalf("err = %v, want RecursionError", err)
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	code := &Code{
		Name:         "spin",
		Instructions: []Instruction{bare(OpNop), ins(OpJumpBackward, 0)},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := NewVM().Run(ctx, code)
	if !errors.Is(err, context.DeadlineExceeded) || runtimeKind(err) != "Interrupted" {
		t.Fatalf("err = %v, want an Interrupted deadline error", err)
	}
}

func TestWithBuiltinOverrides(t *testing.T) {
	var seen []Value
	m := NewVM(WithBuiltin("print", func(_ *VM, args []Value) (Value, error) {
		seen = append(seen, args...)
		return nil, nil
	}))
	fn, ok := m.LookupGlobal("print")
	if !ok {
		t.Fatal("print not installed")
	}
	if _, err := m.Call(context.Background(), fn, int64(1), "x"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Errorf("seen = %v", seen)
	}

	// module names shadow builtins
	m.SetGlobal("print", int64(5))
	if v, _ := m.LookupGlobal("print"); v != int64(5) {
		t.Errorf("LookupGlobal(print) = %#v, want the module value", v)
	}

	names := m.Builtins()
	for _, want := range []string{"append", "input", "len", "print", "range", "reverse"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Builtins() = %v lacks %s", names, want)
		}
	}
}
