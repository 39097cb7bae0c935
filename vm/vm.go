package vm

import (
	"bufio"
	"context"
	"io"
	"os"
	"sort"
)

// ---------------------------------------------------------------------------
// VM: The paxy virtual machine
// ---------------------------------------------------------------------------

// DefaultMaxDepth bounds nested calls unless WithMaxDepth says otherwise.
const DefaultMaxDepth = 1000

// VM executes linked code. A VM owns one module namespace; it is not safe
// for concurrent use.
type VM struct {
	// Globals is the module namespace shared by module code and every
	// function it defines.
	Globals map[string]Value

	builtins map[string]*Builtin

	stdout   io.Writer
	stdin    *bufio.Reader
	maxDepth int

	// Interpreter state
	ctx   context.Context
	depth int
	steps int
}

// Option configures a VM.
type Option func(*VM)

// WithStdout sets where print writes.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) {
		vm.stdout = w
	}
}

// WithStdin sets where input reads from.
func WithStdin(r io.Reader) Option {
	return func(vm *VM) {
		vm.stdin = bufio.NewReader(r)
	}
}

// WithMaxDepth limits the call depth before a RecursionError.
func WithMaxDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxDepth = n
		}
	}
}

// WithBuiltin registers or replaces a host function.
func WithBuiltin(name string, fn func(vm *VM, args []Value) (Value, error)) Option {
	return func(vm *VM) {
		vm.builtins[name] = &Builtin{Name: name, Fn: fn}
	}
}

// NewVM creates a VM with the standard builtins installed.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		Globals:  make(map[string]Value),
		builtins: make(map[string]*Builtin),
		stdout:   os.Stdout,
		stdin:    bufio.NewReader(os.Stdin),
		maxDepth: DefaultMaxDepth,
		ctx:      context.Background(),
	}
	vm.registerBuiltins()
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Run executes module code in the VM's namespace and returns the value
// the module returned.
func (vm *VM) Run(ctx context.Context, code *Code) (Value, error) {
	if code == nil {
		return nil, errorf("SystemError", "no code to run")
	}
	vm.ctx = ctx
	vm.depth = 0
	frame := &CallFrame{Code: code}
	if code.IsFunction() {
		frame.Locals = newLocals(code)
	}
	return vm.execute(frame)
}

// Call invokes a function or builtin value with positional arguments.
func (vm *VM) Call(ctx context.Context, fn Value, args ...Value) (Value, error) {
	vm.ctx = ctx
	return vm.call(fn, args)
}

// LookupGlobal returns a module-level value, falling back to builtins.
func (vm *VM) LookupGlobal(name string) (Value, bool) {
	if v, ok := vm.Globals[name]; ok {
		return v, true
	}
	if b, ok := vm.builtins[name]; ok {
		return b, true
	}
	return nil, false
}

// SetGlobal sets a module-level value.
func (vm *VM) SetGlobal(name string, value Value) {
	vm.Globals[name] = value
}

// GlobalNames returns the names bound in the module namespace, sorted.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.Globals))
	for name := range vm.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns the names of the installed host functions, sorted.
func (vm *VM) Builtins() []string {
	names := make([]string, 0, len(vm.builtins))
	for name := range vm.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
