package compiler

import (
	"fmt"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Function lowering
// ---------------------------------------------------------------------------

// lowerFunction resolves a SUB body in its own scope and replaces the
// definition with code that binds the function to its name.
func lowerFunction(fd *ir.FuncDef) ([]ir.Item, error) {
	body, err := resolveScope(fd.Body, true, "SUB "+fd.Name)
	if err != nil {
		return nil, err
	}

	locals, _ := ClassifyScope(fd.Params, body)
	isLocal := make(map[string]bool, len(locals))
	for _, name := range locals {
		isLocal[name] = true
	}

	body = localizeNames(body, isLocal)
	body = keepFirstResume(body)
	if !endsWithReturn(body) {
		line := fd.Line
		if n := len(body); n > 0 && body[n-1].SourceLine() > 0 {
			line = body[n-1].SourceLine()
		}
		body = append(body,
			ir.Op(vm.OpLoadConst, nil, line),
			ir.Bare(vm.OpReturnValue, line),
		)
	}

	for i, it := range body {
		if op, ok := it.(*ir.Operation); ok && op.Op.IsNameOp() {
			return nil, &InternalError{
				Pass:   "function " + fd.Name,
				Index:  i,
				Detail: fmt.Sprintf("namespace operation %s survived scope rewriting", op),
				Dump:   ir.Dump(body),
			}
		}
	}
	log.Debugf("lowered SUB %s: %d params, %d locals, %d items", fd.Name, len(fd.Params), len(locals), len(body))

	callable := &ir.Callable{
		Name:   fd.Name,
		Params: append([]string{}, fd.Params...),
		Body:   body,
		Line:   fd.Line,
	}
	return []ir.Item{
		ir.Op(vm.OpLoadConst, callable, fd.Line),
		ir.Bare(vm.OpMakeFunction, fd.Line),
		ir.Op(vm.OpStoreName, fd.Name, fd.Line),
	}, nil
}

// ClassifyScope partitions the names used by a resolved function body.
// Locals are the parameters plus every name stored or deleted; globals
// are all other names the body reads. Both lists keep first-seen order.
func ClassifyScope(params []string, items []ir.Item) (locals, globals []string) {
	seen := make(map[string]bool)
	for _, p := range params {
		if !seen[p] {
			seen[p] = true
			locals = append(locals, p)
		}
	}
	for _, it := range items {
		op, ok := it.(*ir.Operation)
		if !ok {
			continue
		}
		switch op.Op {
		case vm.OpStoreName, vm.OpStoreFast, vm.OpDeleteName, vm.OpDeleteFast:
			if name, ok := op.Arg.(string); ok && !seen[name] {
				seen[name] = true
				locals = append(locals, name)
			}
		}
	}

	isGlobal := make(map[string]bool)
	for _, it := range items {
		op, ok := it.(*ir.Operation)
		if !ok {
			continue
		}
		var name string
		switch op.Op {
		case vm.OpLoadName:
			name, _ = op.Arg.(string)
		case vm.OpLoadGlobal:
			if ref, ok := op.Arg.(vm.GlobalRef); ok {
				name = ref.Name
			}
		case vm.OpStoreGlobal:
			name, _ = op.Arg.(string)
		default:
			continue
		}
		if name == "" || seen[name] || isGlobal[name] {
			continue
		}
		isGlobal[name] = true
		globals = append(globals, name)
	}
	return locals, globals
}

// localizeNames rewrites namespace operations to local-slot or global
// access. A global load of a name that is local to the function, such as a
// nested SUB, becomes a local load.
func localizeNames(items []ir.Item, isLocal map[string]bool) []ir.Item {
	out := make([]ir.Item, 0, len(items))
	for _, it := range items {
		op, ok := it.(*ir.Operation)
		if !ok {
			out = append(out, it)
			continue
		}
		if ref, isRef := op.Arg.(vm.GlobalRef); op.Op == vm.OpLoadGlobal && isRef && isLocal[ref.Name] {
			if ref.PushNull {
				out = append(out, ir.Bare(vm.OpPushNull, op.Line))
			}
			out = append(out, ir.Op(vm.OpLoadFast, ref.Name, op.Line))
			continue
		}
		if !op.Op.IsNameOp() {
			out = append(out, it)
			continue
		}
		name, _ := op.Arg.(string)
		rewritten := *op
		switch op.Op {
		case vm.OpLoadName:
			if isLocal[name] {
				rewritten.Op = vm.OpLoadFast
			} else {
				rewritten.Op = vm.OpLoadGlobal
				rewritten.Arg = vm.GlobalRef{Name: name}
			}
		case vm.OpStoreName:
			rewritten.Op = vm.OpStoreFast
		case vm.OpDeleteName:
			rewritten.Op = vm.OpDeleteFast
		}
		out = append(out, &rewritten)
	}
	return out
}

// keepFirstResume drops every RESUME after the first.
func keepFirstResume(items []ir.Item) []ir.Item {
	out := items[:0:0]
	seen := false
	for _, it := range items {
		if op, ok := it.(*ir.Operation); ok && op.Op == vm.OpResume {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, it)
	}
	return out
}
