package compiler

import (
	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Calling-convention normalizer
// ---------------------------------------------------------------------------

// Normalize rewrites every call site into the shape the VM expects:
//
//	PUSH_NULL; <callable>; <arg1> ... <argN>; CALL N
//
// Sentinels between the callable and the CALL are removed, the last
// sentinel on the call's line is moved right before the callable (one is
// inserted when none exists), and LOAD_GLOBAL callables lose their
// push-null flag. Bodies of nested callables are normalized too. The
// input is not modified and Normalize(Normalize(x)) equals Normalize(x).
func Normalize(items []ir.Item) []ir.Item {
	s := make([]ir.Item, len(items))
	for i, it := range items {
		s[i] = normalizeOperand(it)
	}

	siteStart := 0
	for i := 0; i < len(s); i++ {
		call, ok := s[i].(*ir.Operation)
		if !ok || call.Op != vm.OpCall {
			continue
		}
		nargs, _ := call.Arg.(int)
		callee := findCallable(s, i, nargs)
		if callee < 0 {
			siteStart = i + 1
			continue
		}

		if op := s[callee].(*ir.Operation); op.Op == vm.OpLoadGlobal {
			if ref, ok := op.Arg.(vm.GlobalRef); ok && ref.PushNull {
				cleared := *op
				cleared.Arg = vm.GlobalRef{Name: ref.Name}
				s[callee] = &cleared
			}
		}

		for j := callee + 1; j < i; {
			if isPushNull(s[j]) {
				s = removeAt(s, j)
				i--
				continue
			}
			j++
		}

		var nulls []int
		for j := siteStart; j < callee; j++ {
			if isPushNull(s[j]) && s[j].SourceLine() == call.Line {
				nulls = append(nulls, j)
			}
		}
		if len(nulls) > 0 {
			kept := s[nulls[len(nulls)-1]]
			for k := len(nulls) - 1; k >= 0; k-- {
				s = removeAt(s, nulls[k])
				callee--
				i--
			}
			s = insertAt(s, callee, kept)
			callee++
			i++
		}
		if callee == 0 || !isPushNull(s[callee-1]) {
			s = insertAt(s, callee, ir.Bare(vm.OpPushNull, s[callee].SourceLine()))
			callee++
			i++
		}
		siteStart = i + 1
	}
	return s
}

// normalizeOperand normalizes the body of a callable constant.
func normalizeOperand(it ir.Item) ir.Item {
	op, ok := it.(*ir.Operation)
	if !ok || op.Op != vm.OpLoadConst {
		return it
	}
	c, ok := op.Arg.(*ir.Callable)
	if !ok {
		return it
	}
	nc := *c
	nc.Body = Normalize(c.Body)
	cp := *op
	cp.Arg = &nc
	return &cp
}

// findCallable walks back from the CALL at index call over nargs argument
// pushes and returns the index of the callable-load, or -1. A BUILD_LIST or
// BUILD_TUPLE argument covers the pushes of its own elements.
func findCallable(s []ir.Item, call, nargs int) int {
	cursor := call
	for remaining := nargs; remaining > 0; {
		cursor = prevOperation(s, cursor)
		if cursor < 0 {
			return -1
		}
		if isPushNull(s[cursor]) {
			continue
		}
		remaining += buildCount(s[cursor].(*ir.Operation)) - 1
	}
	c := prevOperation(s, cursor)
	for c >= 0 && isPushNull(s[c]) {
		c = prevOperation(s, c)
	}
	if c < 0 || !isCallableLoad(s[c]) {
		return -1
	}
	return c
}

func buildCount(op *ir.Operation) int {
	if op.Op != vm.OpBuildList && op.Op != vm.OpBuildTuple {
		return 0
	}
	if n, ok := op.Arg.(int); ok && n > 0 {
		return n
	}
	return 0
}

func prevOperation(s []ir.Item, from int) int {
	for j := from - 1; j >= 0; j-- {
		if _, ok := s[j].(*ir.Operation); ok {
			return j
		}
	}
	return -1
}

func isPushNull(it ir.Item) bool {
	op, ok := it.(*ir.Operation)
	return ok && op.Op == vm.OpPushNull
}

func isCallableLoad(it ir.Item) bool {
	op, ok := it.(*ir.Operation)
	if !ok {
		return false
	}
	switch op.Op {
	case vm.OpLoadGlobal, vm.OpLoadName, vm.OpLoadFast:
		return true
	}
	return false
}

func removeAt(s []ir.Item, i int) []ir.Item {
	return append(s[:i], s[i+1:]...)
}

func insertAt(s []ir.Item, i int, it ir.Item) []ir.Item {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = it
	return s
}
