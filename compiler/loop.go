package compiler

import (
	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Loop lowering
// ---------------------------------------------------------------------------

// inlineLoop expands RNG into a range() iteration:
//
//	PUSH_NULL; LOAD_GLOBAL range; <start>; <end>; [<step>]; CALL n; GET_ITER
//	head: FOR_ITER end; STORE var; <body>; JUMP_BACKWARD head
//	end:  END_FOR; POP_TOP
//
// The body is rewritten into the enclosing stream, so jumps in the body
// may target labels of the enclosing scope.
func (a *assembler) inlineLoop(loop *ir.LoopBlock) error {
	line := loop.Line
	head := ir.NewLabel("rng_head_" + loop.Var)
	end := ir.NewLabel("rng_end_" + loop.Var)

	a.emit(ir.Bare(vm.OpPushNull, line))
	a.emit(ir.Op(vm.OpLoadGlobal, vm.GlobalRef{Name: "range"}, line))
	a.emit(loadBound(loop.Start, line))
	a.emit(loadBound(loop.End, line))
	argc := 2
	if loop.HasStep {
		a.emit(loadBound(loop.Step, line))
		argc++
	}
	a.emit(ir.Op(vm.OpCall, argc, line))
	a.emit(ir.Bare(vm.OpGetIter, line))

	a.emit(head)
	a.emit(ir.Op(vm.OpForIter, end, line))
	store := vm.OpStoreName
	if a.insideFunction {
		store = vm.OpStoreFast
	}
	a.emit(ir.Op(store, loop.Var, line))

	if err := a.rewrite(loopBodyItems(loop.Body), true); err != nil {
		return err
	}

	a.emit(ir.Op(vm.OpJumpBackward, head, line))
	a.emit(end)
	a.emit(ir.Bare(vm.OpEndFor, line))
	a.emit(ir.Bare(vm.OpPopTop, line))
	return nil
}

// loadBound pushes a loop bound: names through LOAD_NAME, literals through
// LOAD_CONST.
func loadBound(tok ir.Token, line int) *ir.Operation {
	if id, ok := tok.(ir.Ident); ok {
		return ir.Op(vm.OpLoadName, string(id), line)
	}
	return ir.Op(vm.OpLoadConst, tok, line)
}

// loopBodyItems drops the framing the producer wrapped around the body.
// Returns written by the user are kept.
func loopBodyItems(body []ir.Item) []ir.Item {
	out := make([]ir.Item, 0, len(body))
	for _, it := range body {
		switch x := it.(type) {
		case *ir.Operation:
			if x.Framing {
				continue
			}
		case *ir.ReturnMarker:
			if x.Implicit {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}
