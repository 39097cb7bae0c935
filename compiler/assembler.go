package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

var log = commonlog.GetLogger("paxy.compiler")

// ---------------------------------------------------------------------------
// Assembler: symbolic IR to concrete operations
// ---------------------------------------------------------------------------

// jumpKind distinguishes the jump placeholders created during rewriting.
type jumpKind int

const (
	// gotoJump comes from GO; its direction is chosen when patching.
	gotoJump jumpKind = iota
	// namedJump comes from a native jump written with a label name; it
	// keeps its opcode.
	namedJump
)

// jumpPlaceholder stands in for a jump until its target label is known.
type jumpPlaceholder struct {
	kind   jumpKind
	op     vm.Opcode // namedJump only
	target string
	line   int
}

// entry is one slot of the working stream: either a finished item or a
// pending jump.
type entry struct {
	item ir.Item
	jump *jumpPlaceholder
}

// assembler owns the working state of resolving one scope. It is created
// per Resolve call and never shared.
type assembler struct {
	insideFunction bool
	scope          string

	declared   map[string]int       // label name -> input position
	labels     map[string]*ir.Label // label name -> materialized label
	labelIndex map[string]int       // label name -> output index
	out        []entry
}

// Resolve turns one scope's IR into a stream containing only *ir.Operation
// and *ir.Label. insideFunction selects function-scope rules: returns are
// allowed and loop variables are stored in local slots.
func Resolve(items []ir.Item, insideFunction bool) ([]ir.Item, error) {
	scope := "module"
	if insideFunction {
		scope = "function"
	}
	return resolveScope(items, insideFunction, scope)
}

func resolveScope(items []ir.Item, insideFunction bool, scope string) ([]ir.Item, error) {
	a := &assembler{
		insideFunction: insideFunction,
		scope:          scope,
		declared:       make(map[string]int),
		labels:         make(map[string]*ir.Label),
		labelIndex:     make(map[string]int),
	}
	return a.run(items)
}

func (a *assembler) run(items []ir.Item) ([]ir.Item, error) {
	log.Debugf("resolving %s: %d items", a.scope, len(items))

	if err := a.discoverLabels(items); err != nil {
		return nil, err
	}
	a.materializeLabels()
	if err := a.rewrite(items, false); err != nil {
		return nil, err
	}
	log.Debugf("%s: rewrite produced %d entries, %d labels", a.scope, len(a.out), len(a.labels))

	if err := a.patchJumps(); err != nil {
		return nil, err
	}
	resolved, err := a.lowerFunctionsAndReturns()
	if err != nil {
		return nil, err
	}
	if err := checkResolved("sanity", resolved); err != nil {
		return nil, err
	}
	log.Debugf("%s: resolved to %d items", a.scope, len(resolved))
	return resolved, nil
}

// ---------------------------------------------------------------------------
// Passes 1 and 2: labels
// ---------------------------------------------------------------------------

// discoverLabels records the input position of every label declared at
// the top level of the scope.
func (a *assembler) discoverLabels(items []ir.Item) error {
	for i, it := range items {
		decl, ok := it.(*ir.LabelDecl)
		if !ok {
			continue
		}
		if _, dup := a.declared[decl.Name]; dup {
			return duplicateLabel(decl.Name, a.scope, decl.Line)
		}
		a.declared[decl.Name] = i
	}
	return nil
}

func (a *assembler) materializeLabels() {
	for name := range a.declared {
		a.labels[name] = ir.NewLabel(name)
	}
}

// ---------------------------------------------------------------------------
// Pass 3: stream rewrite
// ---------------------------------------------------------------------------

func (a *assembler) emit(item ir.Item) {
	a.out = append(a.out, entry{item: item})
}

func (a *assembler) emitJump(ph *jumpPlaceholder) {
	a.out = append(a.out, entry{jump: ph})
}

// rewrite places labels, replaces jumps by placeholders and inlines loops.
// Function definitions and returns pass through for pass 5.
func (a *assembler) rewrite(items []ir.Item, inLoop bool) error {
	for _, it := range items {
		switch x := it.(type) {
		case *ir.LabelDecl:
			if inLoop {
				return labelInLoopBody(x.Name, x.Line)
			}
			a.labelIndex[x.Name] = len(a.out)
			a.emit(a.labels[x.Name])

		case *ir.JumpRef:
			a.emitJump(&jumpPlaceholder{kind: gotoJump, target: x.Target, line: x.Line})

		case *ir.NamedJump:
			a.emitJump(&jumpPlaceholder{kind: namedJump, op: x.Op, target: x.Target, line: x.Line})

		case *ir.LoopBlock:
			if err := a.inlineLoop(x); err != nil {
				return err
			}

		case *ir.Operation:
			if x.Op.IsJump() {
				if name, ok := jumpName(x.Arg); ok {
					a.emitJump(&jumpPlaceholder{kind: namedJump, op: x.Op, target: name, line: x.Line})
					continue
				}
			}
			a.emit(x)

		case *ir.FuncDef, *ir.ReturnMarker, *ir.Label:
			a.emit(x)

		default:
			return &InternalError{Pass: "rewrite", Index: len(a.out), Detail: fmt.Sprintf("unexpected item %T", it)}
		}
	}
	return nil
}

// jumpName extracts a label name from a jump operand that is still
// symbolic.
func jumpName(arg interface{}) (string, bool) {
	switch x := arg.(type) {
	case string:
		return x, true
	case ir.Ident:
		return string(x), true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Pass 4: jump patching
// ---------------------------------------------------------------------------

func (a *assembler) patchJumps() error {
	for i, e := range a.out {
		if e.jump == nil {
			continue
		}
		ph := e.jump
		label, ok := a.labels[ph.target]
		if !ok {
			return undefinedLabel(ph.target, ph.line)
		}
		target := a.labelIndex[ph.target]

		var op vm.Opcode
		switch ph.kind {
		case gotoJump:
			op = direction(target, i)
		case namedJump:
			op = ph.op
			if op == vm.OpJumpForward || op == vm.OpJumpBackward {
				op = direction(target, i)
			}
		default:
			return &InternalError{Pass: "patch", Index: i, Detail: fmt.Sprintf("unknown placeholder kind %d", ph.kind)}
		}
		a.out[i] = entry{item: ir.Op(op, label, ph.line)}
	}
	return nil
}

// direction picks the unconditional jump that reaches target from the
// placeholder at index at.
func direction(target, at int) vm.Opcode {
	if target > at {
		return vm.OpJumpForward
	}
	return vm.OpJumpBackward
}

// ---------------------------------------------------------------------------
// Pass 5: functions and returns
// ---------------------------------------------------------------------------

func (a *assembler) lowerFunctionsAndReturns() ([]ir.Item, error) {
	out := make([]ir.Item, 0, len(a.out))
	for i, e := range a.out {
		if e.jump != nil {
			return nil, &InternalError{Pass: "functions", Index: i, Detail: "unpatched jump to " + e.jump.target, Dump: dumpEntries(a.out)}
		}
		switch x := e.item.(type) {
		case *ir.FuncDef:
			lowered, err := lowerFunction(x)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		case *ir.ReturnMarker:
			if !a.insideFunction {
				return nil, returnOutsideFunction(x.Line)
			}
			out = append(out, lowerReturnMarker(x)...)

		default:
			out = append(out, x)
		}
	}
	return out, nil
}

// lowerReturnMarker emits the concrete return for a marker inside a
// function.
func lowerReturnMarker(r *ir.ReturnMarker) []ir.Item {
	if r.HasValue {
		return []ir.Item{ir.Bare(vm.OpReturnValue, r.Line)}
	}
	return []ir.Item{
		ir.Op(vm.OpLoadConst, nil, r.Line),
		ir.Bare(vm.OpReturnValue, r.Line),
	}
}

// ---------------------------------------------------------------------------
// Pass 6: sanity check
// ---------------------------------------------------------------------------

// checkResolved verifies that items is fully concrete.
func checkResolved(pass string, items []ir.Item) error {
	for i, it := range items {
		switch x := it.(type) {
		case *ir.Label:
		case *ir.Operation:
			if x.Op.IsJump() {
				if _, ok := x.Arg.(*ir.Label); !ok {
					return &InternalError{
						Pass:   pass,
						Index:  i,
						Detail: fmt.Sprintf("%s operand is %s, not a label", x.Op, ir.FormatArg(x.Arg)),
						Dump:   ir.Dump(items),
					}
				}
			}
		default:
			return &InternalError{
				Pass:   pass,
				Index:  i,
				Detail: fmt.Sprintf("unresolved %T remains", it),
				Dump:   ir.Dump(items),
			}
		}
	}
	return nil
}

func dumpEntries(entries []entry) string {
	items := make([]ir.Item, 0, len(entries))
	for _, e := range entries {
		if e.jump != nil {
			items = append(items, &ir.NamedJump{Op: e.jump.op, Target: e.jump.target, Line: e.jump.line})
			continue
		}
		items = append(items, e.item)
	}
	return ir.Dump(items)
}
