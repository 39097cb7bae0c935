package ir

import (
	"fmt"
	"strings"

	"github.com/chazu/paxy/vm"
)

// Item is one entry of a scope's IR list.
type Item interface {
	// SourceLine returns the source line the item came from.
	SourceLine() int
	isItem()
}

// Ident marks a token as an identifier rather than a string literal.
type Ident string

// Token is a statement argument as produced by the lexer: an Ident or a
// literal (nil, bool, int64, float64, string).
type Token interface{}

// ---------------------------------------------------------------------------
// Concrete items
// ---------------------------------------------------------------------------

// Operation is an already-concrete VM instruction.
type Operation struct {
	Op   vm.Opcode
	Arg  interface{}
	Line int

	// Framing marks start-of-callable and implicit-return operations that
	// the producer synthesized around a statement list.
	Framing bool
}

// Op creates an operation with an argument.
func Op(op vm.Opcode, arg interface{}, line int) *Operation {
	return &Operation{Op: op, Arg: arg, Line: line}
}

// Bare creates an operation without an argument.
func Bare(op vm.Opcode, line int) *Operation {
	return &Operation{Op: op, Line: line}
}

func (o *Operation) SourceLine() int { return o.Line }
func (*Operation) isItem()           {}

func (o *Operation) String() string {
	var b strings.Builder
	b.WriteString(o.Op.String())
	if o.Op.HasArg() {
		b.WriteByte(' ')
		b.WriteString(FormatArg(o.Arg))
	}
	fmt.Fprintf(&b, " @%d", o.Line)
	if o.Framing {
		b.WriteString(" [framing]")
	}
	return b.String()
}

// Label is a resolved jump target. Labels compare by identity.
type Label struct {
	Name string
}

// NewLabel allocates a label. The name is only used for debugging.
func NewLabel(name string) *Label {
	return &Label{Name: name}
}

func (*Label) SourceLine() int { return 0 }
func (*Label) isItem()         {}

func (l *Label) String() string {
	return fmt.Sprintf("<label %s %p>", l.Name, l)
}

// ---------------------------------------------------------------------------
// Symbolic items
// ---------------------------------------------------------------------------

// LabelDecl declares a jump target (LBL name).
type LabelDecl struct {
	Name string
	Line int
}

func (d *LabelDecl) SourceLine() int { return d.Line }
func (*LabelDecl) isItem()           {}

func (d *LabelDecl) String() string {
	return fmt.Sprintf("LBL %s @%d", d.Name, d.Line)
}

// JumpRef is an undirected goto (GO name).
type JumpRef struct {
	Target string
	Line   int
}

func (j *JumpRef) SourceLine() int { return j.Line }
func (*JumpRef) isItem()           {}

func (j *JumpRef) String() string {
	return fmt.Sprintf("GO %s @%d", j.Target, j.Line)
}

// NamedJump is a native jump whose target is still a name.
type NamedJump struct {
	Op     vm.Opcode
	Target string
	Line   int
}

func (j *NamedJump) SourceLine() int { return j.Line }
func (*NamedJump) isItem()           {}

func (j *NamedJump) String() string {
	return fmt.Sprintf("%s ->%s @%d", j.Op, j.Target, j.Line)
}

// FuncDef is a SUB definition with its own scope.
type FuncDef struct {
	Name   string
	Params []string
	Body   []Item
	Line   int
}

func (f *FuncDef) SourceLine() int { return f.Line }
func (*FuncDef) isItem()           {}

func (f *FuncDef) String() string {
	return fmt.Sprintf("SUB %s(%s) [%d items] @%d", f.Name, strings.Join(f.Params, ", "), len(f.Body), f.Line)
}

// ReturnMarker is a bare return. When HasValue is set the value has already
// been pushed by preceding items. Implicit marks returns synthesized by the
// producer rather than written by the user.
type ReturnMarker struct {
	HasValue bool
	Implicit bool
	Line     int
}

func (r *ReturnMarker) SourceLine() int { return r.Line }
func (*ReturnMarker) isItem()           {}

func (r *ReturnMarker) String() string {
	if r.HasValue {
		return fmt.Sprintf("RET <value> @%d", r.Line)
	}
	return fmt.Sprintf("RET @%d", r.Line)
}

// LoopBlock is RNG var start end [step] ... RNE.
type LoopBlock struct {
	Var     string
	Start   Token
	End     Token
	Step    Token
	HasStep bool
	Body    []Item
	Line    int
}

func (l *LoopBlock) SourceLine() int { return l.Line }
func (*LoopBlock) isItem()           {}

func (l *LoopBlock) String() string {
	return fmt.Sprintf("RNG %s %s %s [%d items] @%d", l.Var, FormatArg(l.Start), FormatArg(l.End), len(l.Body), l.Line)
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// Callable is the lowered body of a function, attached as the operand of
// the LOAD_CONST that precedes MAKE_FUNCTION. Its Body holds only
// *Operation and *Label items.
type Callable struct {
	Name   string
	Params []string
	Body   []Item
	Line   int
}

func (c *Callable) String() string {
	return fmt.Sprintf("<callable %s/%d>", c.Name, len(c.Params))
}

// FormatArg renders an operand for listings.
func FormatArg(arg interface{}) string {
	switch a := arg.(type) {
	case nil:
		return "None"
	case Ident:
		return string(a)
	case string:
		return fmt.Sprintf("%q", a)
	case *Label:
		return a.String()
	case fmt.Stringer:
		return a.String()
	}
	return fmt.Sprintf("%v", arg)
}

// Dump renders items one per line with their index.
func Dump(items []Item) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%03d: %v\n", i, it)
	}
	return b.String()
}
