package compiler

import (
	"sort"
	"strings"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Statement table
// ---------------------------------------------------------------------------

// commandFunc lowers the arguments of one statement into IR.
type commandFunc func(e *emitter, args []ir.Token) error

type command struct {
	lower   commandFunc
	usage   string
	summary string
}

// CommandInfo documents a statement for tooling.
type CommandInfo struct {
	Name    string
	Usage   string
	Summary string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"PNT": {lowerPrint, "PNT [value]", "Print a value, or an empty line."},
		"INP": {lowerInput, "INP name", "Read a line of input into a variable."},
		"LET": {lowerLet, "LET name value | LET name lhs op rhs", "Assign a value or the result of an operator."},
		"CMP": {lowerCompare, "CMP dst lhs op rhs", "Store the result of a comparison."},
		"IS":  {identityCommand(vm.IsSame), "IS dst lhs rhs", "Store whether lhs is rhs."},
		"NIS": {identityCommand(vm.IsNotSame), "NIS dst lhs rhs", "Store whether lhs is not rhs."},
		"IN":  {membershipCommand(vm.ContainsIn), "IN dst needle haystack", "Store whether needle is in haystack."},
		"NIN": {membershipCommand(vm.ContainsNotIn), "NIN dst needle haystack", "Store whether needle is not in haystack."},
		"INC": {stepCommand("INC", vm.BinaryAdd), "INC name", "Add one to a variable."},
		"DEC": {stepCommand("DEC", vm.BinarySubtract), "DEC name", "Subtract one from a variable."},
		"IF":  {lowerIf, "IF lhs op rhs label", "Jump to label when the comparison holds."},
		"LBL": {lowerLabel, "LBL name", "Declare a jump target."},
		"GO":  {lowerGoto, "GO label", "Jump to a label."},
		"GOS": {lowerGosub, "GOS dst sub [args...]", "Call a subroutine and store its result."},
		"RET": {lowerReturn, "RET [value]", "Return from a subroutine."},
		"PAR": {lowerParallel, "PAR d1 d2 e1 e2", "Assign two values at once."},
		"VEC": {lowerVector, "VEC name [elems...]", "Create a list."},
		"ROW": {lowerRow, "ROW name [elems...]", "Create a tuple."},
		"IGL": {lowerFrozenSet, "IGL name [elems...]", "Create a frozen set of unique elements."},
		"MAP": {lowerMap, "MAP name [key value ...]", "Create a dictionary."},
		"MAD": {lowerMapStore, "MAD map key value", "Store a value under a key."},
		"MAL": {lowerMapDelete, "MAL map key", "Delete a key."},
		"VAP": {lowerAppend, "VAP vec elem", "Append an element to a list."},
		"VOP": {lowerPop, "VOP dst vec [index]", "Remove and store the last (or indexed) element."},
		"VEM": {lowerRemove, "VEM vec elem", "Remove the first matching element."},
		"VER": {lowerReverse, "VER vec", "Reverse a list in place."},
		"LEN": {lowerLen, "LEN dst vec", "Store the length of a container."},
		"TIN": {conversionCommand("TIN", "int"), "TIN dst src", "Convert to an integer."},
		"TFL": {conversionCommand("TFL", "float"), "TFL dst src", "Convert to a float."},
		"TST": {conversionCommand("TST", "str"), "TST dst src", "Convert to text."},
	}
}

// blockInfo documents the block statements handled by the parser itself.
var blockInfo = []CommandInfo{
	{"SUB", "SUB name [params...]", "Begin a subroutine definition."},
	{"SBE", "SBE", "End a subroutine definition."},
	{"RNG", "RNG var start end [step]", "Loop var over range(start, end[, step])."},
	{"RNE", "RNE", "End a RNG loop."},
}

// Commands lists every statement, sorted by name.
func Commands() []CommandInfo {
	out := append([]CommandInfo(nil), blockInfo...)
	for name, c := range commands {
		out = append(out, CommandInfo{Name: name, Usage: c.usage, Summary: c.summary})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupCommand finds a statement by name (case-insensitive).
func LookupCommand(name string) (CommandInfo, bool) {
	name = strings.ToUpper(name)
	if c, ok := commands[name]; ok {
		return CommandInfo{Name: name, Usage: c.usage, Summary: c.summary}, true
	}
	for _, b := range blockInfo {
		if b.Name == name {
			return b, true
		}
	}
	return CommandInfo{}, false
}

// ---------------------------------------------------------------------------
// Emitter
// ---------------------------------------------------------------------------

// emitter collects the items of one statement, stamping them with its line.
type emitter struct {
	line  int
	items []ir.Item
}

func (e *emitter) op(op vm.Opcode, arg interface{}) {
	e.items = append(e.items, ir.Op(op, arg, e.line))
}

func (e *emitter) bare(op vm.Opcode) {
	e.items = append(e.items, ir.Bare(op, e.line))
}

func (e *emitter) add(item ir.Item) {
	e.items = append(e.items, item)
}

// load pushes a name or a literal.
func (e *emitter) load(tok ir.Token) {
	if id, ok := tok.(ir.Ident); ok {
		e.op(vm.OpLoadName, string(id))
		return
	}
	e.op(vm.OpLoadConst, tok)
}

func (e *emitter) store(name string) {
	e.op(vm.OpStoreName, name)
}

// callBuiltin emits fn(args...) in the LOAD_GLOBAL push-null form.
func (e *emitter) callBuiltin(fn string, args ...ir.Token) {
	e.op(vm.OpLoadGlobal, vm.GlobalRef{Name: fn, PushNull: true})
	for _, a := range args {
		e.load(a)
	}
	e.op(vm.OpCall, len(args))
}

func (e *emitter) arity(construct, expected string, got int) error {
	return malformedArgumentCount(construct, expected, got, e.line)
}

// ident checks that tok names a variable.
func (e *emitter) ident(construct string, tok ir.Token) (string, error) {
	id, ok := tok.(ir.Ident)
	if !ok {
		return "", syntaxError(e.line, "%s expects a name, got %s", construct, ir.FormatArg(tok))
	}
	return string(id), nil
}

// operator resolves an operator argument, stamping the line on failure.
func (e *emitter) operator(resolve func(interface{}) (interface{}, error), tok ir.Token) (interface{}, error) {
	v, err := resolve(tok)
	if ce, ok := AsCompileError(err); ok && ce.Line == 0 {
		ce.Line = e.line
	}
	return v, err
}

// mergeOperatorWords joins the two-word operators "is not" and "not in"
// into a single argument.
func mergeOperatorWords(args []ir.Token) []ir.Token {
	out := make([]ir.Token, 0, len(args))
	for i := 0; i < len(args); i++ {
		if i+1 < len(args) {
			a, aok := args[i].(ir.Ident)
			b, bok := args[i+1].(ir.Ident)
			if aok && bok {
				pair := strings.ToLower(string(a) + " " + string(b))
				if pair == "is not" || pair == "not in" {
					out = append(out, pair)
					i++
					continue
				}
			}
		}
		out = append(out, args[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Input and output
// ---------------------------------------------------------------------------

// PNT loads print before pushing the sentinel; the calling-convention
// normalizer reorders the pair.
func lowerPrint(e *emitter, args []ir.Token) error {
	if len(args) > 1 {
		return e.arity("PNT", "0 or 1", len(args))
	}
	e.op(vm.OpLoadName, "print")
	e.bare(vm.OpPushNull)
	for _, a := range args {
		e.load(a)
	}
	e.op(vm.OpCall, len(args))
	e.bare(vm.OpPopTop)
	return nil
}

func lowerInput(e *emitter, args []ir.Token) error {
	if len(args) != 1 {
		return e.arity("INP", "1", len(args))
	}
	dst, err := e.ident("INP", args[0])
	if err != nil {
		return err
	}
	e.op(vm.OpLoadName, "input")
	e.bare(vm.OpPushNull)
	e.op(vm.OpCall, 0)
	e.store(dst)
	return nil
}

// ---------------------------------------------------------------------------
// Assignment and operators
// ---------------------------------------------------------------------------

func lowerLet(e *emitter, args []ir.Token) error {
	args = mergeOperatorWords(args)
	if len(args) != 2 && len(args) != 4 {
		return e.arity("LET", "2 or 4", len(args))
	}
	dst, err := e.ident("LET", args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		e.load(args[1])
		e.store(dst)
		return nil
	}
	opcode, coerced, err := ClassifyOperator(args[2])
	if err != nil {
		if ce, ok := AsCompileError(err); ok {
			ce.Line = e.line
		}
		return err
	}
	e.load(args[1])
	e.load(args[3])
	e.op(opcode, coerced)
	e.store(dst)
	return nil
}

func lowerCompare(e *emitter, args []ir.Token) error {
	if len(args) != 4 {
		return e.arity("CMP", "4", len(args))
	}
	dst, err := e.ident("CMP", args[0])
	if err != nil {
		return err
	}
	cmp, err := e.operator(func(v interface{}) (interface{}, error) { return ResolveCompareOp(v) }, args[2])
	if err != nil {
		return err
	}
	e.load(args[1])
	e.load(args[3])
	e.op(vm.OpCompareOp, cmp)
	e.store(dst)
	return nil
}

func identityCommand(op vm.IsOp) commandFunc {
	return func(e *emitter, args []ir.Token) error {
		return binaryTest(e, "IS", vm.OpIsOp, op, args)
	}
}

func membershipCommand(op vm.ContainsOp) commandFunc {
	return func(e *emitter, args []ir.Token) error {
		return binaryTest(e, "IN", vm.OpContainsOp, op, args)
	}
}

func binaryTest(e *emitter, construct string, opcode vm.Opcode, arg interface{}, args []ir.Token) error {
	if len(args) != 3 {
		return e.arity(construct, "3", len(args))
	}
	dst, err := e.ident(construct, args[0])
	if err != nil {
		return err
	}
	e.load(args[1])
	e.load(args[2])
	e.op(opcode, arg)
	e.store(dst)
	return nil
}

func stepCommand(construct string, op vm.BinaryOp) commandFunc {
	return func(e *emitter, args []ir.Token) error {
		if len(args) != 1 {
			return e.arity(construct, "1", len(args))
		}
		name, err := e.ident(construct, args[0])
		if err != nil {
			return err
		}
		e.op(vm.OpLoadName, name)
		e.op(vm.OpLoadConst, int64(1))
		e.op(vm.OpBinaryOp, op)
		e.store(name)
		return nil
	}
}

// PAR evaluates both right-hand sides before storing either.
func lowerParallel(e *emitter, args []ir.Token) error {
	if len(args) != 4 {
		return e.arity("PAR", "4", len(args))
	}
	d1, err := e.ident("PAR", args[0])
	if err != nil {
		return err
	}
	d2, err := e.ident("PAR", args[1])
	if err != nil {
		return err
	}
	e.load(args[2])
	e.load(args[3])
	e.store(d2)
	e.store(d1)
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func lowerIf(e *emitter, args []ir.Token) error {
	if len(args) != 4 {
		return e.arity("IF", "4", len(args))
	}
	label, err := e.ident("IF", args[3])
	if err != nil {
		return err
	}
	cmp, err := e.operator(func(v interface{}) (interface{}, error) { return ResolveCompareOp(v) }, args[1])
	if err != nil {
		return err
	}
	e.load(args[0])
	e.load(args[2])
	e.op(vm.OpCompareOp, cmp)
	e.add(&ir.NamedJump{Op: vm.OpPopJumpIfTrue, Target: label, Line: e.line})
	return nil
}

func lowerLabel(e *emitter, args []ir.Token) error {
	if len(args) != 1 {
		return e.arity("LBL", "1", len(args))
	}
	name, err := e.ident("LBL", args[0])
	if err != nil {
		return err
	}
	e.add(&ir.LabelDecl{Name: name, Line: e.line})
	return nil
}

func lowerGoto(e *emitter, args []ir.Token) error {
	if len(args) != 1 {
		return e.arity("GO", "1", len(args))
	}
	name, err := e.ident("GO", args[0])
	if err != nil {
		return err
	}
	e.add(&ir.JumpRef{Target: name, Line: e.line})
	return nil
}

// GOS loads the subroutine through LOAD_GLOBAL with the push-null flag.
func lowerGosub(e *emitter, args []ir.Token) error {
	if len(args) < 2 {
		return e.arity("GOS", "at least 2", len(args))
	}
	dst, err := e.ident("GOS", args[0])
	if err != nil {
		return err
	}
	fn, ok := nameArg(args[1])
	if !ok {
		return syntaxError(e.line, "GOS expects a subroutine name, got %s", ir.FormatArg(args[1]))
	}
	e.callBuiltin(fn, args[2:]...)
	e.store(dst)
	return nil
}

func lowerReturn(e *emitter, args []ir.Token) error {
	switch len(args) {
	case 0:
		e.add(&ir.ReturnMarker{Line: e.line})
	case 1:
		e.load(args[0])
		e.add(&ir.ReturnMarker{HasValue: true, Line: e.line})
	default:
		return e.arity("RET", "0 or 1", len(args))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

func lowerVector(e *emitter, args []ir.Token) error {
	if len(args) < 1 {
		return e.arity("VEC", "at least 1", len(args))
	}
	dst, err := e.ident("VEC", args[0])
	if err != nil {
		return err
	}
	for _, a := range args[1:] {
		e.load(a)
	}
	e.op(vm.OpBuildList, len(args)-1)
	e.store(dst)
	return nil
}

// ROW folds all-literal rows into a single tuple constant.
func lowerRow(e *emitter, args []ir.Token) error {
	if len(args) < 1 {
		return e.arity("ROW", "at least 1", len(args))
	}
	dst, err := e.ident("ROW", args[0])
	if err != nil {
		return err
	}
	elems := args[1:]
	if allLiteral(elems) {
		tuple := make(vm.Tuple, len(elems))
		for i, a := range elems {
			tuple[i] = a
		}
		e.op(vm.OpLoadConst, tuple)
		e.store(dst)
		return nil
	}
	for _, a := range elems {
		e.load(a)
	}
	e.op(vm.OpBuildTuple, len(elems))
	e.store(dst)
	return nil
}

// IGL folds all-literal sets into a single constant; sets naming variables
// are built at run time with frozenset(tuple).
func lowerFrozenSet(e *emitter, args []ir.Token) error {
	if len(args) < 1 {
		return e.arity("IGL", "at least 1", len(args))
	}
	dst, err := e.ident("IGL", args[0])
	if err != nil {
		return err
	}
	elems := args[1:]
	if allLiteral(elems) {
		members := make([]vm.Value, len(elems))
		for i, a := range elems {
			members[i] = a
		}
		if set, err := vm.NewFrozenSet(members...); err == nil {
			e.op(vm.OpLoadConst, set)
			e.store(dst)
			return nil
		}
	}
	e.op(vm.OpLoadName, "frozenset")
	for _, a := range elems {
		e.load(a)
	}
	e.op(vm.OpBuildTuple, len(elems))
	e.op(vm.OpCall, 1)
	e.store(dst)
	return nil
}

func allLiteral(toks []ir.Token) bool {
	for _, t := range toks {
		if _, ok := t.(ir.Ident); ok {
			return false
		}
	}
	return true
}

func lowerMap(e *emitter, args []ir.Token) error {
	if len(args) < 1 || len(args)%2 == 0 {
		return e.arity("MAP", "1 plus key/value pairs", len(args))
	}
	dst, err := e.ident("MAP", args[0])
	if err != nil {
		return err
	}
	e.op(vm.OpBuildMap, 0)
	for i := 1; i < len(args); i += 2 {
		switch args[i].(type) {
		case ir.Ident, string:
		default:
			return syntaxError(e.line, "MAP keys must be strings or names, got %s", ir.FormatArg(args[i]))
		}
		e.load(args[i])
		e.load(args[i+1])
		e.op(vm.OpMapAdd, 1)
	}
	e.store(dst)
	return nil
}

func lowerMapStore(e *emitter, args []ir.Token) error {
	if len(args) != 3 {
		return e.arity("MAD", "3", len(args))
	}
	m, err := e.ident("MAD", args[0])
	if err != nil {
		return err
	}
	e.op(vm.OpLoadName, m)
	e.load(args[1])
	e.load(args[2])
	e.bare(vm.OpStoreSubscr)
	return nil
}

func lowerMapDelete(e *emitter, args []ir.Token) error {
	if len(args) != 2 {
		return e.arity("MAL", "2", len(args))
	}
	m, err := e.ident("MAL", args[0])
	if err != nil {
		return err
	}
	e.op(vm.OpLoadName, m)
	e.load(args[1])
	e.bare(vm.OpDeleteSubscr)
	return nil
}

func lowerAppend(e *emitter, args []ir.Token) error {
	if len(args) != 2 {
		return e.arity("VAP", "2", len(args))
	}
	if _, err := e.ident("VAP", args[0]); err != nil {
		return err
	}
	e.callBuiltin("append", args...)
	e.bare(vm.OpPopTop)
	return nil
}

func lowerPop(e *emitter, args []ir.Token) error {
	if len(args) != 2 && len(args) != 3 {
		return e.arity("VOP", "2 or 3", len(args))
	}
	dst, err := e.ident("VOP", args[0])
	if err != nil {
		return err
	}
	if _, err := e.ident("VOP", args[1]); err != nil {
		return err
	}
	e.callBuiltin("pop", args[1:]...)
	e.store(dst)
	return nil
}

func lowerRemove(e *emitter, args []ir.Token) error {
	if len(args) != 2 {
		return e.arity("VEM", "2", len(args))
	}
	if _, err := e.ident("VEM", args[0]); err != nil {
		return err
	}
	e.callBuiltin("remove", args...)
	e.bare(vm.OpPopTop)
	return nil
}

func lowerReverse(e *emitter, args []ir.Token) error {
	if len(args) != 1 {
		return e.arity("VER", "1", len(args))
	}
	if _, err := e.ident("VER", args[0]); err != nil {
		return err
	}
	e.callBuiltin("reverse", args[0])
	e.bare(vm.OpPopTop)
	return nil
}

func lowerLen(e *emitter, args []ir.Token) error {
	if len(args) != 2 {
		return e.arity("LEN", "2", len(args))
	}
	dst, err := e.ident("LEN", args[0])
	if err != nil {
		return err
	}
	e.callBuiltin("len", args[1])
	e.store(dst)
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func conversionCommand(construct, builtin string) commandFunc {
	return func(e *emitter, args []ir.Token) error {
		if len(args) != 2 {
			return e.arity(construct, "2", len(args))
		}
		dst, err := e.ident(construct, args[0])
		if err != nil {
			return err
		}
		e.callBuiltin(builtin, args[1])
		e.store(dst)
		return nil
	}
}
