package compiler

import (
	"fmt"
	"os"
	"strings"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// ---------------------------------------------------------------------------
// Parser: statement lines to IR
// ---------------------------------------------------------------------------

// Statement is one source line: a statement name and its arguments.
type Statement struct {
	Name string     // upper-cased statement name
	Args []ir.Token // literals or ir.Ident
	Line int
	Pos  Position
}

// bodyKind selects the framing added around a parsed statement list.
type bodyKind int

const (
	moduleBody bodyKind = iota
	subBody
	loopBody
)

// Block openers and their closers.
var blockClosers = map[string]string{
	"SUB": "SBE",
	"RNG": "RNE",
}

// Parser parses paxy source code into an IR list.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// Parse reads the whole input and returns the framed module IR.
func (p *Parser) Parse() ([]ir.Item, error) {
	stmts, err := p.ParseStatements()
	if err != nil {
		return nil, err
	}
	return buildItems(stmts, moduleBody)
}

// ParseStatements splits the input into statement lines without lowering
// them.
func (p *Parser) ParseStatements() ([]Statement, error) {
	var stmts []Statement
	for !p.curTokenIs(TokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// parseStatement parses one line up to and including its NEWLINE.
func (p *Parser) parseStatement() (Statement, error) {
	tok := p.curToken
	if tok.Type == TokenError {
		return Statement{}, syntaxError(tok.Pos.Line, "%s", tok.Literal)
	}
	if tok.Type != TokenName {
		return Statement{}, syntaxError(tok.Pos.Line, "expected statement name, got %s", tok)
	}
	stmt := Statement{
		Name: strings.ToUpper(tok.Literal),
		Line: tok.Pos.Line,
		Pos:  tok.Pos,
	}
	p.nextToken()

	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		arg, err := tokenArg(p.curToken)
		if err != nil {
			return Statement{}, err
		}
		stmt.Args = append(stmt.Args, arg)
		p.nextToken()
	}
	if p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
	return stmt, nil
}

// tokenArg converts a lexical token into a statement argument.
func tokenArg(tok Token) (ir.Token, error) {
	switch tok.Type {
	case TokenName:
		switch tok.Literal {
		case "None":
			return nil, nil
		case "True":
			return true, nil
		case "False":
			return false, nil
		}
		return ir.Ident(tok.Literal), nil
	case TokenNumber, TokenString:
		return tok.Value, nil
	case TokenOp:
		return tok.Literal, nil
	case TokenError:
		return nil, syntaxError(tok.Pos.Line, "%s", tok.Literal)
	}
	return nil, syntaxError(tok.Pos.Line, "unexpected %s", tok)
}

// ---------------------------------------------------------------------------
// Lowering statements to IR
// ---------------------------------------------------------------------------

// buildItems lowers a statement list and adds the framing for kind.
func buildItems(stmts []Statement, kind bodyKind) ([]ir.Item, error) {
	var items []ir.Item
	for i := 0; i < len(stmts); i++ {
		stmt := stmts[i]

		if closer, ok := blockClosers[stmt.Name]; ok {
			end, err := findBlockEnd(stmts, i, closer)
			if err != nil {
				return nil, err
			}
			item, err := buildBlock(stmt, stmts[i+1:end])
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			i = end
			continue
		}
		if stmt.Name == "SBE" || stmt.Name == "RNE" {
			return nil, syntaxError(stmt.Line, "%s without matching opener", stmt.Name)
		}

		lowered, err := lowerStatement(stmt)
		if err != nil {
			return nil, err
		}
		items = append(items, lowered...)
	}
	return frame(items, kind, lastLine(stmts)), nil
}

// findBlockEnd returns the index of the closer matching the opener at
// start, counting nested blocks of the same kind.
func findBlockEnd(stmts []Statement, start int, closer string) (int, error) {
	opener := stmts[start].Name
	depth := 0
	for j := start + 1; j < len(stmts); j++ {
		switch stmts[j].Name {
		case opener:
			depth++
		case closer:
			if depth == 0 {
				if len(stmts[j].Args) != 0 {
					return 0, malformedArgumentCount(closer, "0", len(stmts[j].Args), stmts[j].Line)
				}
				return j, nil
			}
			depth--
		}
	}
	return 0, syntaxError(stmts[start].Line, "%s without matching %s", opener, closer)
}

// buildBlock parses a SUB or RNG body with a fresh scope.
func buildBlock(head Statement, body []Statement) (ir.Item, error) {
	switch head.Name {
	case "SUB":
		if len(head.Args) == 0 {
			return nil, malformedArgumentCount("SUB", "at least 1", 0, head.Line)
		}
		name, ok := head.Args[0].(ir.Ident)
		if !ok {
			return nil, syntaxError(head.Line, "SUB expects a name, got %s", ir.FormatArg(head.Args[0]))
		}
		params := make([]string, 0, len(head.Args)-1)
		seen := make(map[string]bool)
		for _, a := range head.Args[1:] {
			param, ok := a.(ir.Ident)
			if !ok {
				return nil, syntaxError(head.Line, "SUB parameters must be identifiers, got %s", ir.FormatArg(a))
			}
			if seen[string(param)] {
				return nil, syntaxError(head.Line, "duplicate parameter %q in SUB %s", param, name)
			}
			seen[string(param)] = true
			params = append(params, string(param))
		}
		items, err := buildItems(body, subBody)
		if err != nil {
			return nil, err
		}
		return &ir.FuncDef{Name: string(name), Params: params, Body: items, Line: head.Line}, nil

	case "RNG":
		if len(head.Args) != 3 && len(head.Args) != 4 {
			return nil, malformedArgumentCount("RNG", "3 or 4", len(head.Args), head.Line)
		}
		v, ok := head.Args[0].(ir.Ident)
		if !ok {
			return nil, syntaxError(head.Line, "RNG expects a loop variable, got %s", ir.FormatArg(head.Args[0]))
		}
		for _, bound := range head.Args[1:] {
			if err := checkLoopBound(bound, head.Line); err != nil {
				return nil, err
			}
		}
		items, err := buildItems(body, loopBody)
		if err != nil {
			return nil, err
		}
		loop := &ir.LoopBlock{
			Var:   string(v),
			Start: head.Args[1],
			End:   head.Args[2],
			Body:  items,
			Line:  head.Line,
		}
		if len(head.Args) == 4 {
			loop.Step = head.Args[3]
			loop.HasStep = true
		}
		return loop, nil
	}
	return nil, syntaxError(head.Line, "unknown block %s", head.Name)
}

func checkLoopBound(tok ir.Token, line int) error {
	switch tok.(type) {
	case ir.Ident, int64:
		return nil
	}
	return syntaxError(line, "RNG bounds must be integers or names, got %s", ir.FormatArg(tok))
}

// lowerStatement turns one statement into IR items, either through the
// command table or as a native VM instruction.
func lowerStatement(stmt Statement) ([]ir.Item, error) {
	if cmd, ok := commands[stmt.Name]; ok {
		e := &emitter{line: stmt.Line}
		if err := cmd.lower(e, stmt.Args); err != nil {
			return nil, err
		}
		return e.items, nil
	}
	if op, ok := vm.LookupOpcode(stmt.Name); ok {
		item, err := nativeInstruction(op, stmt)
		if err != nil {
			return nil, err
		}
		return []ir.Item{item}, nil
	}
	return nil, syntaxError(stmt.Line, "unknown statement %q", stmt.Name)
}

// nativeInstruction emits an opcode written directly in the source.
func nativeInstruction(op vm.Opcode, stmt Statement) (ir.Item, error) {
	if !op.HasArg() {
		if len(stmt.Args) != 0 {
			return nil, malformedArgumentCount(op.String(), "0", len(stmt.Args), stmt.Line)
		}
		return ir.Bare(op, stmt.Line), nil
	}
	if len(stmt.Args) != 1 {
		return nil, malformedArgumentCount(op.String(), "1", len(stmt.Args), stmt.Line)
	}
	arg := stmt.Args[0]

	switch op.Info().Class {
	case vm.ClassOperator:
		coerced, err := resolveOperatorArg(op, arg)
		if err != nil {
			if ce, ok := AsCompileError(err); ok {
				ce.Line = stmt.Line
			}
			return nil, err
		}
		return ir.Op(op, coerced, stmt.Line), nil

	case vm.ClassJump:
		name, ok := arg.(ir.Ident)
		if !ok {
			return nil, syntaxError(stmt.Line, "%s expects a label name, got %s", op, ir.FormatArg(arg))
		}
		return &ir.NamedJump{Op: op, Target: string(name), Line: stmt.Line}, nil

	case vm.ClassName, vm.ClassLocal:
		name, ok := nameArg(arg)
		if !ok {
			return nil, syntaxError(stmt.Line, "%s expects a name, got %s", op, ir.FormatArg(arg))
		}
		return ir.Op(op, name, stmt.Line), nil

	case vm.ClassGlobal:
		name, ok := nameArg(arg)
		if !ok {
			return nil, syntaxError(stmt.Line, "%s expects a name, got %s", op, ir.FormatArg(arg))
		}
		return ir.Op(op, vm.GlobalRef{Name: name}, stmt.Line), nil

	case vm.ClassConst:
		if _, ok := arg.(ir.Ident); ok {
			return nil, syntaxError(stmt.Line, "%s expects a literal, got name %s", op, ir.FormatArg(arg))
		}
		return ir.Op(op, arg, stmt.Line), nil
	}

	n, ok := arg.(int64)
	if !ok || n < 0 {
		return nil, syntaxError(stmt.Line, "%s expects a non-negative integer, got %s", op, ir.FormatArg(arg))
	}
	return ir.Op(op, int(n), stmt.Line), nil
}

func nameArg(arg ir.Token) (string, bool) {
	switch a := arg.(type) {
	case ir.Ident:
		return string(a), true
	case string:
		return a, a != ""
	}
	return "", false
}

// frame adds start-of-callable and default-return framing. Framing is only
// added where the list does not already provide it.
func frame(items []ir.Item, kind bodyKind, line int) []ir.Item {
	if line == 0 {
		line = 1
	}
	first := 1
	if len(items) > 0 && items[0].SourceLine() > 0 {
		first = items[0].SourceLine()
	}

	if !startsWithResume(items) {
		resume := ir.Op(vm.OpResume, 0, first)
		resume.Framing = true
		items = append([]ir.Item{resume}, items...)
	}
	if endsWithReturn(items) {
		return items
	}
	if kind == subBody {
		return append(items, &ir.ReturnMarker{Implicit: true, Line: line})
	}
	none := ir.Op(vm.OpLoadConst, nil, line)
	ret := ir.Bare(vm.OpReturnValue, line)
	none.Framing = true
	ret.Framing = true
	return append(items, none, ret)
}

func startsWithResume(items []ir.Item) bool {
	if len(items) == 0 {
		return false
	}
	op, ok := items[0].(*ir.Operation)
	return ok && op.Op == vm.OpResume
}

func endsWithReturn(items []ir.Item) bool {
	if len(items) == 0 {
		return false
	}
	switch it := items[len(items)-1].(type) {
	case *ir.Operation:
		return it.Op.IsReturn()
	case *ir.ReturnMarker:
		return true
	}
	return false
}

func lastLine(stmts []Statement) int {
	if len(stmts) == 0 {
		return 1
	}
	return stmts[len(stmts)-1].Line
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// ParseString parses source text into framed module IR.
func ParseString(src string) ([]ir.Item, error) {
	return NewParser(src).Parse()
}

// ParseFile reads and parses a source file.
func ParseFile(path string) ([]ir.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseString(string(data))
}
