package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the paxy lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenName   // PNT, counter, None
	TokenNumber // 42, -7, 0xFF, 3.5e2
	TokenString // 'hello', "world"

	// Bare operators allowed as statement arguments
	TokenOp // + - * / // % ** == != < <= > >= | & ^ << >> @
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenError:   "ERROR",
	TokenNewline: "NEWLINE",
	TokenName:    "NAME",
	TokenNumber:  "NUMBER",
	TokenString:  "STRING",
	TokenOp:      "OP",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string      // the raw text
	Value   interface{} // decoded value of NUMBER and STRING tokens
	Pos     Position    // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNewline:
		return "NEWLINE"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// bareOperators are the operator spellings accepted without quotes.
var bareOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "//": true, "%": true,
	"**": true, "==": true, "!=": true, "<": true, "<=": true, ">": true,
	">=": true, "|": true, "&": true, "^": true, "<<": true, ">>": true,
	"@": true,
}

// IsOperatorChar returns true if r can start a bare operator.
func IsOperatorChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '%', '=', '!', '<', '>', '|', '&', '^', '@':
		return true
	}
	return false
}
