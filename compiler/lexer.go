package compiler

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: line-oriented tokenizer for paxy source
// ---------------------------------------------------------------------------

// Lexer tokenizes paxy source code. Statements end at a newline; blank
// lines and comment-only lines produce no NEWLINE token.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	lineStart int  // offset of current line start

	// lineHasTokens is set once a token other than NEWLINE has been
	// produced on the current line.
	lineHasTokens bool
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character. The newline character belongs to the
// line it terminates.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// precededBySpace reports whether the current character starts a word.
func (l *Lexer) precededBySpace() bool {
	if l.pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(l.input[:l.pos])
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.nextToken()
	switch tok.Type {
	case TokenNewline:
		l.lineHasTokens = false
	case TokenEOF:
	default:
		l.lineHasTokens = true
	}
	return tok
}

func (l *Lexer) nextToken() Token {
	for {
		l.skipSpaceAndComments()

		pos := l.position()

		switch {
		case l.ch == 0:
			if l.lineHasTokens {
				return Token{Type: TokenNewline, Pos: pos}
			}
			return Token{Type: TokenEOF, Pos: pos}

		case l.ch == '\n':
			l.readChar()
			if !l.lineHasTokens {
				continue
			}
			return Token{Type: TokenNewline, Literal: "\n", Pos: pos}

		case l.ch == '\'' || l.ch == '"':
			return l.readString(pos)

		case isDigit(l.ch):
			return l.readNumber(pos)

		case l.ch == '-' && isDigit(l.peekChar()) && l.precededBySpace():
			return l.readNumber(pos)

		case l.ch == '.' && isDigit(l.peekChar()):
			return l.readNumber(pos)

		case isLetter(l.ch) || l.ch == '_':
			return l.readName(pos)

		case IsOperatorChar(l.ch):
			return l.readOperator(pos)

		default:
			ch := l.ch
			l.readChar()
			return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
		}
	}
}

// skipSpaceAndComments skips blanks and # comments, stopping at a newline.
func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readString reads a single- or double-quoted string literal with
// backslash escapes.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	start := l.pos
	l.readChar() // consume opening quote

	var sb strings.Builder
	for l.ch != quote {
		switch l.ch {
		case 0, '\n':
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case '\\':
			l.readChar()
			if err := l.readEscape(&sb); err != "" {
				return Token{Type: TokenError, Literal: err, Pos: pos}
			}
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote

	return Token{Type: TokenString, Literal: l.input[start:l.pos], Value: sb.String(), Pos: pos}
}

// readEscape decodes the escape sequence after a backslash.
func (l *Lexer) readEscape(sb *strings.Builder) string {
	switch l.ch {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteRune(l.ch)
	case '\n':
		// line continuation inside a string
	case 'x', 'u', 'U':
		width := map[rune]int{'x': 2, 'u': 4, 'U': 8}[l.ch]
		var digits strings.Builder
		for i := 0; i < width; i++ {
			l.readChar()
			if !isHexDigit(l.ch) {
				return "invalid escape sequence"
			}
			digits.WriteRune(l.ch)
		}
		n, err := strconv.ParseUint(digits.String(), 16, 32)
		if err != nil || n > unicode.MaxRune {
			return "invalid escape sequence"
		}
		sb.WriteRune(rune(n))
	case 0:
		return "unterminated string"
	default:
		sb.WriteByte('\\')
		sb.WriteRune(l.ch)
	}
	l.readChar()
	return ""
}

// readNumber reads an integer or float literal, including a leading minus
// sign and 0x/0o/0b prefixes. Underscores may separate digits.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false

	if l.ch == '-' {
		l.readChar()
	}

	if l.ch == '0' && strings.ContainsRune("xXoObB", l.peekChar()) {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '.' {
			isFloat = true
			l.readChar()
			for isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	if isLetter(l.ch) || l.ch == '_' {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return Token{Type: TokenError, Literal: fmt.Sprintf("invalid number %q", l.input[start:l.pos]), Pos: pos}
	}

	lit := l.input[start:l.pos]
	value, err := parseNumber(lit, isFloat)
	if err != nil {
		return Token{Type: TokenError, Literal: err.Error(), Pos: pos}
	}
	return Token{Type: TokenNumber, Literal: lit, Value: value, Pos: pos}
}

// parseNumber decodes a numeric literal to int64 or float64.
func parseNumber(lit string, isFloat bool) (interface{}, error) {
	clean := strings.ReplaceAll(lit, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", lit)
		}
		return f, nil
	}
	// base 0 handles the 0x/0o/0b prefixes; leading zeros stay decimal
	base := 0
	digits := strings.TrimPrefix(clean, "-")
	if len(digits) > 1 && digits[0] == '0' && isDigit(rune(digits[1])) {
		base = 10
	}
	n, err := strconv.ParseInt(clean, base, 64)
	if err != nil {
		var b big.Int
		if _, ok := b.SetString(clean, base); ok {
			return nil, fmt.Errorf("integer %s out of range", lit)
		}
		return nil, fmt.Errorf("invalid number %q", lit)
	}
	return n, nil
}

// readName reads an identifier or statement name.
func (l *Lexer) readName(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return Token{Type: TokenName, Literal: l.input[start:l.pos], Pos: pos}
}

// readOperator reads the longest bare operator at the current position.
func (l *Lexer) readOperator(pos Position) Token {
	start := l.pos
	for IsOperatorChar(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if !bareOperators[lit] {
		return Token{Type: TokenError, Literal: fmt.Sprintf("unknown operator %q", lit), Pos: pos}
	}
	return Token{Type: TokenOp, Literal: lit, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
