package compiler

import (
	"strings"
	"testing"
)

func TestLexerStatementLine(t *testing.T) {
	input := "LET total a + 42\n"
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenName, "LET"},
		{TokenName, "total"},
		{TokenName, "a"},
		{TokenOp, "+"},
		{TokenNumber, "42"},
		{TokenNewline, "\n"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"42", int64(42)},
		{"0", int64(0)},
		{"007", int64(7)},
		{"1_000", int64(1000)},
		{"0x1F", int64(31)},
		{"0o17", int64(15)},
		{"0b101", int64(5)},
		{"-12", int64(-12)},
		{"-0x10", int64(-16)},
		{"3.5", 3.5},
		{"3.5e2", 350.0},
		{"1e-3", 0.001},
		{".5", 0.5},
		{"-2.25", -2.25},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("Lexer(%q): type = %v, want NUMBER (%s)", tc.input, tok.Type, tok)
			continue
		}
		if tok.Value != tc.want {
			t.Errorf("Lexer(%q): value = %#v, want %#v", tc.input, tok.Value, tc.want)
		}
	}
}

func TestLexerMinusNeedsLeadingSpace(t *testing.T) {
	tokens := Tokenize("LET x a -1\nLET y a - 1\nLET z a-1\n")
	var got []string
	for _, tok := range tokens {
		if tok.Type == TokenNumber || tok.Type == TokenOp {
			got = append(got, tok.Literal)
		}
	}
	want := []string{"-1", "-", "1", "-", "1"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("numbers and operators = %v, want %v", got, want)
	}
}

func TestLexerInvalidNumbers(t *testing.T) {
	for _, input := range []string{"12abc", "99999999999999999999", "0xZZ"} {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'hello'`, "hello"},
		{`"world"`, "world"},
		{`''`, ""},
		{`"it's"`, "it's"},
		{`'say \'hi\''`, "say 'hi'"},
		{`'a\nb\tc'`, "a\nb\tc"},
		{`'\x41é\U0001F600'`, "Aé\U0001F600"},
		{`'back\\slash'`, `back\slash`},
		{`'keep \q'`, `keep \q`},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%q): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Value != tc.want {
			t.Errorf("Lexer(%q): value = %q, want %q", tc.input, tok.Value, tc.want)
		}
		if tok.Literal != tc.input {
			t.Errorf("Lexer(%q): literal = %q, want the raw text", tc.input, tok.Literal)
		}
	}
}

func TestLexerBadStrings(t *testing.T) {
	for _, input := range []string{`'open`, "'line\nbreak'", `'\xZZ'`} {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	for op := range bareOperators {
		tok := NewLexer(op).NextToken()
		if tok.Type != TokenOp || tok.Literal != op {
			t.Errorf("Lexer(%q) = %s, want OP", op, tok)
		}
	}
	if tok := NewLexer("===").NextToken(); tok.Type != TokenError {
		t.Errorf("Lexer(===) = %s, want ERROR", tok)
	}
}

func TestLexerSkipsBlankAndCommentLines(t *testing.T) {
	input := "\n# heading\n\n   PNT 1   # trailing\n\n# done\n"
	tokens := Tokenize(input)
	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	want := []TokenType{TokenName, TokenNumber, TokenNewline, TokenEOF}
	if len(types) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, types[i], want[i])
		}
	}
	if tokens[0].Pos.Line != 4 {
		t.Errorf("PNT line = %d, want 4", tokens[0].Pos.Line)
	}
}

func TestLexerNewlineAtEOF(t *testing.T) {
	tokens := Tokenize("PNT 1")
	if len(tokens) != 4 {
		t.Fatalf("tokens = %v, want NAME NUMBER NEWLINE EOF", tokens)
	}
	if tokens[2].Type != TokenNewline || tokens[3].Type != TokenEOF {
		t.Errorf("tail = %v %v, want NEWLINE EOF", tokens[2], tokens[3])
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("PNT 1\n  LET x 2\n")
	let := tokens[3]
	if let.Literal != "LET" {
		t.Fatalf("tokens[3] = %s, want LET", let)
	}
	if let.Pos.Line != 2 || let.Pos.Column != 3 {
		t.Errorf("LET position = %s, want 2:3", let.Pos)
	}
	if tokens[2].Pos.Line != 1 {
		t.Errorf("first NEWLINE line = %d, want 1", tokens[2].Pos.Line)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	tok := NewLexer("PNT $").NextToken()
	if tok.Type != TokenName {
		t.Fatalf("first token = %s", tok)
	}
	tokens := Tokenize("PNT $")
	last := tokens[len(tokens)-1]
	if last.Type != TokenError || !strings.Contains(last.Literal, "unexpected character") {
		t.Errorf("last token = %s, want unexpected character error", last)
	}
}
