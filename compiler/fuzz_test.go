package compiler

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chazu/paxy/vm"
)

var fuzzSeeds = []string{
	// tokens
	`PNT 1`, `PNT -1`, `LET x 0x1F`, `LET x 0b_101`, `LET x 1_000.5e3`, `LET x .5`,
	`PNT 'it\'s'`, `PNT "tab\there"`, `PNT '\x41é'`, `PNT 'unterminated`,
	`LET x a // b`, `LET x a ** b`, `LET x a is not b`, `LET x a not in b`,
	"# comment only\n", "\n\n\n", "   ", "", "\t\r\n",
	`+-*/%<>=!&|^~@`, `PNT café`, `PNT 'こんにちは'`,
	// statements
	"LBL top\nINC n\nIF n < 3 top\n",
	"SUB f a b\nLET r a + b\nRET r\nSBE\nGOS x f 1 2\nPNT x\n",
	"RNG i 0 5\nPNT i\nRNE\n",
	"RNG i 10 0 -3\nRNG j 0 i\nPNT j\nRNE\nRNE\n",
	"VEC v 1 2 3\nVAP v 4\nVOP x v\nVER v\nLEN n v\nPNT v\n",
	"MAP m 'a' 1\nMAD m 'b' 2\nMAL m 'a'\nPNT m\n",
	"ROW r 1 2\nPAR a b b a\nIS s a b\nNIN t 1 r\n",
	"TIN n '3'\nTFL f n\nTST s f\nCMP c n == 3\n",
	"LOAD_CONST 1\nLOAD_CONST 2\nBINARY_OP +\nPOP_TOP\n",
	"RESUME 0\nLOAD_CONST None\nRETURN_VALUE\n",
	// malformed
	"SUB f\n", "RNE\n", "SBE\n", "GO nowhere\n", "LBL a\nLBL a\n", "RET\n",
	"RNG i 0 3\nLBL x\nRNE\n", "LET x a frob b\n", "PAR a\n", "BUILD_LIST -1\n",
	"JUMP_FORWARD x\n", "COMPARE_OP 99\n",
}

// ---------------------------------------------------------------------------
// FuzzLexer: the lexer never panics and always terminates.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; ; i++ {
			if i > 2*len(data)+10 {
				t.Fatalf("lexer did not reach EOF on input %q", data)
			}
			tok := l.NextToken()
			if tok.Type == TokenEOF {
				break
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: parsing fails with a CompileError or succeeds, never panics.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked on input %q: %v", data, r)
			}
		}()

		_, err := ParseString(data)
		if err != nil {
			if _, ok := AsCompileError(err); !ok {
				t.Fatalf("ParseString(%q) returned %T: %v", data, err, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzCompileAndRun: every program either fails to compile with a
// CompileError or links into code the VM can run without panicking.
// ---------------------------------------------------------------------------

func FuzzCompileAndRun(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		var code *vm.Code
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("compiler panicked on input %q: %v", data, r)
				}
			}()
			var err error
			code, err = CompileString("fuzz", data, Options{})
			var ie *InternalError
			if errors.As(err, &ie) {
				t.Fatalf("internal error on input %q: %v", data, err)
			}
		}()
		if code == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("vm panicked on input %q: %v", data, r)
			}
		}()
		m := vm.NewVM(
			vm.WithStdout(io.Discard),
			vm.WithStdin(strings.NewReader("1\n2\n3\n")),
			vm.WithMaxDepth(64),
		)
		m.Run(ctx, code)
	})
}
