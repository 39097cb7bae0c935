package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

// ErrorKind classifies a CompileError.
type ErrorKind int

const (
	KindSyntax ErrorKind = iota + 1
	KindDuplicateLabel
	KindUndefinedLabel
	KindReturnOutsideFunction
	KindLabelInLoopBody
	KindUnknownOperator
	KindMalformedArgumentCount
)

var kindNames = map[ErrorKind]string{
	KindSyntax:                 "SyntaxError",
	KindDuplicateLabel:         "DuplicateLabel",
	KindUndefinedLabel:         "UndefinedLabel",
	KindReturnOutsideFunction:  "ReturnOutsideFunction",
	KindLabelInLoopBody:        "LabelInLoopBody",
	KindUnknownOperator:        "UnknownOperator",
	KindMalformedArgumentCount: "MalformedArgumentCount",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error lets a kind be used as an errors.Is target.
func (k ErrorKind) Error() string {
	return k.String()
}

// Sentinels for errors.Is.
var (
	ErrSyntax                 error = KindSyntax
	ErrDuplicateLabel         error = KindDuplicateLabel
	ErrUndefinedLabel         error = KindUndefinedLabel
	ErrReturnOutsideFunction  error = KindReturnOutsideFunction
	ErrLabelInLoopBody        error = KindLabelInLoopBody
	ErrUnknownOperator        error = KindUnknownOperator
	ErrMalformedArgumentCount error = KindMalformedArgumentCount
)

// CompileError is a user-facing error detected at compile time. Only the
// fields relevant to the Kind are set.
type CompileError struct {
	Kind ErrorKind
	Line int // 0 when unknown

	Name  string // label name
	Scope string // scope of a duplicate label

	Family string // operator family
	Input  string // offending operator spelling

	Construct string // statement with a bad argument count
	Expected  string
	Got       int

	Msg string
}

func (e *CompileError) Error() string {
	var detail string
	switch e.Kind {
	case KindDuplicateLabel:
		detail = fmt.Sprintf("duplicate label %q in %s", e.Name, e.Scope)
	case KindUndefinedLabel:
		detail = fmt.Sprintf("jump to undefined label %q", e.Name)
	case KindReturnOutsideFunction:
		detail = "RET outside of SUB"
	case KindLabelInLoopBody:
		detail = fmt.Sprintf("label %q declared inside RNG body", e.Name)
	case KindUnknownOperator:
		detail = fmt.Sprintf("unknown %s operator %q", e.Family, e.Input)
	case KindMalformedArgumentCount:
		detail = fmt.Sprintf("%s expects %s argument(s), got %d", e.Construct, e.Expected, e.Got)
	default:
		detail = e.Msg
	}
	if e.Msg != "" && e.Kind != KindSyntax {
		detail += ": " + e.Msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, detail)
}

// Is matches the sentinel of the same kind.
func (e *CompileError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

func syntaxError(line int, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: KindSyntax, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func duplicateLabel(name, scope string, line int) *CompileError {
	return &CompileError{Kind: KindDuplicateLabel, Name: name, Scope: scope, Line: line}
}

func undefinedLabel(name string, line int) *CompileError {
	return &CompileError{Kind: KindUndefinedLabel, Name: name, Line: line}
}

func returnOutsideFunction(line int) *CompileError {
	return &CompileError{Kind: KindReturnOutsideFunction, Line: line}
}

func labelInLoopBody(name string, line int) *CompileError {
	return &CompileError{Kind: KindLabelInLoopBody, Name: name, Line: line}
}

func unknownOperator(family string, input interface{}) *CompileError {
	return &CompileError{Kind: KindUnknownOperator, Family: family, Input: fmt.Sprint(input)}
}

func malformedArgumentCount(construct, expected string, got, line int) *CompileError {
	return &CompileError{
		Kind:      KindMalformedArgumentCount,
		Construct: construct,
		Expected:  expected,
		Got:       got,
		Line:      line,
	}
}

// AsCompileError unwraps err to a *CompileError if it is one.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Internal defects
// ---------------------------------------------------------------------------

// InternalError reports a broken assembler invariant. It is a bug in the
// compiler, never a problem with the program being compiled.
type InternalError struct {
	Pass   string
	Index  int
	Detail string
	Dump   string // listing of the stream at the time of failure
}

func (e *InternalError) Error() string {
	msg := fmt.Sprintf("internal compiler error in %s at item %d: %s", e.Pass, e.Index, e.Detail)
	if e.Dump != "" {
		msg += "\n" + e.Dump
	}
	return msg
}
