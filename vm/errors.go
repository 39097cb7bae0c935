package vm

import "fmt"

// RuntimeError is a failure while executing a program. Kind names the
// error class the way programs see it (NameError, TypeError, ...).
type RuntimeError struct {
	Kind string
	Msg  string
	Line int    // source line of the failing instruction; 0 when unknown
	Func string // name of the code that was executing
	Err  error  // underlying cause, such as a context error
}

func (e *RuntimeError) Error() string {
	msg := e.Msg
	if e.Kind != "" {
		msg = e.Kind + ": " + msg
	}
	if e.Line > 0 {
		if e.Func != "" {
			return fmt.Sprintf("line %d in %s: %s", e.Line, e.Func, msg)
		}
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// errorf builds a RuntimeError without position; the interpreter stamps
// the line when the error leaves the instruction that raised it.
func errorf(kind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...interface{}) *RuntimeError {
	return errorf("TypeError", format, args...)
}

func valueErrorf(format string, args ...interface{}) *RuntimeError {
	return errorf("ValueError", format, args...)
}
