// Package calcerr defines the error kinds returned by condition parsing,
// compilation, key extraction and columnar execution.
//
// Errors are always returned, never thrown. Callers classify them with
// errors.Is against the sentinel kinds:
//
//	if errors.Is(err, calcerr.ErrShape) {
//	    // field-set mismatch in update/delete extraction
//	}
package calcerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an error.
type Kind int

const (
	// KindParse is malformed JSON or condition shape.
	KindParse Kind = iota + 1
	// KindCompile is an unknown operator, a type-mismatched CAST, a failed
	// syntax parse or a failed constant fold.
	KindCompile
	// KindShape is a field-set mismatch in update/delete extraction, a
	// duplicate key in one AND branch or inconsistent OR branches.
	KindShape
	// KindTypeDispatch is a value type outside the closed domain reaching a
	// type switch. It always indicates a defect, never bad input.
	KindTypeDispatch
	// KindEval is a row that a well-formed expression cannot be evaluated
	// on, such as a division by zero or an unparsable string in a CAST.
	KindEval
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindCompile:
		return "compile error"
	case KindShape:
		return "shape error"
	case KindTypeDispatch:
		return "type dispatch error"
	case KindEval:
		return "evaluation error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Sentinel kinds for errors.Is.
var (
	ErrParse        = &Error{Kind: KindParse}
	ErrCompile      = &Error{Kind: KindCompile}
	ErrShape        = &Error{Kind: KindShape}
	ErrTypeDispatch = &Error{Kind: KindTypeDispatch}
	ErrEval         = &Error{Kind: KindEval}
)

// Error is a classified error.
type Error struct {
	Kind Kind
	// Op names the component that failed (e.g. "parse", "keys", "project").
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so any error of a kind matches its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// GRPCStatus maps the error onto a gRPC status so a plan node serving the
// request over RPC can surface it unchanged.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code(), e.Error())
}

// Code returns the gRPC code for the error kind.
func (e *Error) Code() codes.Code {
	switch e.Kind {
	case KindParse, KindCompile, KindShape, KindEval:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// Parse returns a KindParse error.
func Parse(op, format string, args ...any) error {
	return newError(KindParse, op, format, args...)
}

// Compile returns a KindCompile error.
func Compile(op, format string, args ...any) error {
	return newError(KindCompile, op, format, args...)
}

// Shape returns a KindShape error.
func Shape(op, format string, args ...any) error {
	return newError(KindShape, op, format, args...)
}

// TypeDispatch returns a KindTypeDispatch error.
func TypeDispatch(op, format string, args ...any) error {
	return newError(KindTypeDispatch, op, format, args...)
}

// Eval returns a KindEval error.
func Eval(op, format string, args ...any) error {
	return newError(KindEval, op, format, args...)
}

// Wrap classifies err under kind. A nil err yields nil. An err that already
// carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return &Error{Kind: ce.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or 0.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

func newError(kind Kind, op, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Msg: msg}
}
