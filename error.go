package glesutil

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

var (
	// ErrNotWrapped means a value is not an object created by this Runtime.
	ErrNotWrapped = errors.New("not a wrapped native object")
	// ErrWrongKind means a wrapped object refers to another kind of record.
	ErrWrongKind = errors.New("wrapped object has the wrong kind")
	// ErrReleased means the native record behind an object is already gone.
	ErrReleased = errors.New("native object already released")
	// ErrNoDriver is thrown by initContext when no native driver is configured.
	ErrNoDriver = errors.New("no native driver configured")
	// ErrNoContext is thrown by initContext when the driver could not create one.
	ErrNoContext = errors.New("native driver returned no context")
)

// Error represents a JavaScript error with detailed information.
type Error struct {
	Name    string // Error name (e.g., "TypeError", "ReferenceError")
	Message string // Error message
	Cause   string // Error cause
	Stack   string // Stack trace
}

// Error implements the error interface.
func (err *Error) Error() string {
	if err.Cause != "" {
		return fmt.Sprintf("%s: %s (cause: %s)", err.Name, err.Message, err.Cause)
	}
	return fmt.Sprintf("%s: %s", err.Name, err.Message)
}

// scriptError converts an error returned by goja into an *Error. Errors that
// are not script exceptions are returned unchanged.
func scriptError(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	out := &Error{Name: "Error", Stack: ex.String()}
	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		// throw of a primitive
		out.Message = ex.Value().String()
		return out
	}
	if v := obj.Get("name"); v != nil && !goja.IsUndefined(v) {
		out.Name = v.String()
	}
	if v := obj.Get("message"); v != nil && !goja.IsUndefined(v) {
		out.Message = v.String()
	}
	if v := obj.Get("cause"); v != nil && !goja.IsUndefined(v) {
		out.Cause = v.String()
	}
	return out
}

// ArgumentErrorKind distinguishes the two malformed-argument cases.
type ArgumentErrorKind uint8

const (
	TooFewArguments ArgumentErrorKind = iota + 1
	WrongArgumentType
)

func (k ArgumentErrorKind) String() string {
	switch k {
	case TooFewArguments:
		return "too few arguments"
	case WrongArgumentType:
		return "wrong argument type"
	}
	return "invalid argument"
}

// ArgumentError reports a malformed call under ArgumentsStrict.
type ArgumentError struct {
	Kind  ArgumentErrorKind
	Func  string
	Index int    // offending argument, or the number required for TooFewArguments
	Want  string // expected type, WrongArgumentType only
}

func (e *ArgumentError) Error() string {
	if e.Kind == TooFewArguments {
		return fmt.Sprintf("%s: %s, need %d", e.Func, e.Kind, e.Index)
	}
	return fmt.Sprintf("%s: %s for argument %d, want %s", e.Func, e.Kind, e.Index, e.Want)
}

// DispatchError is a handler failure swallowed by the callback bridge.
type DispatchError struct {
	Event   EventKind
	Context int32 // handle id of the firing context
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("glesutil: %s handler of context %d: %v", e.Event.Property(), e.Context, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// throwError raises err in the script engine. ArgumentErrors become a
// TypeError, anything else a Go-backed Error.
func (r *Runtime) throwError(err error) {
	var aerr *ArgumentError
	if errors.As(err, &aerr) {
		panic(r.vm.NewTypeError(aerr.Error()))
	}
	panic(r.vm.NewGoError(err))
}
