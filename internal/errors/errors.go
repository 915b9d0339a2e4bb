// Package errors provides the typed error used across the calclab engine.
//
// Every failure a request can end with carries a Kind so that transports can
// map it to a status code and callers can present the message verbatim.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindValidation covers bad request parameters: interval ordering,
	// non-positive tolerance or step, unparsable numeric fields.
	KindValidation
	// KindParse covers malformed function text.
	KindParse
	// KindEvaluation is raised when an algorithm needs a finite value and
	// the function produced NaN or an infinity.
	KindEvaluation
	// KindConvergence is raised when the iteration cap is exceeded.
	KindConvergence
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindEvaluation:
		return "evaluation"
	case KindConvergence:
		return "convergence"
	default:
		return "unknown"
	}
}

// Error represents an engine error with context and stack trace.
type Error struct {
	// Kind is the failure class.
	Kind Kind
	// A human-readable message describing the error
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// The component or package where the error occurred
	Component string
	// The underlying error, if any
	Err error
	// The stack trace
	Stack []string
}

// Error implements the error interface. Only the message and the cause are
// rendered; operation and component are diagnostic fields for logs.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent adds a component to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// Fields returns the diagnostic context of the error as log fields.
func (e *Error) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"error": e.Error(),
		"kind":  e.Kind.String(),
	}
	if e.Operation != "" {
		fields["operation"] = e.Operation
	}
	if e.Component != "" {
		fields["component"] = e.Component
	}
	return fields
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// Validation creates a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// Parse creates a KindParse error.
func Parse(format string, args ...interface{}) *Error {
	return newf(KindParse, format, args...)
}

// Evaluation creates a KindEvaluation error naming the offending x.
func Evaluation(x, value float64, format string, args ...interface{}) *Error {
	e := newf(KindEvaluation, format, args...)
	e.Message = fmt.Sprintf("%s: f(%g) = %g", e.Message, x, value)
	return e
}

// Convergence creates a KindConvergence error.
func Convergence(format string, args ...interface{}) *Error {
	return newf(KindConvergence, format, args...)
}

// Wrap wraps err with a kind and message. If err is nil, Wrap returns nil.
func Wrap(err error, kind Kind, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: msg,
		Err:     err,
		Stack:   getStackTrace(),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, getStackTrace, and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}

	return stack
}
