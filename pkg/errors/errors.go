// Package errors provides structured error handling for tabula with typed
// categories, key-value details and captured stack traces.
//
// # Overview
//
// Every failure in the storage and tabular layers is a returned *Error scoped
// to the call that produced it. The category tells callers what went wrong:
//
//   - ErrorTypeConstruction: a View could not be built (non-object target,
//     zero columns, strict length mismatch)
//   - ErrorTypeAccess: a row, column or typed export was requested that does
//     not exist or does not match the stored tag
//   - ErrorTypeOperation: a tabular operation was called with inconsistent
//     arguments, hit a cross-type comparison or a failing expression
//
// Missing cells, ragged columns and empty results are data, not errors.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrorTypeConstruction, "column lengths differ").
//	    WithDetail("lengths", map[string]int{"a": 3, "b": 2})
//
//	if errors.IsType(err, errors.ErrorTypeConstruction) {
//	    // fall back to a ragged view
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeConstruction represents view construction and validation errors
	ErrorTypeConstruction ErrorType = "construction"
	// ErrorTypeAccess represents out-of-range or wrong-tag access errors
	ErrorTypeAccess ErrorType = "access"
	// ErrorTypeOperation represents tabular operation errors
	ErrorTypeOperation ErrorType = "operation"
	// ErrorTypeInternal represents internal consistency failures
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents malformed document data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs such as offending column names and lengths
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. It can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns the detail stored under key.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already a structured Error its stack trace is preserved. Returns nil if
// err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the outermost structured error in the chain has the
// given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As is errors.As re-exported so callers importing this package under the
// name errors keep access to it.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is re-exported for the same reason as As.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
