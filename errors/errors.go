package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"maps"
)

// PlatformError is an error carrying an ErrorCode, a human readable message and
// optional structured context. It wraps an optional cause.
type PlatformError struct {
	// Code classifies the error.
	Code ErrorCode

	// Message describes what failed.
	Message string

	// Context holds extra key/value detail such as the path or drive involved.
	Context map[string]interface{}

	// Cause is the wrapped error, if any.
	Cause error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap returns the wrapped cause for error chain traversal.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// New creates a PlatformError without a cause.
func New(code ErrorCode, message string) *PlatformError {
	return &PlatformError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps err with a code and message. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &PlatformError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithContext wraps err like Wrap and attaches a copy of ctx.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) error {
	if err == nil {
		return nil
	}
	pe := &PlatformError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
	if len(ctx) > 0 {
		pe.Context = maps.Clone(ctx)
	}
	return pe
}

// CodeOf returns the code of the outermost PlatformError in err's chain. Errors
// without one are classified from well-known standard library sentinels.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var pe *PlatformError
	if stderrors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case stderrors.Is(err, fs.ErrExist):
		return CodeAlreadyExists
	case stderrors.Is(err, fs.ErrPermission):
		return CodeForbidden
	case stderrors.Is(err, fs.ErrInvalid):
		return CodeInvalidInput
	case stderrors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}

// HasCode reports whether err classifies as code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
