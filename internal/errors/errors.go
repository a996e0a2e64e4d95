// Package errors is the application's failure taxonomy. Every error that
// reaches a report or the CLI carries a Code; user-facing errors also carry
// a message and a suggested next step.
package errors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code            Code
	Message         string
	InternalDetails string
	IsUserFacing    bool
	SuggestedAction string
	WrappedError    error
}

func (e *AppError) Error() string {
	if e.WrappedError != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.WrappedError)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.WrappedError
}

// Is lets errors.Is match an AppError against a code-only sentinel such as
// New(CodeThrottled, "").
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func NewUserFacing(code Code, message string, suggestion string) *AppError {
	return &AppError{
		Code:            code,
		Message:         message,
		IsUserFacing:    true,
		SuggestedAction: suggestion,
	}
}

// Wrap attaches a code to err. An error that already carries an AppError is
// returned unchanged so the innermost classification wins.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: code, Message: message, WrappedError: err}
}

// WrapWithCode always creates a new AppError around err, replacing any code
// carried by the chain. Use it when an outer layer knows better than the
// inner one, e.g. a rejected transition that is really a conflict.
func WrapWithCode(err error, code Code, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, WrappedError: err}
}

// WrapUserFacing replaces the classification of err with a user-facing one.
// The inner error's text is kept as InternalDetails for the logs.
func WrapUserFacing(err error, code Code, message string, suggestion string) *AppError {
	if err == nil {
		return nil
	}
	wrapped := &AppError{
		Code:            code,
		Message:         message,
		IsUserFacing:    true,
		SuggestedAction: suggestion,
		WrappedError:    err,
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped.InternalDetails = appErr.Error()
	}
	return wrapped
}

// Cancelled marks cause, normally ctx.Err(), as CANCELLED. The result still
// satisfies errors.Is(err, context.Canceled) when cause does.
func Cancelled(cause error, format string, args ...any) *AppError {
	return WrapWithCode(cause, CodeCancelled, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost AppError in err's chain.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	return GetCode(err).Retryable()
}

// GetUserFacingMessage returns the message and suggestion of the outermost
// user-facing AppError in err's chain. ok is false when there is none.
func GetUserFacingMessage(err error) (message string, suggestion string, ok bool) {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			break
		}
		if appErr.IsUserFacing {
			return appErr.Message, appErr.SuggestedAction, true
		}
		err = appErr.Unwrap()
	}
	return "An unexpected error occurred.", "Check logs for more details.", false
}
