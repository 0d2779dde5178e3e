package inventory

import (
	"errors"
	"fmt"

	"github.com/roach88/stockpile/internal/callresult"
	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
)

// ErrorCode categorizes synchronous inventory failures.
type ErrorCode string

const (
	// CodeOperationFailed indicates the subsystem rejected a start or consume.
	CodeOperationFailed ErrorCode = "OPERATION_FAILED"

	// CodeGetResultItemsFailed indicates either phase of the fill failed.
	CodeGetResultItemsFailed ErrorCode = "GET_RESULT_ITEMS_FAILED"

	// CodeTimeout indicates polling ran out of attempts.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInvalidInput indicates a caller-side precondition failed before
	// the subsystem was contacted.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
)

var codeMessages = map[ErrorCode]string{
	CodeOperationFailed:      "the inventory operation failed",
	CodeGetResultItemsFailed: "failed to retrieve result items",
	CodeTimeout:              "timeout waiting for inventory result",
	CodeInvalidInput:         "invalid input",
}

// Error is a synchronous inventory failure.
//
// Errors compare by code: errors.Is(err, ErrTimeout) holds for any *Error
// with CodeTimeout, wherever it was raised.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the step that failed (e.g. "start", "poll", "size", "fill").
	Op string

	// Handle is the result handle involved, or handle.Invalid.
	Handle handle.Handle

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrOperationFailed      = &Error{Code: CodeOperationFailed, Handle: handle.Invalid}
	ErrGetResultItemsFailed = &Error{Code: CodeGetResultItemsFailed, Handle: handle.Invalid}
	ErrTimeout              = &Error{Code: CodeTimeout, Handle: handle.Invalid}
	ErrInvalidInput         = &Error{Code: CodeInvalidInput, Handle: handle.Invalid}
)

func newError(code ErrorCode, op string, h handle.Handle, cause error) *Error {
	return &Error{Code: code, Op: op, Handle: h, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := codeMessages[e.Code]
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Handle.Valid() {
		msg = fmt.Sprintf("%s (handle=%d)", msg, int64(e.Handle))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsTimeout reports whether err is a poll timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsOperationFailed reports whether the subsystem rejected the request.
func IsOperationFailed(err error) bool {
	return errors.Is(err, ErrOperationFailed)
}

// Purchase outcome errors.
var (
	// ErrInvalidParameter is reported for an empty purchase, an invalid
	// call token, a failed registration, a purchase on a closed engine,
	// or a ResultInvalidParam completion.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrIOFailure is reported when the completion could not be delivered.
	ErrIOFailure = errors.New("i/o failure delivering call result")

	// ErrClosed is the cause attached to requests refused or cut short
	// by Engine.Close.
	ErrClosed = errors.New("engine closed")
)

// ResultError carries a non-OK result code from a purchase completion.
type ResultError struct {
	Code subsystem.Result
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return fmt.Sprintf("purchase failed: %s", e.Code)
}

// Is matches a *ResultError with the same code, and ErrInvalidParameter
// for ResultInvalidParam.
func (e *ResultError) Is(target error) bool {
	if target == ErrInvalidParameter {
		return e.Code == subsystem.ResultInvalidParam
	}
	t, ok := target.(*ResultError)
	return ok && t.Code == e.Code
}

// CodeOf names the failure category of err for reports and scenario
// files: an ErrorCode, "RESULT_<name>" for a non-OK completion, or one of
// INVALID_PARAMETER, IO_FAILURE, UNKNOWN_CALL, DUPLICATE_CALL and ERROR.
// A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}

	var ierr *Error
	var rerr *ResultError
	switch {
	case errors.As(err, &ierr):
		return string(ierr.Code)
	case errors.As(err, &rerr):
		return "RESULT_" + rerr.Code.String()
	case errors.Is(err, ErrInvalidParameter):
		return "INVALID_PARAMETER"
	case errors.Is(err, ErrIOFailure):
		return "IO_FAILURE"
	case errors.Is(err, callresult.ErrUnknownCall):
		return "UNKNOWN_CALL"
	case errors.Is(err, callresult.ErrDuplicateCall):
		return "DUPLICATE_CALL"
	default:
		return "ERROR"
	}
}
