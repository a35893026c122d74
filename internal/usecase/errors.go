package usecase

import "fmt"

type ErrorCode string

const (
	ErrorValidation      ErrorCode = "VALIDATION_ERROR"
	ErrorBusy            ErrorCode = "BUSY"
	ErrorUnknownTemplate ErrorCode = "UNKNOWN_TEMPLATE"
	ErrorTransport       ErrorCode = "TRANSPORT_ERROR"
	ErrorService         ErrorCode = "SERVICE_ERROR"
	ErrorSessionEnded    ErrorCode = "SESSION_ENDED"
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Detail is the human-readable message shown in notifications.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
