package usecase

import (
	"errors"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorStorage      ErrorCode = "STORAGE_ERROR"
	ErrorPlanning     ErrorCode = "PLANNING_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified failure. Only INVALID_INPUT leaves the service; the
// other codes are attached to log records before the turn degrades to a
// message response.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("usecase: ")
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		b.WriteString(" (" + e.Reason + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
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

// CodeOf returns the code of the first *Error in err's chain. Unclassified
// errors report ErrorInternal and nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var uerr *Error
	if errors.As(err, &uerr) && uerr.Code != "" {
		return uerr.Code
	}
	return ErrorInternal
}
