package extraction

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies remote extraction failures.
type FailureKind string

const (
	FailureUnavailable FailureKind = "remote_unavailable"
	FailureMalformed   FailureKind = "malformed_reply"
	FailureTimeout     FailureKind = "timeout"
)

// ErrRateLimited is returned when the local call budget for the remote
// model is exhausted.
var ErrRateLimited = errors.New("extraction: remote call budget exhausted")

// RemoteError is the only error type returned by Remote.Extract.
type RemoteError struct {
	Kind FailureKind
	Err  error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("extraction: %s", e.Kind)
	}
	return fmt.Sprintf("extraction: %s: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the failure kind carried by err, or FailureUnavailable for
// errors that are not a *RemoteError.
func KindOf(err error) FailureKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return FailureUnavailable
}

func classifyCallError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnavailable
}
