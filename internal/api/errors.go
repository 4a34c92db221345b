package api

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is, except context cancellation which is returned as is.
var (
	ErrTransport      = errors.New("transport error")
	ErrProtocol       = errors.New("protocol error")
	ErrRemoteAnalysis = errors.New("remote analysis error")
	ErrTimeout        = errors.New("timeout")
)

// RemoteAnalysisError carries the failure message reported by the backend.
// Error returns the message verbatim.
type RemoteAnalysisError struct {
	Message    string
	StatusCode int // HTTP status when the failure came from a non-2xx response
}

func (e *RemoteAnalysisError) Error() string {
	if e.Message == "" {
		return "analysis failed"
	}
	return e.Message
}

// Is reports whether target is ErrRemoteAnalysis.
func (e *RemoteAnalysisError) Is(target error) bool {
	return target == ErrRemoteAnalysis
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func protocolErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
