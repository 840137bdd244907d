package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for objects whose suffix maps to no analyzer. Not a failure.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrConfigurationMissing indicates an endpoint or key was not configured.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrTransport covers network level failures talking to storage or the remote API.
	ErrTransport = errors.New("transport failure")
	// ErrDecode covers undecodable object content or remote responses.
	ErrDecode = errors.New("decode failure")
	// ErrRemoteRejected indicates the remote API answered with a non-2xx status.
	ErrRemoteRejected = errors.New("remote rejected request")
)

// RemoteError carries the rejected status and response body.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrRemoteRejected) match any RemoteError.
func (e *RemoteError) Is(target error) bool { return target == ErrRemoteRejected }

// ErrorKind is the label an error is reported under in logs, metrics and records.
type ErrorKind string

const (
	ErrorKindNone                 ErrorKind = ""
	ErrorKindUnsupported          ErrorKind = "unsupported"
	ErrorKindConfigurationMissing ErrorKind = "configuration_missing"
	ErrorKindTransport            ErrorKind = "transport_failure"
	ErrorKindDecode               ErrorKind = "decode_failure"
	ErrorKindRemoteRejected       ErrorKind = "remote_rejected"
	ErrorKindUnexpected           ErrorKind = "unexpected"
)

// KindOf maps an error to its reporting label.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrUnsupported):
		return ErrorKindUnsupported
	case errors.Is(err, ErrConfigurationMissing):
		return ErrorKindConfigurationMissing
	case errors.Is(err, ErrRemoteRejected):
		return ErrorKindRemoteRejected
	case errors.Is(err, ErrDecode):
		return ErrorKindDecode
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	default:
		return ErrorKindUnexpected
	}
}
