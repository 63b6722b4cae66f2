// Package gwerrors enumerates the error kinds the gateway surfaces to
// callers (spec §7). The mapping from kind to HTTP status code lives in
// internal/httpapi.
package gwerrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies which of the §7 error categories an error belongs to.
type Kind int

const (
	// KindUnknown is the zero value; Wrap never produces it.
	KindUnknown Kind = iota
	KindFileNotFound
	KindUnsupportedFileType
	KindNoClientAvailable
	KindClientNotFound
	KindNotImplemented
	KindTransportFailure
	KindInitializeFailed
	KindHealthCheckFailed
	KindSpawnTimeout
	KindOrchestratorIO
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "FileNotFound"
	case KindUnsupportedFileType:
		return "UnsupportedFileType"
	case KindNoClientAvailable:
		return "NoClientAvailable"
	case KindClientNotFound:
		return "ClientNotFound"
	case KindNotImplemented:
		return "NotImplemented"
	case KindTransportFailure:
		return "TransportFailure"
	case KindInitializeFailed:
		return "InitializeFailed"
	case KindHealthCheckFailed:
		return "HealthCheckFailed"
	case KindSpawnTimeout:
		return "SpawnTimeout"
	case KindOrchestratorIO:
		return "OrchestratorIO"
	case KindValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Error is a gateway error carrying a Kind alongside the usual cause chain
// pkg/errors gives us. Higher layers switch on Kind, not on message text.
type Error struct {
	kind Kind
	msg  string
	// logs holds the tail of container logs for HealthCheckFailed errors.
	logs string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Cause lets github.com/pkg/errors.Cause unwrap through gateway errors.
func (e *Error) Cause() error { return e.err }

// Unwrap supports errors.Is/errors.As from the standard library too.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Logs returns the captured container log tail, if any (HealthCheckFailed).
func (e *Error) Logs() string { return e.logs }

// New creates a Kind-tagged error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying error, preserving it as
// the cause (github.com/pkg/errors style).
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: pkgerrors.WithStack(err)}
}

// WithLogs attaches a container log tail to a HealthCheckFailed error.
func (e *Error) WithLogs(logs string) *Error {
	e.logs = logs
	return e
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// KindUnknown.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.kind
	}
	return KindUnknown
}
