package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig     = "CONFIG"
	ErrConnection = "CONNECTION"
	ErrAction     = "ACTION"
	ErrRemote     = "REMOTE"
)

// Kind narrows an error code to a specific failure.
type Kind string

// Connection kinds: the session could not be established.
const (
	KindAuthFailure    Kind = "AuthFailure"
	KindHostUnverified Kind = "HostUnverified"
	KindUnreachable    Kind = "Unreachable"
	KindTimeout        Kind = "Timeout"
)

// Action kinds: the action table is wrong. These are registration bugs.
const (
	KindUnknownOperation         Kind = "UnknownOperation"
	KindHandlerConstructionError Kind = "HandlerConstructionError"
)

// Remote kinds: an operation against a live session failed.
// KindTimeout is shared with the connection kinds.
const (
	KindDaemonUnavailable Kind = "DaemonUnavailable"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindNotFound          Kind = "NotFound"
	KindProtocolMismatch  Kind = "ProtocolMismatch"
	KindOperationFailed   Kind = "OperationFailed"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Kind       Kind
	Message    string
	Suggestion string
	Cause      error

	// Fatal marks a failure that invalidates the whole session.
	// Call-scoped remote failures leave it false.
	Fatal bool
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewConnection creates a ConnectionError. Connection failures always abort the invocation.
func NewConnection(kind Kind, cause error, message, suggestion string) *Error {
	return &Error{
		Code:       ErrConnection,
		Kind:       kind,
		Message:    message,
		Suggestion: suggestion,
		Cause:      cause,
		Fatal:      true,
	}
}

// NewAction creates an ActionError.
func NewAction(kind Kind, cause error, message string) *Error {
	return &Error{
		Code:       ErrAction,
		Kind:       kind,
		Message:    message,
		Suggestion: "This is a bug in rpod's command table. Please report it.",
		Cause:      cause,
		Fatal:      true,
	}
}

// NewRemote creates a RemoteError. fatal is true for transport-level failures.
func NewRemote(kind Kind, fatal bool, cause error, message, suggestion string) *Error {
	return &Error{
		Code:       ErrRemote,
		Kind:       kind,
		Message:    message,
		Suggestion: suggestion,
		Cause:      cause,
		Fatal:      fatal,
	}
}

// Error implements the error interface with the three-part layout.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError returns the first structured Error in err's chain.
func AsError(err error) (*Error, bool) {
	var rpErr *Error
	if errors.As(err, &rpErr) {
		return rpErr, true
	}
	return nil, false
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rpErr *Error
	if errors.As(err, &rpErr) {
		return rpErr.Code == code
	}
	return false
}

// IsKind checks if an error is a structured Error with the given code and kind.
func IsKind(err error, code string, kind Kind) bool {
	var rpErr *Error
	if errors.As(err, &rpErr) {
		return rpErr.Code == code && rpErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of a structured error, or "" for anything else.
func KindOf(err error) Kind {
	var rpErr *Error
	if errors.As(err, &rpErr) {
		return rpErr.Kind
	}
	return ""
}

// IsFatal reports whether err should abort the whole invocation.
// Unstructured errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var rpErr *Error
	if errors.As(err, &rpErr) {
		return rpErr.Fatal
	}
	return true
}

// IsRetryable reports whether err is a connection failure worth retrying.
// Only Timeout and Unreachable qualify.
func IsRetryable(err error) bool {
	return IsKind(err, ErrConnection, KindTimeout) || IsKind(err, ErrConnection, KindUnreachable)
}

// ExitCode maps an error to a process exit code.
// Action errors are programmer errors and exit 2; everything else exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := GetExitCode(err); ok {
		return code
	}
	if IsCode(err, ErrAction) {
		return 2
	}
	return 1
}

// ExitError carries a bare exit code when the failure has already been reported.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the code from an ExitError anywhere in the chain.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
