package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrConnection,
		ErrAction,
		ErrRemote,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	err := New(ErrConfig, "Invalid configuration in config.yaml", "Check your configuration file syntax")

	require.NotNil(t, err)
	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "Invalid configuration in config.yaml", err.Message)
	assert.Equal(t, "Check your configuration file syntax", err.Suggestion)
	assert.Nil(t, err.Cause)
	assert.False(t, err.Fatal)
}

func TestConstructors(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")

	tests := []struct {
		name      string
		err       *Error
		wantCode  string
		wantKind  Kind
		wantFatal bool
	}{
		{
			name:      "connection error is always fatal",
			err:       NewConnection(KindTimeout, cause, "Timed out", ""),
			wantCode:  ErrConnection,
			wantKind:  KindTimeout,
			wantFatal: true,
		},
		{
			name:      "action error is fatal",
			err:       NewAction(KindUnknownOperation, nil, "no such operation"),
			wantCode:  ErrAction,
			wantKind:  KindUnknownOperation,
			wantFatal: true,
		},
		{
			name:      "call-scoped remote error",
			err:       NewRemote(KindNotFound, false, nil, "no such container", ""),
			wantCode:  ErrRemote,
			wantKind:  KindNotFound,
			wantFatal: false,
		},
		{
			name:      "session-fatal remote error",
			err:       NewRemote(KindDaemonUnavailable, true, cause, "daemon went away", ""),
			wantCode:  ErrRemote,
			wantKind:  KindDaemonUnavailable,
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.wantFatal, tt.err.Fatal)
			assert.Equal(t, tt.wantFatal, IsFatal(tt.err))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid configuration", "Check config.yaml syntax"),
			expectedParts: []string{
				"Invalid configuration",
				"Check config.yaml syntax",
			},
		},
		{
			name: "error with failure symbol",
			err:  New(ErrConnection, "Connection failed", "Try again"),
			expectedParts: []string{
				"✗",
				"Connection failed",
			},
		},
		{
			name: "error without suggestion",
			err:  New(ErrRemote, "Command failed", ""),
			expectedParts: []string{
				"Command failed",
			},
			notExpected: []string{
				"suggestion",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()

			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part, "output should contain %q", part)
			}
			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part, "output should not contain %q", part)
			}
		})
	}
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("file not found")
	wrapped := WrapWithCode(cause, ErrConfig, "Failed to load config", "Create config.yaml")

	assert.Equal(t, ErrConfig, wrapped.Code)
	assert.Equal(t, "Create config.yaml", wrapped.Suggestion)
	assert.Equal(t, cause, wrapped.Cause)
	assert.Contains(t, wrapped.Error(), "file not found")
}

func TestErrorsIsAndAs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := fmt.Errorf("outer: %w", NewRemote(KindNotFound, false, cause, "missing", ""))

	assert.True(t, errors.Is(wrapped, cause))

	var rpErr *Error
	require.True(t, errors.As(wrapped, &rpErr))
	assert.Equal(t, KindNotFound, rpErr.Kind)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrConnection))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestIsKind(t *testing.T) {
	err := NewConnection(KindAuthFailure, nil, "auth", "")

	assert.True(t, IsKind(err, ErrConnection, KindAuthFailure))
	assert.False(t, IsKind(err, ErrRemote, KindAuthFailure))
	assert.False(t, IsKind(err, ErrConnection, KindTimeout))
	assert.False(t, IsKind(nil, ErrConnection, KindAuthFailure))
	assert.Equal(t, KindAuthFailure, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsFatal_Unstructured(t *testing.T) {
	assert.True(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindTimeout, true},
		{KindUnreachable, true},
		{KindAuthFailure, false},
		{KindHostUnverified, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(NewConnection(tt.kind, nil, "x", "")))
		})
	}

	// A remote timeout is not a connection failure and is not retried
	assert.False(t, IsRetryable(NewRemote(KindTimeout, true, nil, "x", "")))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 1, ExitCode(NewConnection(KindTimeout, nil, "x", "")))
	assert.Equal(t, 2, ExitCode(NewAction(KindUnknownOperation, nil, "x")))
	assert.Equal(t, 125, ExitCode(NewExitError(125)))
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("connection timed out after 2s"),
		ErrConnection,
		"Cannot reach the daemon",
		"Run: rpod ping",
	)

	lines := strings.Split(err.Error(), "\n")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "First line should start with failure symbol")
	assert.Contains(t, lines[0], "Cannot reach the daemon")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{name: "ExitError returns code", err: NewExitError(42), wantCode: 42, wantOk: true},
		{name: "wrapped ExitError", err: fmt.Errorf("batch: %w", NewExitError(1)), wantCode: 1, wantOk: true},
		{name: "standard error returns false", err: errors.New("standard error")},
		{name: "nil error returns false", err: nil},
		{name: "structured Error returns false", err: New(ErrRemote, "test", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestAsError(t *testing.T) {
	inner := NewRemote(KindNotFound, false, nil, "No such container", "")
	e, ok := AsError(fmt.Errorf("batch: %w", inner))
	assert.True(t, ok)
	assert.Same(t, inner, e)

	_, ok = AsError(fmt.Errorf("plain"))
	assert.False(t, ok)
}
