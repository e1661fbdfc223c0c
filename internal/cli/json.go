package cli

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rileyhilliard/rpod/internal/action"
	"github.com/rileyhilliard/rpod/internal/errors"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output uses this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
// Code is the error code (CONFIG, CONNECTION, ACTION, REMOTE) and Kind
// the failure kind within it.
type JSONError struct {
	Code       string      `json:"code"`
	Kind       string      `json:"kind,omitempty"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ErrCodeUnknown is used for errors that carry no code of their own.
const ErrCodeUnknown = "UNKNOWN"

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	if rpErr, ok := errors.AsError(err); ok {
		jsonErr := &JSONError{
			Code:       rpErr.Code,
			Kind:       string(rpErr.Kind),
			Message:    rpErr.Message,
			Suggestion: rpErr.Suggestion,
		}
		if rpErr.Cause != nil {
			jsonErr.Details = map[string]interface{}{"cause": rpErr.Cause.Error()}
		}
		return jsonErr
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// writeJSONResult renders res as the envelope's data. A result whose own
// Err reports failure (a batch with failed items) still carries its data.
func writeJSONResult(w io.Writer, res action.Result, err error) error {
	env := JSONEnvelope{}

	if res != nil {
		var buf bytes.Buffer
		if rerr := res.Render(&buf, action.FormatJSON); rerr != nil {
			if err == nil {
				err = rerr
			}
		} else if data := bytes.TrimSpace(buf.Bytes()); len(data) > 0 {
			env.Data = json.RawMessage(data)
		}
	}

	switch {
	case err != nil:
		env.Error = ErrorToJSON(err)
	case res != nil && res.Err() != nil:
		err = res.Err()
		env.Error = &JSONError{
			Code:    errors.ErrRemote,
			Message: "One or more items failed",
		}
	default:
		env.Success = true
	}

	if werr := writeJSONEnvelope(w, env); werr != nil {
		return werr
	}
	if err != nil {
		return errors.NewExitError(errors.ExitCode(err))
	}
	return nil
}
