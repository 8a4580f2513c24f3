package errors

import "fmt"

// ErrorCode represents an lsearch error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrNoCommands      ErrorCode = "NO_COMMANDS"       // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrPayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE" // 413
	ErrNotebookFailed  ErrorCode = "NOTEBOOK_FAILED"   // 502
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// LsearchError represents a structured error with code, status, and details.
type LsearchError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LsearchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LsearchError {
	return &LsearchError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNoCommands creates a 400 error for uploads that yielded no commands.
func NewNoCommands(format string) *LsearchError {
	return &LsearchError{
		Code:   ErrNoCommands,
		Status: 400,
		Message: "no commands found; use JSON [{command|comando|herramienta, description|descripcion}] " +
			`or text lines like "command - description"`,
		Details: map[string]any{"format": format},
	}
}

// NewNotFound creates a 404 error for when a command cannot be found.
func NewNotFound(name string) *LsearchError {
	return &LsearchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("command not found: %s", name),
		Details: map[string]any{"command": name},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *LsearchError {
	return &LsearchError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewPayloadTooLarge creates a 413 error when an upload exceeds the limit.
func NewPayloadTooLarge(max int64) *LsearchError {
	return &LsearchError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("upload exceeds maximum size of %d bytes", max),
		Details: map[string]any{"max_bytes": max},
	}
}

// NewNotebookFailed creates a 502 error when the notebook tool call fails.
func NewNotebookFailed(err error) *LsearchError {
	msg := "notebook query failed"
	if err != nil {
		msg = err.Error()
	}
	return &LsearchError{
		Code:    ErrNotebookFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LsearchError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LsearchError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is an LsearchError with the given code.
func Is(err error, code ErrorCode) bool {
	if lErr, ok := err.(*LsearchError); ok {
		return lErr.Code == code
	}
	return false
}
